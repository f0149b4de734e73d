// Package events provides a minimal typed publish/subscribe primitive.
// Components expose one Emitter per event kind instead of a single optional
// callback field, so several listeners can attach and detach independently.
package events

import "sync"

// Emitter fans an event out to every current subscriber. The zero value is
// ready to use.
type Emitter[T any] struct {
	mu   sync.Mutex
	subs map[int]func(T)
	next int
}

// Subscribe registers fn and returns a cancel function that removes it.
// Cancel is idempotent.
func (e *Emitter[T]) Subscribe(fn func(T)) (cancel func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.subs == nil {
		e.subs = make(map[int]func(T))
	}
	id := e.next
	e.next++
	e.subs[id] = fn

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, id)
	}
}

// Emit delivers v to all subscribers registered at the time of the call.
// Subscribers run synchronously on the caller's goroutine, outside the
// emitter lock so a handler may subscribe or cancel.
func (e *Emitter[T]) Emit(v T) {
	e.mu.Lock()
	fns := make([]func(T), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
