package session

import "context"

// DuplexChannel is the persistent bidirectional message connection to the
// game service. Implementations deliver inbound frames on Incoming and close
// that channel when the connection drops, solicited or not.
type DuplexChannel interface {
	// Send writes one binary frame. It fails once the connection is down.
	Send(data []byte) error

	// Incoming returns the inbound frame stream. The channel is closed when
	// the connection ends; ranging over it is the read loop.
	Incoming() <-chan []byte

	// Close tears the connection down. Idempotent.
	Close() error
}

// Dialer opens a fresh DuplexChannel. The Manager dials once per connection
// attempt; a dropped channel is never reused.
type Dialer interface {
	Dial(ctx context.Context, url string) (DuplexChannel, error)
}
