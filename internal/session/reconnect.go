package session

import "time"

// Policy maps a reconnect attempt number to a backoff delay: exponential with
// a hard cap. Pure and stateless; the attempt counter lives in the Manager
// and resets to zero on any successful connection.
type Policy struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
}

// DefaultPolicy matches the service's recommended client behavior.
func DefaultPolicy() Policy {
	return Policy{Base: time.Second, Cap: 30 * time.Second, MaxAttempts: 10}
}

// Delay returns min(Base * 2^(attempt-1), Cap) for attempt >= 1.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	d := p.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.Cap {
			return p.Cap
		}
	}
	if d > p.Cap {
		return p.Cap
	}
	return d
}

// Exhausted reports whether no further automatic attempt may be scheduled.
func (p Policy) Exhausted(attempt int) bool {
	return attempt > p.MaxAttempts
}
