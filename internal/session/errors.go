package session

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthFailed is a generic authentication rejection.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrNameTaken means the service rejected the display name as already in
	// use. Surfaced distinctly so the caller can prompt for a new name.
	ErrNameTaken = errors.New("display name already taken")
	// ErrConnectFailed means the duplex channel could not be opened.
	ErrConnectFailed = errors.New("connection failed")
	// ErrChannelNotReady means an operation was attempted with no open channel.
	ErrChannelNotReady = errors.New("channel not ready")
	// ErrRequestRejected means the channel was fine but the service declined
	// the request; the reason travels in the OpError details.
	ErrRequestRejected = errors.New("request rejected by service")
	// ErrNoSession means an operation requires an authenticated session.
	ErrNoSession = errors.New("not authenticated")
	// ErrReconnectExhausted is the terminal condition after max_attempts
	// consecutive failed reconnects; only a fresh manual Connect recovers.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
	// ErrDeletionInProgress rejects a second concurrent account deletion.
	ErrDeletionInProgress = errors.New("account deletion already in progress")
	// ErrDeletionTimeout means neither a response nor a disconnect arrived in
	// time. The deletion may still have succeeded server-side; retry is safe.
	ErrDeletionTimeout = errors.New("account deletion timed out")
	// ErrDeletionFailed is an explicit server-reported deletion failure.
	ErrDeletionFailed = errors.New("account deletion failed")
)

// OpError wraps an error with the operation that produced it.
type OpError struct {
	Op      string
	Err     error
	Details string
}

func (e *OpError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *OpError {
	return &OpError{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *OpError {
	return &OpError{Op: op, Err: err, Details: details}
}
