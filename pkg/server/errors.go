package server

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionClosed is returned for operations on a closed session.
	ErrSessionClosed = errors.New("session closed")

	// ErrEventQueueFull is returned when a session cannot take more events.
	ErrEventQueueFull = errors.New("event queue full")
)

// SessionError records a failure in a session operation.
type SessionError struct {
	SessionID string
	Op        string
	Err       error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s: %s: %v", e.SessionID, e.Op, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}
