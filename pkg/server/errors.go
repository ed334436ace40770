package server

import (
	"errors"
	"fmt"
)

// Sentinel errors for session and server conditions.
var (
	// ErrSessionClosed is returned when an operation is attempted on a closed session.
	ErrSessionClosed = errors.New("server: session closed")

	// ErrAckTimeout is returned when the browser does not acknowledge a push
	// or replace in time.
	ErrAckTimeout = errors.New("server: ack timeout")

	// ErrUnknownAck is returned for an ack that matches no pending navigation.
	ErrUnknownAck = errors.New("server: unknown ack")

	// ErrInvalidHandshake is returned when a connection does not open with hello.
	ErrInvalidHandshake = errors.New("server: invalid handshake")

	// ErrRouteNotFound is returned when a navigate message names no declared route.
	ErrRouteNotFound = errors.New("server: route not found")

	// ErrDuplicateRoute is returned when a manifest declares a name twice.
	ErrDuplicateRoute = errors.New("server: duplicate route name")
)

// SessionError wraps an error with session context for debugging.
type SessionError struct {
	SessionID string
	Op        string // Operation that failed
	Err       error  // Underlying error
}

// Error returns the error message with session context.
func (e *SessionError) Error() string {
	if e.SessionID == "" {
		return fmt.Sprintf("server: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("server: session %s: %s: %v", e.SessionID, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *SessionError) Unwrap() error {
	return e.Err
}
