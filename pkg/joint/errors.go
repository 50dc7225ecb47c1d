package joint

import (
	"errors"
	"fmt"
)

// Sentinel errors for registry and session operations.
var (
	// ErrPathInUse is returned by Start when a session is already bound to
	// the normalized path.
	ErrPathInUse = errors.New("joint: path already in use")

	// ErrSessionNotFound is returned by Lookup when no session is bound to
	// a path.
	ErrSessionNotFound = errors.New("joint: session not found")

	// ErrSessionClosed is returned when an operation is attempted on a closed session.
	ErrSessionClosed = errors.New("joint: session closed")

	// ErrRegistryClosed is returned by Start after CloseAll and before
	// Reopen.
	ErrRegistryClosed = errors.New("joint: registry closed")

	// ErrConnectionClosed is returned when sending on a closed connection.
	ErrConnectionClosed = errors.New("joint: connection closed")
)

// PathConflictError reports a Start on a path that is already bound.
type PathConflictError struct {
	Path string
}

// Error returns the error message.
func (e *PathConflictError) Error() string {
	return fmt.Sprintf("joint: path already in use: %s", e.Path)
}

// Unwrap returns ErrPathInUse for errors.Is.
func (e *PathConflictError) Unwrap() error {
	return ErrPathInUse
}

// SessionError wraps an error with session context.
type SessionError struct {
	Path string
	Op   string // Operation that failed
	Err  error  // Underlying error
}

// Error returns the error message with session context.
func (e *SessionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("joint: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("joint: session %s: %s: %v", e.Path, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *SessionError) Unwrap() error {
	return e.Err
}

// NewSessionError creates a new SessionError.
func NewSessionError(path, op string, err error) *SessionError {
	return &SessionError{Path: path, Op: op, Err: err}
}
