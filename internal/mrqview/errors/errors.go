// Package errors provides standardized error handling for the Marquee viewer agent
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the viewer-side failure taxonomy
var (
	// ErrTransport indicates the push channel cannot connect or send;
	// recovered by the connection manager's backoff loop and surfaced only
	// after retry exhaustion
	ErrTransport = errors.New("transport failure")

	// ErrRequestTimeout indicates a correlated request got no reply in time;
	// recovered locally by falling back to a REST pull
	ErrRequestTimeout = errors.New("request timed out")

	// ErrFetch indicates a REST pull failed; existing render state is kept
	ErrFetch = errors.New("fetch failed")

	// ErrInvalidSchedule indicates a schedule failed local validation
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrForbidden indicates a role mismatch; fatal to the session, no retry
	ErrForbidden = errors.New("forbidden")

	// ErrSessionClosed indicates an operation on a torn-down session
	ErrSessionClosed = errors.New("session closed")
)

// Error represents a viewer error with additional context
type Error struct {
	// Code is a machine-readable error code
	Code string
	// Message is a human-readable error description
	Message string
	// Op describes the operation that failed
	Op string
	// Err is the underlying error
	Err error
}

// Error implements the error interface with a formatted message
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error for error chain handling
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error with the given details
func NewError(code string, message string, op string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

// IsTransport returns true if err represents a transport failure
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsRequestTimeout returns true if err represents a correlated request timeout
func IsRequestTimeout(err error) bool {
	return errors.Is(err, ErrRequestTimeout)
}

// IsFetch returns true if err represents a REST pull failure
func IsFetch(err error) bool {
	return errors.Is(err, ErrFetch)
}

// IsInvalidSchedule returns true if err represents a schedule that failed
// validation
func IsInvalidSchedule(err error) bool {
	return errors.Is(err, ErrInvalidSchedule)
}

// IsForbidden returns true if err represents a fatal role mismatch
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsSessionClosed returns true if err represents use after teardown
func IsSessionClosed(err error) bool {
	return errors.Is(err, ErrSessionClosed)
}
