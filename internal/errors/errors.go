// Package errors provides the unified error taxonomy shared by every layer
// of the graph service. All failures surfaced to callers are *Error values
// so that handling code can branch on Type instead of string matching.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Type classifies an error for programmatic handling.
type Type string

const (
	// Business errors
	TypeValidation Type = "VALIDATION"
	TypeNotFound   Type = "NOT_FOUND"
	TypeConflict   Type = "CONFLICT"

	// Infrastructure errors
	TypeTimeout     Type = "TIMEOUT"
	TypeUnavailable Type = "UNAVAILABLE"
	TypeCircuitOpen Type = "CIRCUIT_OPEN"
	TypeInternal    Type = "INTERNAL"
)

// Error is the single error type used across the service.
type Error struct {
	Type      Type
	Code      string // Specific error code for programmatic handling
	Message   string // Human-readable message
	Operation string // The operation that failed
	Resource  string // The resource being operated on

	Retryable  bool
	RetryAfter time.Duration

	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap allows errors.Is and errors.As to reach the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithOperation records the operation that failed.
func (e *Error) WithOperation(op string) *Error {
	e.Operation = op
	return e
}

// WithResource records the resource being operated on.
func (e *Error) WithResource(resource string) *Error {
	e.Resource = resource
	return e
}

// WithCause attaches the underlying cause.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryAfter marks the error retryable after the given delay.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.Retryable = true
	e.RetryAfter = d
	return e
}

// ============================================================================
// CONSTRUCTORS
// ============================================================================

// Validation creates a non-retryable validation error.
func Validation(code, message string) *Error {
	return &Error{Type: TypeValidation, Code: code, Message: message}
}

// NotFound creates an error for an absent entity.
func NotFound(code, message string) *Error {
	return &Error{Type: TypeNotFound, Code: code, Message: message}
}

// Conflict creates an error for an optimistic-concurrency race.
// The caller is expected to re-read and retry, so the error is retryable.
func Conflict(code, message string) *Error {
	return &Error{Type: TypeConflict, Code: code, Message: message, Retryable: true}
}

// Timeout creates an error for an exceeded deadline.
func Timeout(code, message string) *Error {
	return &Error{Type: TypeTimeout, Code: code, Message: message, Retryable: true}
}

// Unavailable creates an error for a dependency that stayed unreachable
// after local retries were exhausted.
func Unavailable(code, message string) *Error {
	return &Error{Type: TypeUnavailable, Code: code, Message: message, Retryable: true}
}

// CircuitOpen creates the fast-fail error returned while a circuit breaker
// is open. The dependency is never invoked.
func CircuitOpen(code, message string) *Error {
	return &Error{Type: TypeCircuitOpen, Code: code, Message: message, Retryable: true}
}

// Internal creates an error for unexpected failures.
func Internal(code, message string) *Error {
	return &Error{Type: TypeInternal, Code: code, Message: message}
}

// ============================================================================
// PREDICATES
// ============================================================================

// IsType reports whether err (or anything it wraps) is an *Error of the
// given type.
func IsType(err error, t Type) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

func IsValidation(err error) bool  { return IsType(err, TypeValidation) }
func IsNotFound(err error) bool    { return IsType(err, TypeNotFound) }
func IsConflict(err error) bool    { return IsType(err, TypeConflict) }
func IsTimeout(err error) bool     { return IsType(err, TypeTimeout) }
func IsUnavailable(err error) bool { return IsType(err, TypeUnavailable) }
func IsCircuitOpen(err error) bool { return IsType(err, TypeCircuitOpen) }

// IsRetryable reports whether the operation that produced err may be retried.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
