// Package apperr defines the discriminated error kinds threaded through every
// pipeline stage, replacing exception-driven control flow with explicit,
// inspectable error values.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the orthogonal error categories from the error handling design.
type Kind string

// Error kinds. See the component design for trigger/handling semantics of each.
const (
	KindRateLimit     Kind = "RATELIMIT"
	KindTimeout       Kind = "TIMEOUT"
	KindExternal      Kind = "EXTERNAL"
	KindNoData        Kind = "NODATA"
	KindInvalid       Kind = "INVALID"
	KindDBError       Kind = "DBERROR"
	KindCalculation   Kind = "CALCULATION"
	KindConfiguration Kind = "CONFIGURATION"
)

// Error wraps an underlying cause with a Kind so callers can branch on
// category without string-matching messages.
type Error struct {
	Kind    Kind
	Op      string // component/operation that raised it, e.g. "signal.ImpliedMove"
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

// Unwrap allows errors.Is/As to see through to the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New constructs an Error with no underlying cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap constructs an Error carrying an underlying cause.
func Wrap(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Cause: cause}
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, or "" if err is not (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// Retryable reports whether the error kind is one the retry policy should
// attempt again (§4.3): RATELIMIT, TIMEOUT, EXTERNAL are retryable; NODATA,
// INVALID, CALCULATION, CONFIGURATION, DBERROR (after its single retry) are not.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimit, KindTimeout, KindExternal:
		return true
	default:
		return false
	}
}
