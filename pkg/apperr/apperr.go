// Package apperr defines the error taxonomy shared by the authorization engine.
//
// Expected rejections (permission denied, bad input, missing records) travel as
// *Error values carrying a Kind, so callers and the HTTP layer can branch on the
// kind without string matching. Infrastructure faults are wrapped with KindInternal
// and keep their cause chain intact for logging.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers and for HTTP status mapping.
type Kind string

const (
	KindUnauthenticated    Kind = "unauthenticated"
	KindPermissionDenied   Kind = "permission_denied"
	KindInvalidArgument    Kind = "invalid_argument"
	KindNotFound           Kind = "not_found"
	KindAlreadyExists      Kind = "already_exists"
	KindFailedPrecondition Kind = "failed_precondition"
	KindInternal           Kind = "internal"
)

// Error is a kinded error with an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a kinded error with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Unauthenticated reports a request with no verifiable caller.
func Unauthenticated(format string, args ...interface{}) *Error {
	return New(KindUnauthenticated, format, args...)
}

// PermissionDenied reports a caller lacking the required permission or seniority.
// The message must never carry store internals; it is user visible.
func PermissionDenied(format string, args ...interface{}) *Error {
	return New(KindPermissionDenied, format, args...)
}

// InvalidArgument reports malformed or out-of-domain input.
func InvalidArgument(format string, args ...interface{}) *Error {
	return New(KindInvalidArgument, format, args...)
}

// NotFound reports an absent identity, organization, or membership.
func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

// FailedPrecondition reports a state conflict such as removing the sole owner.
func FailedPrecondition(format string, args ...interface{}) *Error {
	return New(KindFailedPrecondition, format, args...)
}

// Internal wraps a store or provider fault.
func Internal(err error, format string, args ...interface{}) *Error {
	return Wrap(KindInternal, err, format, args...)
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
