// Package errs defines the error taxonomy shared by the durable HTTP path and
// the live transport. Both surfaces map an error to a response through Kind.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the caller.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindDuplicate
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindDuplicate:
		return "duplicate"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// Error is the application error type. Message is safe to show to clients;
// Err carries the underlying cause and is never serialized.
type Error struct {
	Kind    Kind
	Message string
	Details string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg = msg + ": " + e.Details
	}
	if e.Err != nil {
		return fmt.Sprintf("%s (%v)", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches two *Error values by kind and message, so package-level sentinels
// keep working after WithDetails or Wrap produced a copy.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// WithDetails returns a copy carrying extra detail text.
func (e *Error) WithDetails(format string, args ...any) *Error {
	c := *e
	c.Details = fmt.Sprintf(format, args...)
	return &c
}

// Wrap returns a copy carrying cause as the underlying error.
func (e *Error) Wrap(cause error) *Error {
	c := *e
	c.Err = cause
	return &c
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Validation(msg string) *Error { return newError(KindValidation, msg) }
func NotFound(msg string) *Error   { return newError(KindNotFound, msg) }
func Duplicate(msg string) *Error  { return newError(KindDuplicate, msg) }
func Forbidden(msg string) *Error  { return newError(KindForbidden, msg) }

// Internal wraps an unexpected failure (typically persistence).
func Internal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: cause}
}

// KindOf reports the kind of err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage returns the client-facing message and details for err.
func PublicMessage(err error) (string, string) {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message, e.Details
	}
	return "internal error", ""
}

// HTTPStatus maps err to the status code used by the durable path.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindDuplicate:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
