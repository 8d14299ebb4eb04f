package apperrors

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an error for callers that branch on failure class
// rather than on message text.
type Kind int

const (
	KindValidation Kind = iota // malformed input or wrong state for the requested action
	KindNotFound
	KindConflict        // duplicate registration
	KindInternal        // storage, serialization
	KindExternalService // collaborator I/O
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInternal:
		return "internal"
	case KindExternalService:
		return "external_service"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// External wraps a collaborator failure. Deadline expiry is recorded in the
// message so retry policies can see it as a timeout.
func External(msg string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		msg = msg + " (timeout)"
	}
	return &Error{Kind: KindExternalService, Msg: msg, Err: err}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
