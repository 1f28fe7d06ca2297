// Package apperr is the error taxonomy shared by services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindInvalidState
	KindPolicyViolation
	KindAlreadyMarked
	KindAuthorization
	KindUnauthenticated
	KindNotFound
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInvalidState:
		return "invalid_state"
	case KindPolicyViolation:
		return "policy_violation"
	case KindAlreadyMarked:
		return "already_marked"
	case KindAuthorization:
		return "authorization"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindNotFound:
		return "not_found"
	case KindStorage:
		return "storage"
	}
	return "unknown"
}

// Error is returned by every service operation. Fields are merged into the
// JSON error body next to code and message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// With attaches a response field and returns the receiver.
func (e *Error) With(key string, value any) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(code, message string) *Error {
	return New(KindValidation, code, message)
}

func InvalidState(code, message string) *Error {
	return New(KindInvalidState, code, message)
}

func PolicyViolation(code, message string) *Error {
	return New(KindPolicyViolation, code, message)
}

func AlreadyMarked(message string) *Error {
	return New(KindAlreadyMarked, "already_marked", message)
}

func Forbidden(message string) *Error {
	return New(KindAuthorization, "forbidden", message)
}

func Unauthenticated(message string) *Error {
	return New(KindUnauthenticated, "unauthenticated", message)
}

func NotFound(code, message string) *Error {
	return New(KindNotFound, code, message)
}

func Storage(err error) *Error {
	return &Error{Kind: KindStorage, Code: "storage_error", Message: "storage failure", Err: err}
}

// KindOf reports the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
