// Package apperror defines the error kinds surfaced by the workflow service.
// Every failure leaving a service operation is an *Error with exactly one Kind.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers.
type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindValidation      Kind = "validation"
	KindConflict        Kind = "conflict"
	KindStore           Kind = "store"
)

// Error is a classified failure. Err holds the internal cause, which is
// logged but never shown to callers.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperror.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// WithMessage returns a copy of e with a caller-facing message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Kind: e.Kind, Message: msg, Err: e.Err}
}

// WithInternal returns a copy of e carrying an internal cause.
func (e *Error) WithInternal(err error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Err: err}
}

// Sentinels for each kind. Use WithMessage/WithInternal to specialise.
var (
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated, Message: "authentication required"}
	ErrForbidden       = &Error{Kind: KindForbidden, Message: "operation not permitted"}
	ErrNotFound        = &Error{Kind: KindNotFound, Message: "workflow not found"}
	ErrValidation      = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrConflict        = &Error{Kind: KindConflict, Message: "conflicting graph"}
	ErrStore           = &Error{Kind: KindStore, Message: "storage failure"}
)

// Validation builds a validation error with a formatted message.
func Validation(format string, args ...any) *Error {
	return ErrValidation.WithMessage(fmt.Sprintf(format, args...))
}

// Conflict builds a conflict error with a formatted message.
func Conflict(format string, args ...any) *Error {
	return ErrConflict.WithMessage(fmt.Sprintf(format, args...))
}

// Store wraps an internal storage failure. The message stays generic.
func Store(err error) *Error {
	return ErrStore.WithInternal(err)
}

// KindOf returns the kind of err, treating unclassified errors as store failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStore
}

// As extracts the *Error from err, wrapping unclassified errors as store failures.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Store(err)
}
