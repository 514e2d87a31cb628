// Package apperr defines the error taxonomy shared across the daemon.
//
// Callers discriminate with errors.Is/errors.As rather than string matching.
// HTTP handlers map a Kind to a status code; nothing else in the daemon
// should know about HTTP status at all.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the categories from spec §7.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindDenied     Kind = "denied"
	KindProvider   Kind = "provider"
	KindTool       Kind = "tool"
	KindInternal   Kind = "internal"
)

// Error is a typed, wrapped error carrying a Kind for classification.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Is reports whether err (or any error it wraps) has the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Validation constructs a validation-kind error.
func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

// NotFound constructs a not-found-kind error.
func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

// Denied constructs a denied-kind error, carrying the hook's reason.
func Denied(reason string) *Error {
	return New(KindDenied, reason)
}

// Internal wraps an unexpected error as internal-kind.
func Internal(message string, err error) *Error {
	return Wrap(KindInternal, message, err)
}
