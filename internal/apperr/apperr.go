// Package apperr defines the error kinds shared by the authorization, quota,
// agreement and transaction services. Callers classify failures with errors.Is
// against the exported kinds.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotFound            = errors.New("not found")
	ErrLimitExceeded       = errors.New("limit exceeded")
	ErrSubscriptionMissing = errors.New("no active subscription")
	ErrConflict            = errors.New("conflict")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrValidation          = errors.New("validation failed")
	ErrNoActiveAgreement   = errors.New("no active agency agreement")
)

// Error is a classified failure with a caller-facing message.
type Error struct {
	Kind    error
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

func newf(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(format string, args ...interface{}) error {
	return newf(ErrUnauthorized, format, args...)
}

func NotFound(format string, args ...interface{}) error {
	return newf(ErrNotFound, format, args...)
}

func Conflict(format string, args ...interface{}) error {
	return newf(ErrConflict, format, args...)
}

func InvalidTransition(format string, args ...interface{}) error {
	return newf(ErrInvalidTransition, format, args...)
}

func SubscriptionMissing(format string, args ...interface{}) error {
	return newf(ErrSubscriptionMissing, format, args...)
}

func NoActiveAgreement(format string, args ...interface{}) error {
	return newf(ErrNoActiveAgreement, format, args...)
}

func Validation(format string, args ...interface{}) error {
	return newf(ErrValidation, format, args...)
}

// ValidationFields reports per-field problems, as produced by request Validate methods.
func ValidationFields(fields map[string]string) error {
	return &Error{Kind: ErrValidation, Message: "invalid input", Fields: fields}
}

// Message returns the caller-facing message of a classified error, or a
// generic text for anything else.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	var m interface{ UserMessage() string }
	if errors.As(err, &m) {
		return m.UserMessage()
	}
	return "internal error"
}

// Fields returns per-field validation details, if any.
func Fields(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}
