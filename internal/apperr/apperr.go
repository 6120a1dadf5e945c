// Package apperr defines the typed error taxonomy propagated from the
// service layer through to the HTTP response envelope. Every error that
// crosses a component boundary in this engine is either one of these
// codes or a wrapped Go error that a caller is expected to treat as
// internal_invariant.
package apperr

import "fmt"

// Code identifies the class of failure. Handlers map each Code to a
// stable HTTP status; never the other way around.
type Code string

const (
	CodeValidation       Code = "validation_error"
	CodeInvalidTransition Code = "invalid_transition"
	CodeNotFound         Code = "not_found"
	CodeConflict         Code = "conflict"
	CodeOverCapacity     Code = "over_capacity"
	CodeExternalTimeout  Code = "external_timeout"
	CodeExternalFailure  Code = "external_failure"
	CodeInternal         Code = "internal_invariant"
)

// Error is the single error type carried across component boundaries.
type Error struct {
	Code    Code
	Message string
	Details string
	Cause   error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}

func Validation(message string) *Error     { return New(CodeValidation, message) }
func InvalidTransition(message string) *Error { return New(CodeInvalidTransition, message) }
func NotFound(message string) *Error       { return New(CodeNotFound, message) }
func Conflict(message string) *Error       { return New(CodeConflict, message) }
func OverCapacity(message string) *Error   { return New(CodeOverCapacity, message) }
func ExternalTimeout(message string, cause error) *Error {
	return Wrap(CodeExternalTimeout, message, cause)
}
func ExternalFailure(message string, cause error) *Error {
	return Wrap(CodeExternalFailure, message, cause)
}
func Internal(message string, cause error) *Error {
	return Wrap(CodeInternal, message, cause)
}

// Is reports whether err is an *Error of the given code.
func Is(err error, code Code) bool {
	ae, ok := err.(*Error)
	return ok && ae.Code == code
}

// HTTPStatus maps a Code to the status code used across internal/handler.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return 422
	case CodeInvalidTransition:
		return 409
	case CodeNotFound:
		return 404
	case CodeConflict:
		return 409
	case CodeOverCapacity:
		return 413
	case CodeExternalTimeout:
		return 504
	case CodeExternalFailure:
		return 502
	default:
		return 500
	}
}
