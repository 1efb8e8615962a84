package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is an error with a stable machine-readable code. Handlers map the
// code to a transport status; callers match on the sentinel values below.
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches two AppErrors by code so sentinel comparisons survive wrapping.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !stderrors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// New creates an AppError with the given code and message.
func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

// Wrap creates an AppError that carries an underlying cause.
func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the code from an error chain, or CodeUnknown.
func CodeOf(err error) Code {
	var app *AppError
	if stderrors.As(err, &app) {
		return app.Code
	}
	return CodeUnknown
}

// IsTransient reports whether the error is a retryable infrastructure
// failure rather than a terminal domain outcome.
func IsTransient(err error) bool {
	switch CodeOf(err) {
	case CodeStoreUnavailable, CodeChannelInterrupted:
		return true
	}
	return false
}
