package apperr

import "errors"

// Error codes for the failure taxonomy of the report pipeline.
const (
	CodeValidation       = "validation"
	CodeNotFound         = "not_found"
	CodeGeneration       = "generation"
	CodeExhaustedRetries = "exhausted_retries"
	CodeNotification     = "notification"
)

// Error encodes a coded application error.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New produces a coded error without a cause.
func New(code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap produces a coded error wrapping a cause.
func Wrap(code, message string, err error) error {
	return &Error{Code: code, Message: message, Err: err}
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf extracts the code from err, or returns the empty string.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
