// internal/core/errors.go
package core

import (
	"errors"
	"fmt"
)

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Code returns the code of the first *Error in err's chain, or "" if none.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Describe renders err as a message suitable for showing to a user:
// the structured message followed by the cause, without the code prefix.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, Describe(e.Cause))
	}
	return e.Message
}

// Predefined errors
var (
	// Collaborator API errors
	ErrNetwork    = &Error{Code: "NETWORK_ERROR", Message: "backtest service unreachable"}
	ErrHTTPStatus = &Error{Code: "HTTP_STATUS", Message: "backtest service returned an error status"}
	ErrDecode     = &Error{Code: "DECODE_ERROR", Message: "malformed backtest result"}
	ErrTimeout    = &Error{Code: "TIMEOUT", Message: "backtest request timed out"}

	// Input errors
	ErrValidation = &Error{Code: "VALIDATION_ERROR", Message: "invalid backtest parameters"}

	// Data errors
	ErrNoData      = &Error{Code: "NO_DATA", Message: "no data available"}
	ErrUnsupported = &Error{Code: "UNSUPPORTED", Message: "operation not supported by this source"}
	ErrArchive     = &Error{Code: "ARCHIVE_ERROR", Message: "reading result archive failed"}

	// Session errors
	ErrSessionNotFound = &Error{Code: "SESSION_NOT_FOUND", Message: "session not found"}
	ErrUnauthorized    = &Error{Code: "UNAUTHORIZED", Message: "missing or invalid API key"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)
