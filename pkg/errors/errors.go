package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error code
type ErrorCode int

// Error codes, grouped by taxonomy bucket
const (
	ErrValidation ErrorCode = iota + 1000
	ErrAuthorization
	ErrConflict
	ErrNotFound
	ErrGuardViolation
	ErrInternal
)

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details []string  `json:"details,omitempty"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	msg := e.Message
	if len(e.Details) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(e.Details, ", "))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches AppErrors by code and message so callers can test against
// sentinel constructors.
func (e *AppError) Is(target error) bool {
	var appErr *AppError
	if !errors.As(target, &appErr) {
		return false
	}
	return e.Code == appErr.Code && e.Message == appErr.Message
}

// Error constructors

func NewValidation(message string, err error) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
		Err:     err,
	}
}

func NewAuthorization(message string) *AppError {
	return &AppError{
		Code:    ErrAuthorization,
		Message: message,
	}
}

func NewConflict(message string, details ...string) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: message,
		Details: details,
	}
}

func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewGuardViolation(reason string) *AppError {
	return &AppError{
		Code:    ErrGuardViolation,
		Message: reason,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// Code extracts the ErrorCode from err, mapping unclassified errors to
// ErrInternal.
func Code(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return Code(err) == code
}
