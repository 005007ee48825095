package errors

import (
	"errors"
	"fmt"
)

// Error represents a typed domain error carrying a stable code.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any *Error sharing the same code, so clones of a sentinel
// satisfy errors.Is against the sentinel.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	var t *Error
	if !errors.As(target, &t) || t == nil {
		return false
	}
	return t.Code == e.Code
}

// New creates a new Error instance.
func New(code string, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Predefined errors for the record engine and its collaborators.
var (
	ErrNotFound            = New("NOT_FOUND", "resource not found")
	ErrDuplicateKey        = New("DUPLICATE_KEY", "identifier already exists")
	ErrDuplicateEnrollment = New("DUPLICATE_ENROLLMENT", "student already enrolled in course for semester")
	ErrValidation          = New("VALIDATION_ERROR", "validation failed")
	ErrInvalidEnrollment   = New("INVALID_ENROLLMENT", "invalid enrollment")
	ErrCreditLimitExceeded = New("CREDIT_LIMIT_EXCEEDED", "credit limit exceeded for semester")
	ErrPrerequisitesNotMet = New("PREREQUISITES_NOT_MET", "prerequisites not met")
	ErrCacheMiss           = New("CACHE_MISS", "cache miss")
	ErrInternal            = New("INTERNAL_ERROR", "internal error")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Clonef is Clone with a formatted message.
func Clonef(err *Error, format string, args ...interface{}) *Error {
	return Clone(err, fmt.Sprintf(format, args...))
}

// ExitCode maps an error to a process exit status for command line callers.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch FromError(err).Code {
	case ErrValidation.Code:
		return 2
	case ErrNotFound.Code:
		return 3
	case ErrDuplicateKey.Code, ErrDuplicateEnrollment.Code:
		return 4
	case ErrInvalidEnrollment.Code, ErrCreditLimitExceeded.Code, ErrPrerequisitesNotMet.Code:
		return 5
	default:
		return 1
	}
}
