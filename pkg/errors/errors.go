package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"
	ErrPermission   ErrorCode = "PERMISSION"

	// Configuration errors
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigParse ErrorCode = "CONFIG_PARSE"
	ErrConfigValid ErrorCode = "CONFIG_INVALID"

	// Processed record store errors
	ErrStoreLoad ErrorCode = "STORE_LOAD"
	ErrStoreSave ErrorCode = "STORE_SAVE"

	// Remote client errors
	ErrConnection ErrorCode = "CONNECTION"
	ErrAuth       ErrorCode = "AUTH"
	ErrRPC        ErrorCode = "RPC"

	// Merge errors
	ErrSourceMissing ErrorCode = "SOURCE_MISSING"
	ErrTypeConflict  ErrorCode = "TYPE_CONFLICT"
	ErrLinkCreate    ErrorCode = "LINK_CREATE"
	ErrLinkRetry     ErrorCode = "LINK_RETRY"
	ErrDirCreate     ErrorCode = "DIR_CREATE"

	// FileSystem errors
	ErrFileAccess ErrorCode = "FILE_ACCESS"
	ErrRemove     ErrorCode = "REMOVE"

	// Run exclusivity
	ErrLocked ErrorCode = "LOCKED"
)

// ProcessError represents a structured error with code and details
type ProcessError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *ProcessError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *ProcessError) Unwrap() error {
	return e.Wrapped
}

// Is matches any ProcessError carrying the same code.
func (e *ProcessError) Is(target error) bool {
	var targetErr *ProcessError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new ProcessError with the given code and message
func New(code ErrorCode, message string) *ProcessError {
	return &ProcessError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new ProcessError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *ProcessError {
	return &ProcessError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a ProcessError
func Wrap(err error, code ErrorCode, message string) *ProcessError {
	if err == nil {
		return nil
	}
	return &ProcessError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *ProcessError {
	if err == nil {
		return nil
	}
	return &ProcessError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *ProcessError) WithDetail(key string, value interface{}) *ProcessError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not a ProcessError
func GetErrorCode(err error) ErrorCode {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ErrUnknown
}

// GetErrorDetails returns the details from an error, or nil if not a ProcessError
func GetErrorDetails(err error) map[string]interface{} {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.Details
	}
	return nil
}
