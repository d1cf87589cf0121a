package claim

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes failures surfaced by the claim core.
type ErrorCode string

const (
	// ErrCodeConfiguration indicates the durable store is unconfigured or unreachable.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"

	// ErrCodeValidation indicates a malformed request. No store access was attempted.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

	// ErrCodeStore indicates a read or append against the store failed.
	// A store error is never a denial: the outcome of the claim is unknown.
	ErrCodeStore ErrorCode = "STORE_ERROR"
)

// Error is the structured error type returned by the claim core.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Fields lists the offending request fields (validation errors only).
	Fields []string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError creates an Error for a malformed request.
func NewValidationError(message string, fields ...string) *Error {
	return &Error{Code: ErrCodeValidation, Message: message, Fields: fields}
}

// NewConfigurationError creates an Error for an unusable store configuration.
func NewConfigurationError(message string, err error) *Error {
	return &Error{Code: ErrCodeConfiguration, Message: message, Err: err}
}

// NewStoreError creates an Error for a failed store operation.
func NewStoreError(op string, err error) *Error {
	return &Error{Code: ErrCodeStore, Message: op, Err: err}
}

// CodeOf returns the ErrorCode carried by err, or "" if err is not an *Error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidation
}

// IsConfiguration returns true if err is a configuration error.
func IsConfiguration(err error) bool {
	return CodeOf(err) == ErrCodeConfiguration
}

// IsStore returns true if err is a store error.
func IsStore(err error) bool {
	return CodeOf(err) == ErrCodeStore
}
