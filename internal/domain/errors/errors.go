// Package errors defines the payment client's error taxonomy. Every error a
// caller can act on carries a stable code for the HTTP layer and matches a
// sentinel through errors.Is.
package errors

import (
	"errors"
)

// ErrInvalidInput indicates a request failed validation
var ErrInvalidInput = errors.New("invalid input")

// DomainError represents a domain-specific error with additional context
type DomainError struct {
	Err       error
	Code      string
	Message   string
	Details   map[string]interface{}
	Retryable bool
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target
func (e *DomainError) Is(target error) bool {
	if e.Err != nil {
		return errors.Is(e.Err, target)
	}
	return false
}

// IsRetryable reports whether the failed operation is safe to repeat as is.
// The retry package detects this method through errors.As.
func (e *DomainError) IsRetryable() bool {
	return e.Retryable
}

// ValidationError creates a validation error
func ValidationError(field, message string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidInput,
		Code:    "VALIDATION_ERROR",
		Message: message,
		Details: map[string]interface{}{
			"field": field,
		},
	}
}

// GetErrorCode extracts the API code from a domain or submission error
func GetErrorCode(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		return subErr.Kind.Code()
	}
	return "UNKNOWN_ERROR"
}

// GetErrorDetails extracts details from a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}
