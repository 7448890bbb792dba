package errors

import (
	"fmt"
	"time"
)

// EngineError is the structured error type for the RAG engine.
// It provides rich context for error handling, logging, and user presentation.
type EngineError struct {
	// Code is the unique error code (e.g., "ERR_303_PROVIDER_RATE_LIMIT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Store, Provider, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// RetryAfter is the provider-suggested delay before retrying.
	// Only meaningful for rate-limit errors; zero means no suggestion.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with EngineError.
func (e *EngineError) Is(target error) bool {
	if t, ok := target.(*EngineError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *EngineError) WithDetail(key, value string) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new EngineError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *EngineError {
	return &EngineError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an EngineError from an existing error.
// The error's message becomes the EngineError message.
func Wrap(code string, err error) *EngineError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *EngineError {
	return New(ErrCodeInvalidInput, message, cause)
}

// StoreError creates a persistence-related error.
func StoreError(message string, cause error) *EngineError {
	return New(ErrCodeStoreQuery, message, cause)
}

// ProviderError creates an embedding-provider error.
func ProviderError(message string, cause error) *EngineError {
	return New(ErrCodeProviderUnavailable, message, cause)
}

// RateLimitError creates a retryable rate-limit error with the
// provider-suggested retry delay.
func RateLimitError(message string, retryAfter time.Duration, cause error) *EngineError {
	e := New(ErrCodeProviderRateLimit, message, cause)
	e.RetryAfter = retryAfter
	return e
}

// DimensionMismatchError creates an error for mismatched vector lengths.
func DimensionMismatchError(expected, got int) *EngineError {
	e := New(ErrCodeDimensionMismatch,
		fmt.Sprintf("vector dimension mismatch: expected %d, got %d", expected, got), nil)
	return e
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *EngineError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is an EngineError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ee, ok := err.(*EngineError); ok {
		return ee.Retryable
	}
	return false
}

// IsRateLimit checks if an error is a provider rate-limit error.
func IsRateLimit(err error) bool {
	return GetCode(err) == ErrCodeProviderRateLimit
}

// RetryAfter returns the provider-suggested retry delay for a rate-limit
// error, or zero if none was given.
func RetryAfter(err error) time.Duration {
	if ee, ok := err.(*EngineError); ok {
		return ee.RetryAfter
	}
	return 0
}

// GetCode extracts the error code from an EngineError.
// Returns empty string if not an EngineError.
func GetCode(err error) string {
	if ee, ok := err.(*EngineError); ok {
		return ee.Code
	}
	return ""
}

// GetCategory extracts the category from an EngineError.
// Returns empty string if not an EngineError.
func GetCategory(err error) Category {
	if ee, ok := err.(*EngineError); ok {
		return ee.Category
	}
	return ""
}
