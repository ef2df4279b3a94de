package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error codes carried by AppError.Code.
const (
	CodeConfiguration       = "CONFIG_ERROR"
	CodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	CodeCompletionFailure   = "COMPLETION_FAILURE"
	CodeResponseValidation  = "RESPONSE_VALIDATION"
	CodeSourceRead          = "SOURCE_READ"
	CodeSizeLimitExceeded   = "SIZE_LIMIT_EXCEEDED"
)

// Error taxonomy. Only ErrConfiguration is fatal; everything else is isolated
// to a provider or a single document.
var (
	ErrConfiguration       = errors.New("configuration error")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrCompletionFailure   = errors.New("completion failed")
	ErrResponseValidation  = errors.New("response validation failed")
	ErrSourceRead          = errors.New("source unreadable")
	ErrSizeLimitExceeded   = errors.New("size limit exceeded")
	ErrValidation          = errors.New("validation failed")
)

// NewAppError builds an AppError.
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// ConfigError wraps ErrConfiguration with a message.
func ConfigError(format string, args ...any) error {
	return NewAppError(CodeConfiguration, fmt.Sprintf(format, args...), ErrConfiguration)
}

// ProviderUnavailableError marks a provider that cannot serve requests.
func ProviderUnavailableError(provider string, cause error) error {
	if cause == nil {
		cause = ErrProviderUnavailable
	} else {
		cause = errors.Join(ErrProviderUnavailable, cause)
	}
	return NewAppError(CodeProviderUnavailable, provider, cause)
}

// CompletionError marks an exhausted completion attempt.
func CompletionError(message string) error {
	return NewAppError(CodeCompletionFailure, message, ErrCompletionFailure)
}

// ResponseValidationError marks a model answer that is not usable.
func ResponseValidationError(message string, cause error) error {
	if cause == nil {
		cause = ErrResponseValidation
	} else {
		cause = errors.Join(ErrResponseValidation, cause)
	}
	return NewAppError(CodeResponseValidation, message, cause)
}

// SourceReadError marks an unreadable document or archive.
func SourceReadError(id string, cause error) error {
	if cause == nil {
		cause = ErrSourceRead
	} else {
		cause = errors.Join(ErrSourceRead, cause)
	}
	return NewAppError(CodeSourceRead, id, cause)
}

// SizeLimitError marks a document skipped for size.
func SizeLimitError(id string, size, limit int64) error {
	return NewAppError(CodeSizeLimitExceeded,
		fmt.Sprintf("%s is %d bytes (limit %d)", id, size, limit), ErrSizeLimitExceeded)
}
