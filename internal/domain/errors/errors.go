package errors

import (
	"errors"
	"fmt"
)

var (
	// Exception errors
	ErrExceptionNotFound        = errors.New("exception not found")
	ErrDuplicateTransactionID   = errors.New("exception already captured for transaction")
	ErrInvalidStateTransition   = errors.New("invalid state transition")
	ErrResolutionDetailsMissing = errors.New("resolution details missing")

	// Retry errors
	ErrRetryNotAllowed         = errors.New("retry not allowed")
	ErrRetryAlreadyActive      = errors.New("an active retry attempt already exists")
	ErrAttemptNotFound         = errors.New("retry attempt not found")
	ErrCancellationNotAllowed  = errors.New("retry attempt can no longer be cancelled")
	ErrMaxRetryAttemptsReached = errors.New("max retry attempts reached")

	// Source service errors
	ErrClientNotFound      = errors.New("no source client registered for interface type")
	ErrSourceTimeout       = errors.New("source service request timed out")
	ErrSourceUnavailable   = errors.New("source service unavailable")
	ErrPayloadNotRetrieved = errors.New("original payload could not be retrieved")

	// Messaging errors
	ErrDeserialization = errors.New("message deserialization failed")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// Unwrap lets callers match any field-level failure with
// errors.Is(err, ErrValidationFailed).
func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
