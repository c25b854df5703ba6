package exception

import (
	"time"

	"github.com/biopro/interface-exception-collector/internal/domain/errors"
	"github.com/google/uuid"
)

// AttemptStatus represents the retry attempt status in its state machine.
type AttemptStatus string

const (
	AttemptPending   AttemptStatus = "PENDING"
	AttemptRetrying  AttemptStatus = "RETRYING"
	AttemptSuccess   AttemptStatus = "SUCCESS"
	AttemptFailed    AttemptStatus = "FAILED"
	AttemptCancelled AttemptStatus = "CANCELLED"
)

// IsTerminal reports whether the status is final.
func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptSuccess || s == AttemptFailed || s == AttemptCancelled
}

// RetryAttempt records one retry of an exception against its source
// service. Attempts are exclusively owned by the retry orchestrator and
// become immutable once terminal. AttemptNumber is strictly increasing,
// gap-free and starts at 1 within its owning exception.
type RetryAttempt struct {
	ID            uuid.UUID
	ExceptionID   uuid.UUID
	TransactionID string
	AttemptNumber int
	Status        AttemptStatus
	InitiatedBy   string
	Reason        string
	Priority      string
	InitiatedAt   time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time

	ResultSuccess      bool
	ResultMessage      *string
	ResultResponseCode *int
	ResultErrorDetails *string
}

// NewAttempt creates a PENDING retry attempt.
func NewAttempt(ex *Exception, attemptNumber int, initiatedBy, reason, priority string) (*RetryAttempt, error) {
	if attemptNumber < 1 {
		return nil, errors.NewValidationError("attempt_number", "must start at 1")
	}
	if initiatedBy == "" {
		return nil, errors.NewValidationError("initiated_by", "cannot be empty")
	}
	return &RetryAttempt{
		ID:            uuid.New(),
		ExceptionID:   ex.ID,
		TransactionID: ex.TransactionID,
		AttemptNumber: attemptNumber,
		Status:        AttemptPending,
		InitiatedBy:   initiatedBy,
		Reason:        reason,
		Priority:      priority,
		InitiatedAt:   time.Now(),
	}, nil
}

// MarkRetrying transitions the attempt from PENDING to RETRYING (dispatched).
func (a *RetryAttempt) MarkRetrying() error {
	if a.Status != AttemptPending {
		return errors.NewDomainError(
			"invalid_transition",
			"attempt "+a.ID.String()+" is "+string(a.Status)+", not PENDING",
			errors.ErrInvalidStateTransition,
		)
	}
	now := time.Now()
	a.Status = AttemptRetrying
	a.StartedAt = &now
	return nil
}

// Complete records the outcome of a dispatched attempt. Success maps to
// SUCCESS, anything else to FAILED. Terminal attempts are immutable.
func (a *RetryAttempt) Complete(success bool, message string, responseCode *int, errorDetails string) error {
	if a.Status.IsTerminal() {
		return errors.NewDomainError(
			"attempt_terminal",
			"attempt "+a.ID.String()+" already completed",
			errors.ErrInvalidStateTransition,
		)
	}
	now := time.Now()
	a.CompletedAt = &now
	a.ResultSuccess = success
	if message != "" {
		a.ResultMessage = &message
	}
	a.ResultResponseCode = responseCode
	if errorDetails != "" {
		a.ResultErrorDetails = &errorDetails
	}
	if success {
		a.Status = AttemptSuccess
	} else {
		a.Status = AttemptFailed
	}
	return nil
}

// Cancel cancels an attempt. Only PENDING attempts can be cancelled; a
// RETRYING attempt is already dispatched and can only be awaited.
func (a *RetryAttempt) Cancel() error {
	if a.Status != AttemptPending {
		return errors.ErrCancellationNotAllowed
	}
	now := time.Now()
	a.Status = AttemptCancelled
	a.CompletedAt = &now
	return nil
}
