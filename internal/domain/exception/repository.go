package exception

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows exception listings.
type ListFilter struct {
	InterfaceType *InterfaceType
	Status        *Status
	Severity      *Severity
	CustomerID    *string
	Limit         int
	Offset        int
	SortBy        string
	SortOrder     string
}

// Repository persists InterfaceException aggregates.
type Repository interface {
	Create(ctx context.Context, ex *Exception) error
	GetByID(ctx context.Context, id uuid.UUID) (*Exception, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*Exception, error)
	Update(ctx context.Context, ex *Exception) error
	List(ctx context.Context, filter ListFilter) ([]*Exception, error)
}

// AttemptRepository persists RetryAttempt children.
type AttemptRepository interface {
	// InsertPending atomically inserts a PENDING attempt only if no
	// PENDING or RETRYING sibling exists for the same exception. A losing
	// concurrent caller gets errors.ErrRetryAlreadyActive, never a
	// silently queued duplicate.
	InsertPending(ctx context.Context, attempt *RetryAttempt) error

	Update(ctx context.Context, attempt *RetryAttempt) error

	// CancelPending marks an attempt CANCELLED only while the stored row
	// is still PENDING. The guard runs against the row, not a prior read:
	// a cancel racing the dispatcher gets errors.ErrCancellationNotAllowed
	// instead of overwriting a dispatched or terminal attempt.
	CancelPending(ctx context.Context, attempt *RetryAttempt) error

	Get(ctx context.Context, exceptionID uuid.UUID, attemptNumber int) (*RetryAttempt, error)
	List(ctx context.Context, exceptionID uuid.UUID) ([]*RetryAttempt, error)
	Latest(ctx context.Context, exceptionID uuid.UUID) (*RetryAttempt, error)
	MaxAttemptNumber(ctx context.Context, exceptionID uuid.UUID) (int, error)

	// CountFailedSince counts FAILED attempts completed inside the rolling
	// escalation window.
	CountFailedSince(ctx context.Context, exceptionID uuid.UUID, since time.Time) (int, error)
}

// AttemptStatistics is a read-only projection over stored attempts.
type AttemptStatistics struct {
	TransactionID string
	Total         int
	Pending       int
	Retrying      int
	Successful    int
	Failed        int
	Cancelled     int
	LastAttemptAt *time.Time
}
