package retry

import (
	"context"
)

// TransactionManager defines the interface for transaction management.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Dispatcher hands an accepted attempt off for asynchronous execution.
// In production this enqueues onto the retry-dispatch stream consumed by
// the worker; tests use an inline dispatcher.
type Dispatcher interface {
	// EnqueueAttempt schedules execution of one attempt. causationID is
	// the eventId of the RetryAttemptStarted event, carried through so the
	// completion events chain onto it.
	EnqueueAttempt(ctx context.Context, transactionID string, attemptNumber int, causationID string) error
}
