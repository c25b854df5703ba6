package retry

import (
	"context"

	"github.com/biopro/interface-exception-collector/internal/domain/exception"
)

// Queries are the read-only projections over stored attempts. No side
// effects.
type Queries struct {
	exceptionRepo exception.Repository
	attemptRepo   exception.AttemptRepository
}

func NewQueries(exceptionRepo exception.Repository, attemptRepo exception.AttemptRepository) *Queries {
	return &Queries{exceptionRepo: exceptionRepo, attemptRepo: attemptRepo}
}

// History returns all attempts for a transaction, oldest first.
func (q *Queries) History(ctx context.Context, transactionID string) ([]*exception.RetryAttempt, error) {
	ex, err := q.exceptionRepo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return q.attemptRepo.List(ctx, ex.ID)
}

// Latest returns the most recent attempt for a transaction.
func (q *Queries) Latest(ctx context.Context, transactionID string) (*exception.RetryAttempt, error) {
	ex, err := q.exceptionRepo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return q.attemptRepo.Latest(ctx, ex.ID)
}

// Statistics aggregates attempt counts by status for a transaction.
func (q *Queries) Statistics(ctx context.Context, transactionID string) (*exception.AttemptStatistics, error) {
	ex, err := q.exceptionRepo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	attempts, err := q.attemptRepo.List(ctx, ex.ID)
	if err != nil {
		return nil, err
	}

	stats := &exception.AttemptStatistics{TransactionID: transactionID, Total: len(attempts)}
	for _, a := range attempts {
		switch a.Status {
		case exception.AttemptPending:
			stats.Pending++
		case exception.AttemptRetrying:
			stats.Retrying++
		case exception.AttemptSuccess:
			stats.Successful++
		case exception.AttemptFailed:
			stats.Failed++
		case exception.AttemptCancelled:
			stats.Cancelled++
		}
		if a.CompletedAt != nil && (stats.LastAttemptAt == nil || a.CompletedAt.After(*stats.LastAttemptAt)) {
			stats.LastAttemptAt = a.CompletedAt
		}
	}
	return stats, nil
}
