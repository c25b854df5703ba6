package retry

import (
	"context"
	"fmt"

	"github.com/biopro/interface-exception-collector/internal/domain/exception"
	"github.com/biopro/interface-exception-collector/internal/events"
	"github.com/rs/zerolog"
)

// CancelRetryUseCase cancels a PENDING retry attempt. A RETRYING attempt
// is already dispatched and can only be awaited to completion.
type CancelRetryUseCase struct {
	exceptionRepo exception.Repository
	attemptRepo   exception.AttemptRepository
	txManager     TransactionManager
	publisher     events.Publisher
	logger        zerolog.Logger
}

func NewCancelRetryUseCase(
	exceptionRepo exception.Repository,
	attemptRepo exception.AttemptRepository,
	txManager TransactionManager,
	publisher events.Publisher,
	logger zerolog.Logger,
) *CancelRetryUseCase {
	return &CancelRetryUseCase{
		exceptionRepo: exceptionRepo,
		attemptRepo:   attemptRepo,
		txManager:     txManager,
		publisher:     publisher,
		logger:        logger.With().Str("component", "cancel_retry").Logger(),
	}
}

// Execute cancels one attempt. triggerID is the operation ID of the API
// request, used as causation for the completion event.
func (uc *CancelRetryUseCase) Execute(ctx context.Context, transactionID string, attemptNumber int, triggerID string) (*exception.RetryAttempt, error) {
	ex, err := uc.exceptionRepo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	attempt, err := uc.attemptRepo.Get(ctx, ex.ID, attemptNumber)
	if err != nil {
		return nil, err
	}

	if err := attempt.Cancel(); err != nil {
		return nil, err
	}

	err = uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		// The read above may be stale against a concurrent dispatch; the
		// guarded update is what decides whether cancellation stands.
		if err := uc.attemptRepo.CancelPending(txCtx, attempt); err != nil {
			return err
		}
		env, err := events.NewEnvelope(events.TypeRetryAttemptCompleted, ex.TransactionID, triggerID, events.RetryAttemptCompleted{
			ExceptionID:   ex.ID.String(),
			TransactionID: ex.TransactionID,
			AttemptNumber: attempt.AttemptNumber,
			Status:        string(attempt.Status),
			Success:       false,
			Message:       "attempt cancelled before dispatch",
			CompletedAt:   attempt.CompletedAt,
		})
		if err != nil {
			return err
		}
		_ = uc.publisher.Publish(txCtx, ex.ID, env)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cancel retry: %w", err)
	}

	uc.logger.Info().
		Str("transaction_id", transactionID).
		Int("attempt_number", attemptNumber).
		Msg("Retry attempt cancelled")
	return attempt, nil
}
