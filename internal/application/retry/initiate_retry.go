package retry

import (
	"context"

	domainErrors "github.com/biopro/interface-exception-collector/internal/domain/errors"
	"github.com/biopro/interface-exception-collector/internal/domain/exception"
	"github.com/biopro/interface-exception-collector/internal/events"
	"github.com/rs/zerolog"
)

// InitiateRetryRequest asks for a new retry attempt.
type InitiateRetryRequest struct {
	TransactionID string
	Reason        string
	Priority      string
	InitiatedBy   string
	// TriggerID identifies the request or event that asked for this retry;
	// it becomes the causationId of the RetryAttemptStarted event.
	TriggerID string
}

// InitiateRetryResponse is returned on acceptance.
type InitiateRetryResponse struct {
	RetryID       string
	AttemptNumber int
	Status        exception.AttemptStatus
}

// InitiateRetryUseCase accepts retry requests: it allocates the next
// attempt number, enforces the single-active-attempt invariant through a
// conditional insert, auto-acknowledges fresh exceptions, publishes
// RetryAttemptStarted and hands the attempt to the dispatcher. Once a
// request is accepted, nothing on the dispatch path is ever surfaced to
// the caller.
type InitiateRetryUseCase struct {
	exceptionRepo exception.Repository
	attemptRepo   exception.AttemptRepository
	txManager     TransactionManager
	publisher     events.Publisher
	dispatcher    Dispatcher
	logger        zerolog.Logger
}

// NewInitiateRetryUseCase creates a new InitiateRetryUseCase.
func NewInitiateRetryUseCase(
	exceptionRepo exception.Repository,
	attemptRepo exception.AttemptRepository,
	txManager TransactionManager,
	publisher events.Publisher,
	dispatcher Dispatcher,
	logger zerolog.Logger,
) *InitiateRetryUseCase {
	return &InitiateRetryUseCase{
		exceptionRepo: exceptionRepo,
		attemptRepo:   attemptRepo,
		txManager:     txManager,
		publisher:     publisher,
		dispatcher:    dispatcher,
		logger:        logger.With().Str("component", "initiate_retry").Logger(),
	}
}

// Execute validates and accepts one retry request.
func (uc *InitiateRetryUseCase) Execute(ctx context.Context, req InitiateRetryRequest) (*InitiateRetryResponse, error) {
	if req.InitiatedBy == "" {
		return nil, domainErrors.NewValidationError("initiated_by", "cannot be empty")
	}

	ex, err := uc.exceptionRepo.GetByTransactionID(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}
	if !ex.CanRetry() {
		return nil, domainErrors.NewDomainError(
			"retry_not_allowed",
			"exception "+req.TransactionID+" is not retryable or already resolved",
			domainErrors.ErrRetryNotAllowed,
		)
	}
	if ex.RetriesExhausted() {
		return nil, domainErrors.NewDomainError(
			"retries_exhausted",
			"exception "+req.TransactionID+" used up its retry budget",
			domainErrors.ErrMaxRetryAttemptsReached,
		)
	}

	var (
		attempt    *exception.RetryAttempt
		startedEnv *events.Envelope
	)
	err = uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		maxNumber, err := uc.attemptRepo.MaxAttemptNumber(txCtx, ex.ID)
		if err != nil {
			return err
		}

		attempt, err = exception.NewAttempt(ex, maxNumber+1, req.InitiatedBy, req.Reason, req.Priority)
		if err != nil {
			return err
		}

		// Atomic guard: the insert only lands if no PENDING or RETRYING
		// sibling exists. A losing concurrent caller gets a conflict here.
		if err := uc.attemptRepo.InsertPending(txCtx, attempt); err != nil {
			return err
		}

		// First retry on a fresh exception acknowledges it implicitly.
		if ex.Status == exception.StatusNew {
			from := ex.Status
			if err := ex.Acknowledge(req.InitiatedBy); err != nil {
				return err
			}
			if err := uc.exceptionRepo.Update(txCtx, ex); err != nil {
				return err
			}
			uc.publishStatusChanged(txCtx, ex, from, req.InitiatedBy, req.TriggerID)
		}

		startedEnv, err = events.NewEnvelope(events.TypeRetryAttemptStarted, ex.TransactionID, req.TriggerID, events.RetryAttemptStarted{
			ExceptionID:   ex.ID.String(),
			TransactionID: ex.TransactionID,
			AttemptNumber: attempt.AttemptNumber,
			InitiatedBy:   attempt.InitiatedBy,
			InitiatedAt:   attempt.InitiatedAt,
			Reason:        attempt.Reason,
			Priority:      attempt.Priority,
		})
		if err != nil {
			return err
		}
		_ = uc.publisher.Publish(txCtx, ex.ID, startedEnv)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Dispatch is asynchronous and best-effort after acceptance: a failed
	// enqueue leaves the attempt PENDING, visible and cancellable.
	if err := uc.dispatcher.EnqueueAttempt(ctx, ex.TransactionID, attempt.AttemptNumber, startedEnv.EventID.String()); err != nil {
		uc.logger.Error().Err(err).
			Str("transaction_id", ex.TransactionID).
			Int("attempt_number", attempt.AttemptNumber).
			Msg("Failed to enqueue retry attempt for dispatch")
	}

	uc.logger.Info().
		Str("transaction_id", ex.TransactionID).
		Int("attempt_number", attempt.AttemptNumber).
		Str("initiated_by", req.InitiatedBy).
		Msg("Retry attempt accepted")

	return &InitiateRetryResponse{
		RetryID:       attempt.ID.String(),
		AttemptNumber: attempt.AttemptNumber,
		Status:        attempt.Status,
	}, nil
}

func (uc *InitiateRetryUseCase) publishStatusChanged(ctx context.Context, ex *exception.Exception, from exception.Status, by, causationID string) {
	env, err := events.NewEnvelope(events.TypeExceptionStatusChanged, ex.TransactionID, causationID, events.ExceptionStatusChanged{
		ExceptionID:   ex.ID.String(),
		TransactionID: ex.TransactionID,
		FromStatus:    string(from),
		ToStatus:      string(ex.Status),
		ChangedBy:     by,
	})
	if err != nil {
		uc.logger.Error().Err(err).Str("transaction_id", ex.TransactionID).Msg("Failed to build status-changed event")
		return
	}
	_ = uc.publisher.Publish(ctx, ex.ID, env)
}
