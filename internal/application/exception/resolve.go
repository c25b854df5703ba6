package exception

import (
	"context"
	"fmt"

	domainException "github.com/biopro/interface-exception-collector/internal/domain/exception"
	"github.com/biopro/interface-exception-collector/internal/events"
	"github.com/rs/zerolog"
)

// ResolveUseCase handles explicit manual resolution by an operator. This
// and a successful retry attempt are the only two paths to RESOLVED.
type ResolveUseCase struct {
	exceptionRepo domainException.Repository
	txManager     TransactionManager
	publisher     events.Publisher
	logger        zerolog.Logger
}

func NewResolveUseCase(
	exceptionRepo domainException.Repository,
	txManager TransactionManager,
	publisher events.Publisher,
	logger zerolog.Logger,
) *ResolveUseCase {
	return &ResolveUseCase{
		exceptionRepo: exceptionRepo,
		txManager:     txManager,
		publisher:     publisher,
		logger:        logger.With().Str("component", "resolve").Logger(),
	}
}

// ResolveRequest carries a manual resolution.
type ResolveRequest struct {
	TransactionID string
	ResolvedBy    string
	Method        domainException.ResolutionMethod
	Notes         string
	// TriggerID is the operation ID of the API request, used as causation
	// for the ExceptionResolved event.
	TriggerID string
}

func (uc *ResolveUseCase) Execute(ctx context.Context, req ResolveRequest) (*domainException.Exception, error) {
	ex, err := uc.exceptionRepo.GetByTransactionID(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = domainException.ResolutionManual
	}
	if err := ex.Resolve(req.ResolvedBy, method, req.Notes); err != nil {
		return nil, err
	}

	err = uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.exceptionRepo.Update(txCtx, ex); err != nil {
			return err
		}
		env, err := events.NewEnvelope(events.TypeExceptionResolved, ex.TransactionID, req.TriggerID, events.ExceptionResolved{
			ExceptionID:      ex.ID.String(),
			TransactionID:    ex.TransactionID,
			ResolvedBy:       req.ResolvedBy,
			ResolvedAt:       *ex.ResolvedAt,
			ResolutionMethod: string(method),
			ResolutionNotes:  req.Notes,
			TotalAttempts:    ex.RetryCount,
		})
		if err != nil {
			return err
		}
		_ = uc.publisher.Publish(txCtx, ex.ID, env)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolve exception: %w", err)
	}

	uc.logger.Info().
		Str("transaction_id", req.TransactionID).
		Str("resolved_by", req.ResolvedBy).
		Str("method", string(method)).
		Msg("Exception manually resolved")
	return ex, nil
}
