package exception

import (
	"context"
	"fmt"

	domainException "github.com/biopro/interface-exception-collector/internal/domain/exception"
	"github.com/biopro/interface-exception-collector/internal/events"
	"github.com/rs/zerolog"
)

// AcknowledgeUseCase handles explicit operator acknowledgment.
type AcknowledgeUseCase struct {
	exceptionRepo domainException.Repository
	txManager     TransactionManager
	publisher     events.Publisher
	logger        zerolog.Logger
}

func NewAcknowledgeUseCase(
	exceptionRepo domainException.Repository,
	txManager TransactionManager,
	publisher events.Publisher,
	logger zerolog.Logger,
) *AcknowledgeUseCase {
	return &AcknowledgeUseCase{
		exceptionRepo: exceptionRepo,
		txManager:     txManager,
		publisher:     publisher,
		logger:        logger.With().Str("component", "acknowledge").Logger(),
	}
}

// Execute acknowledges an exception. triggerID is the operation ID of the
// API request, used as causation for the resulting status-changed event.
func (uc *AcknowledgeUseCase) Execute(ctx context.Context, transactionID, acknowledgedBy, triggerID string) (*domainException.Exception, error) {
	ex, err := uc.exceptionRepo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	from := ex.Status
	if err := ex.Acknowledge(acknowledgedBy); err != nil {
		return nil, err
	}
	if from == ex.Status {
		return ex, nil // already acknowledged
	}

	err = uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.exceptionRepo.Update(txCtx, ex); err != nil {
			return err
		}
		env, err := events.NewEnvelope(events.TypeExceptionStatusChanged, ex.TransactionID, triggerID, events.ExceptionStatusChanged{
			ExceptionID:   ex.ID.String(),
			TransactionID: ex.TransactionID,
			FromStatus:    string(from),
			ToStatus:      string(ex.Status),
			ChangedBy:     acknowledgedBy,
		})
		if err != nil {
			return err
		}
		_ = uc.publisher.Publish(txCtx, ex.ID, env)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("acknowledge exception: %w", err)
	}

	uc.logger.Info().Str("transaction_id", transactionID).Str("acknowledged_by", acknowledgedBy).Msg("Exception acknowledged")
	return ex, nil
}
