package exception

import (
	"context"
	"fmt"
	"time"

	"github.com/biopro/interface-exception-collector/internal/alerting"
	"github.com/biopro/interface-exception-collector/internal/classification"
	domainErrors "github.com/biopro/interface-exception-collector/internal/domain/errors"
	domainException "github.com/biopro/interface-exception-collector/internal/domain/exception"
	"github.com/biopro/interface-exception-collector/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CaptureParams carries one inbound failure event, already decoded.
type CaptureParams struct {
	// InboundEventID roots the causal chain for everything derived from
	// this capture.
	InboundEventID  string
	TransactionID   string
	InterfaceType   domainException.InterfaceType
	ExceptionReason string
	Operation       string
	ExternalID      string
	CustomerID      string
	LocationCode    string
	EventTimestamp  time.Time
}

// CaptureResult reports what capture did.
type CaptureResult struct {
	Exception *domainException.Exception
	Duplicate bool
}

// CaptureUseCase turns inbound failure events into exception records:
// classify, persist as NEW, publish ExceptionCaptured, and escalate
// critical cases straight away.
type CaptureUseCase struct {
	exceptionRepo domainException.Repository
	txManager     TransactionManager
	classifier    *classification.Classifier
	publisher     events.Publisher
	alertEngine   *alerting.Engine
	maxRetries    int
	logger        zerolog.Logger
}

// NewCaptureUseCase creates a new CaptureUseCase.
func NewCaptureUseCase(
	exceptionRepo domainException.Repository,
	txManager TransactionManager,
	classifier *classification.Classifier,
	publisher events.Publisher,
	alertEngine *alerting.Engine,
	maxRetries int,
	logger zerolog.Logger,
) *CaptureUseCase {
	return &CaptureUseCase{
		exceptionRepo: exceptionRepo,
		txManager:     txManager,
		classifier:    classifier,
		publisher:     publisher,
		alertEngine:   alertEngine,
		maxRetries:    maxRetries,
		logger:        logger.With().Str("component", "capture").Logger(),
	}
}

// Execute captures one failure event. The transaction ID is the
// idempotency key: a second capture for the same transaction is a no-op
// returning the existing record.
func (uc *CaptureUseCase) Execute(ctx context.Context, p CaptureParams) (*CaptureResult, error) {
	if p.TransactionID == "" {
		return nil, domainErrors.NewValidationError("transaction_id", "cannot be empty")
	}

	if existing, err := uc.exceptionRepo.GetByTransactionID(ctx, p.TransactionID); err == nil && existing != nil {
		uc.logger.Debug().Str("transaction_id", p.TransactionID).Msg("Duplicate capture, ignoring")
		return &CaptureResult{Exception: existing, Duplicate: true}, nil
	}

	category, severity := uc.classifier.Classify(p.ExceptionReason)

	ex, err := domainException.New(domainException.NewParams{
		TransactionID:   p.TransactionID,
		InterfaceType:   p.InterfaceType,
		ExceptionReason: p.ExceptionReason,
		Operation:       p.Operation,
		ExternalID:      p.ExternalID,
		CustomerID:      p.CustomerID,
		LocationCode:    p.LocationCode,
		Category:        category,
		Severity:        severity,
		Retryable:       classification.Retryable(category),
		MaxRetries:      uc.maxRetries,
		Timestamp:       p.EventTimestamp,
	})
	if err != nil {
		return nil, err
	}

	var capturedEnv *events.Envelope
	err = uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.exceptionRepo.Create(txCtx, ex); err != nil {
			return err
		}

		capturedEnv, err = events.NewEnvelope(events.TypeExceptionCaptured, ex.TransactionID, p.InboundEventID, events.ExceptionCaptured{
			ExceptionID:     ex.ID.String(),
			TransactionID:   ex.TransactionID,
			InterfaceType:   string(ex.InterfaceType),
			Operation:       ex.Operation,
			ExceptionReason: ex.ExceptionReason,
			Category:        string(ex.Category),
			Severity:        string(ex.Severity),
			Retryable:       ex.Retryable,
			CustomerID:      ex.CustomerID,
			LocationCode:    ex.LocationCode,
		})
		if err != nil {
			return err
		}
		uc.publish(txCtx, ex.ID, capturedEnv)

		if alert := uc.alertEngine.EvaluateCapture(ex); alert != nil {
			if err := ex.Escalate(); err != nil {
				return err
			}
			if err := uc.exceptionRepo.Update(txCtx, ex); err != nil {
				return err
			}
			uc.publishAlert(txCtx, ex, alert, capturedEnv.EventID.String())
		}
		return nil
	})
	if err != nil {
		// A concurrent consumer may have won the unique-index race.
		if existing, lookupErr := uc.exceptionRepo.GetByTransactionID(ctx, p.TransactionID); lookupErr == nil && existing != nil {
			return &CaptureResult{Exception: existing, Duplicate: true}, nil
		}
		return nil, fmt.Errorf("capture exception: %w", err)
	}

	uc.logger.Info().
		Str("transaction_id", ex.TransactionID).
		Str("interface_type", string(ex.InterfaceType)).
		Str("category", string(ex.Category)).
		Str("severity", string(ex.Severity)).
		Msg("Exception captured")

	return &CaptureResult{Exception: ex}, nil
}

// publish enqueues a lifecycle event; failures are logged inside the
// publisher and never abort the capture.
func (uc *CaptureUseCase) publish(ctx context.Context, exID uuid.UUID, env *events.Envelope) {
	_ = uc.publisher.Publish(ctx, exID, env)
}

func (uc *CaptureUseCase) publishAlert(ctx context.Context, ex *domainException.Exception, alert *alerting.Alert, causationID string) {
	env, err := events.NewEnvelope(events.TypeCriticalAlert, ex.TransactionID, causationID, events.CriticalExceptionAlert{
		ExceptionID:             ex.ID.String(),
		TransactionID:           ex.TransactionID,
		InterfaceType:           string(ex.InterfaceType),
		AlertLevel:              string(alert.Level),
		AlertReason:             alert.Reason,
		EscalationTeam:          string(alert.EscalationTeam),
		RequiresImmediateAction: alert.RequiresImmediateAction,
		ExceptionReason:         ex.ExceptionReason,
	})
	if err != nil {
		uc.logger.Error().Err(err).Str("transaction_id", ex.TransactionID).Msg("Failed to build alert event")
		return
	}
	_ = uc.publisher.Publish(ctx, ex.ID, env)
}
