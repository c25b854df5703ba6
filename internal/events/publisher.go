package events

import (
	"context"

	"github.com/biopro/interface-exception-collector/internal/domain/outbox"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Publisher emits lifecycle event envelopes. Publication is
// fire-and-forget relative to the business operation that produced the
// event: callers log failures and never roll back their state transition.
// Delivery downstream is at-least-once; consumers de-duplicate on eventId.
type Publisher interface {
	Publish(ctx context.Context, exceptionID uuid.UUID, env *Envelope) error
}

// OutboxPublisher stores envelopes in the transactional outbox. When the
// caller runs inside a database transaction the entry commits atomically
// with the state change; the worker relay then forwards it to the event
// stream.
type OutboxPublisher struct {
	repo   outbox.Repository
	logger zerolog.Logger
}

func NewOutboxPublisher(repo outbox.Repository, logger zerolog.Logger) *OutboxPublisher {
	return &OutboxPublisher{
		repo:   repo,
		logger: logger.With().Str("component", "outbox_publisher").Logger(),
	}
}

func (p *OutboxPublisher) Publish(ctx context.Context, exceptionID uuid.UUID, env *Envelope) error {
	entry := outbox.NewEntry("exception", exceptionID, env.EventType, env.AsMap())
	if err := p.repo.Insert(ctx, entry); err != nil {
		p.logger.Error().Err(err).
			Str("event_type", env.EventType).
			Str("event_id", env.EventID.String()).
			Str("correlation_id", env.CorrelationID).
			Msg("Failed to enqueue lifecycle event")
		return err
	}
	return nil
}
