// Package consumer is the inbound edge of the collector: it wraps every
// message handler with exponential backoff and dead-letter routing so no
// message is silently dropped and no poison message blocks its partition.
package consumer

import (
	"context"
	"errors"
	"time"

	domainErrors "github.com/biopro/interface-exception-collector/internal/domain/errors"
	pkgretry "github.com/biopro/interface-exception-collector/pkg/retry"
	"github.com/rs/zerolog"
)

// BackoffPolicy is the configurable redelivery policy, independent of any
// messaging library.
type BackoffPolicy struct {
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
	MaxAttempts     uint
}

// DefaultBackoffPolicy returns the default redelivery policy.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		InitialInterval: 500 * time.Millisecond,
		Multiplier:      2.0,
		MaxInterval:     30 * time.Second,
		MaxAttempts:     5,
	}
}

// Message is one inbound message: a stream entry with its key and values
// preserved end to end, DLT routing included.
type Message struct {
	ID     string
	Stream string
	Key    string
	Values map[string]any
}

// DeadLetterer routes a message unchanged to `<stream>.DLT`.
type DeadLetterer interface {
	PublishToDLT(ctx context.Context, msg Message, reason string, handlerErr error, attempts uint) error
}

// Handler processes one inbound message.
type Handler func(ctx context.Context, msg Message) error

// Pipeline wraps handlers with the backoff/DLQ policy.
type Pipeline struct {
	policy BackoffPolicy
	dlq    DeadLetterer
	logger zerolog.Logger
}

func NewPipeline(policy BackoffPolicy, dlq DeadLetterer, logger zerolog.Logger) *Pipeline {
	if policy.MaxAttempts == 0 {
		policy = DefaultBackoffPolicy()
	}
	return &Pipeline{
		policy: policy,
		dlq:    dlq,
		logger: logger.With().Str("component", "consumer_pipeline").Logger(),
	}
}

// Handle runs one message through the handler with the redelivery policy.
// It returns nil once the message reached a terminal outcome — processed
// or dead-lettered — so the caller can acknowledge it. It returns an
// error only when dead-letter routing itself failed, in which case the
// message must stay unacknowledged.
func (p *Pipeline) Handle(ctx context.Context, msg Message, handler Handler) error {
	var attempts uint

	err := pkgretry.Do(ctx, pkgretry.Config{
		MaxAttempts:  p.policy.MaxAttempts,
		InitialDelay: p.policy.InitialInterval,
		MaxDelay:     p.policy.MaxInterval,
		Multiplier:   p.policy.Multiplier,
	}, func() error {
		attempts++
		err := handler(ctx, msg)
		if err == nil {
			return nil
		}
		// Malformed payloads never deserialize on redelivery either:
		// straight to the dead letter, zero retries.
		if errors.Is(err, domainErrors.ErrDeserialization) {
			return pkgretry.Unrecoverable(err)
		}
		return err
	}, func(n uint, err error) {
		p.logger.Warn().Err(err).
			Str("stream", msg.Stream).
			Str("message_id", msg.ID).
			Uint("attempt", n+1).
			Msg("Message handling failed, backing off")
	})
	if err == nil {
		return nil
	}

	reason := "retries_exhausted"
	if errors.Is(err, domainErrors.ErrDeserialization) {
		reason = "deserialization_error"
	}

	p.logger.Error().Err(err).
		Str("stream", msg.Stream).
		Str("message_id", msg.ID).
		Str("reason", reason).
		Uint("attempts", attempts).
		Msg("Routing message to dead letter")

	if dlqErr := p.dlq.PublishToDLT(ctx, msg, reason, err, attempts); dlqErr != nil {
		// Leave the message unacked; redelivery will reattempt DLT routing.
		return dlqErr
	}
	return nil
}
