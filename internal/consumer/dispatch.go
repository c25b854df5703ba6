package consumer

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"
)

// AttemptExecutor runs one accepted retry attempt to a terminal outcome.
type AttemptExecutor interface {
	Execute(ctx context.Context, transactionID string, attemptNumber int, causationID string) error
}

// Lock is a distributed mutual-exclusion handle for one transaction.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockFactory builds the per-transaction lock guarding attempt execution.
type LockFactory func(transactionID string) Lock

// Acker acknowledges one stream entry for the consumer group.
type Acker interface {
	Ack(ctx context.Context, messageID string) error
}

// DispatchResult classifies one delivery for the caller's metrics.
type DispatchResult string

const (
	DispatchExecuted  DispatchResult = "executed"
	DispatchFailed    DispatchResult = "failed"
	DispatchSkipped   DispatchResult = "skipped"
	DispatchMalformed DispatchResult = "malformed"
)

// RetryDispatchHandler processes deliveries from the retry dispatch
// stream. Every delivery ends acknowledged: a malformed message carries
// no recoverable work, lock contention means another worker owns the
// attempt, and execution failures are recorded terminally by the
// executor itself. An unacked entry would otherwise sit in the group's
// pending list until the claim sweep redelivers it.
type RetryDispatchHandler struct {
	executor AttemptExecutor
	locks    LockFactory
	logger   zerolog.Logger
}

func NewRetryDispatchHandler(executor AttemptExecutor, locks LockFactory, logger zerolog.Logger) *RetryDispatchHandler {
	return &RetryDispatchHandler{
		executor: executor,
		locks:    locks,
		logger:   logger.With().Str("component", "retry_dispatch_handler").Logger(),
	}
}

// Handle parses one dispatch message, takes the per-transaction lock and
// executes the attempt, acknowledging the message on every path.
func (h *RetryDispatchHandler) Handle(ctx context.Context, msg Message, ack Acker) DispatchResult {
	transactionID, _ := msg.Values["transaction_id"].(string)
	attemptStr, _ := msg.Values["attempt_number"].(string)
	causationID, _ := msg.Values["causation_id"].(string)
	attemptNumber, err := strconv.Atoi(attemptStr)
	if transactionID == "" || err != nil || attemptNumber < 1 {
		h.logger.Error().Str("message_id", msg.ID).Msg("Malformed retry dispatch message")
		h.ack(ctx, ack, msg.ID)
		return DispatchMalformed
	}

	// One execution per transaction across worker instances. A held lock
	// means another worker owns this attempt: ack and move on; a duplicate
	// delivery of an already-dispatched attempt is a no-op anyway.
	lock := h.locks(transactionID)
	acquired, err := lock.Acquire(ctx)
	if err != nil || !acquired {
		h.logger.Warn().Str("transaction_id", transactionID).Msg("Could not acquire retry lock, skipping")
		h.ack(ctx, ack, msg.ID)
		return DispatchSkipped
	}
	defer lock.Release(ctx)

	h.logger.Info().
		Str("transaction_id", transactionID).
		Int("attempt_number", attemptNumber).
		Msg("Executing retry attempt")

	result := DispatchExecuted
	if err := h.executor.Execute(ctx, transactionID, attemptNumber, causationID); err != nil {
		h.logger.Error().Err(err).Str("transaction_id", transactionID).Msg("Failed to execute retry attempt")
		result = DispatchFailed
	}
	h.ack(ctx, ack, msg.ID)
	return result
}

func (h *RetryDispatchHandler) ack(ctx context.Context, ack Acker, messageID string) {
	if err := ack.Ack(ctx, messageID); err != nil {
		h.logger.Error().Err(err).Str("message_id", messageID).Msg("Failed to ack dispatch message")
	}
}
