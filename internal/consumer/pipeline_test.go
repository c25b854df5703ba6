package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/biopro/interface-exception-collector/internal/domain/errors"
)

type fakeDeadLetterer struct {
	mu       sync.Mutex
	messages []Message
	reasons  []string
	attempts []uint
	err      error
}

func (f *fakeDeadLetterer) PublishToDLT(ctx context.Context, msg Message, reason string, handlerErr error, attempts uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	f.reasons = append(f.reasons, reason)
	f.attempts = append(f.attempts, attempts)
	return nil
}

func fastPolicy() BackoffPolicy {
	return BackoffPolicy{
		InitialInterval: time.Millisecond,
		Multiplier:      2.0,
		MaxInterval:     5 * time.Millisecond,
		MaxAttempts:     3,
	}
}

func testMessage() Message {
	return Message{
		ID:     "1692000000000-0",
		Stream: "exceptions:inbound",
		Key:    "TXN-1",
		Values: map[string]any{"envelope": `{"eventType":"OrderRejectedEvent"}`},
	}
}

func TestPipelineHandle(t *testing.T) {
	t.Run("successful handler acks without retries", func(t *testing.T) {
		dlq := &fakeDeadLetterer{}
		p := NewPipeline(fastPolicy(), dlq, zerolog.Nop())

		calls := 0
		err := p.Handle(context.Background(), testMessage(), func(ctx context.Context, msg Message) error {
			calls++
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, calls)
		assert.Empty(t, dlq.messages)
	})

	t.Run("transient failure recovers within budget", func(t *testing.T) {
		dlq := &fakeDeadLetterer{}
		p := NewPipeline(fastPolicy(), dlq, zerolog.Nop())

		calls := 0
		err := p.Handle(context.Background(), testMessage(), func(ctx context.Context, msg Message) error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Empty(t, dlq.messages)
	})

	t.Run("exhausted retries route to dead letter", func(t *testing.T) {
		dlq := &fakeDeadLetterer{}
		p := NewPipeline(fastPolicy(), dlq, zerolog.Nop())

		calls := 0
		err := p.Handle(context.Background(), testMessage(), func(ctx context.Context, msg Message) error {
			calls++
			return errors.New("persistent")
		})

		require.NoError(t, err, "dead-lettered message is a terminal outcome")
		assert.Equal(t, 3, calls)
		require.Len(t, dlq.messages, 1)
		assert.Equal(t, "retries_exhausted", dlq.reasons[0])
		assert.Equal(t, uint(3), dlq.attempts[0])
		assert.Equal(t, "exceptions:inbound", dlq.messages[0].Stream)
	})

	t.Run("deserialization failure skips retries", func(t *testing.T) {
		dlq := &fakeDeadLetterer{}
		p := NewPipeline(fastPolicy(), dlq, zerolog.Nop())

		calls := 0
		err := p.Handle(context.Background(), testMessage(), func(ctx context.Context, msg Message) error {
			calls++
			return domainErrors.ErrDeserialization
		})

		require.NoError(t, err)
		assert.Equal(t, 1, calls, "poison messages must not be redelivered")
		require.Len(t, dlq.messages, 1)
		assert.Equal(t, "deserialization_error", dlq.reasons[0])
	})

	t.Run("failed dead letter routing keeps message unacked", func(t *testing.T) {
		dlq := &fakeDeadLetterer{err: errors.New("stream unavailable")}
		p := NewPipeline(fastPolicy(), dlq, zerolog.Nop())

		err := p.Handle(context.Background(), testMessage(), func(ctx context.Context, msg Message) error {
			return domainErrors.ErrDeserialization
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "stream unavailable")
	})

	t.Run("zero max attempts falls back to defaults", func(t *testing.T) {
		p := NewPipeline(BackoffPolicy{}, &fakeDeadLetterer{}, zerolog.Nop())
		assert.Equal(t, DefaultBackoffPolicy(), p.policy)
	})
}
