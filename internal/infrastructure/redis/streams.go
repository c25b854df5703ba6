package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/biopro/interface-exception-collector/internal/consumer"
	"github.com/redis/go-redis/v9"
)

const (
	// InboundStream carries failure events published by the upstream
	// order/collection/distribution interfaces.
	InboundStream = "exceptions:inbound"
	// LifecycleStream carries the collector's outbound lifecycle events.
	LifecycleStream = "exceptions:lifecycle"
	// RetryDispatchStream carries accepted retry attempts awaiting execution.
	RetryDispatchStream = "exceptions:retry-dispatch"

	// DLTSuffix is appended to a stream name to form its dead-letter topic.
	DLTSuffix = ".DLT"
)

type StreamProducer struct {
	client *redis.Client
}

func NewStreamProducer(client *redis.Client) *StreamProducer {
	return &StreamProducer{client: client}
}

// PublishLifecycleEvent relays one outbox envelope to the lifecycle stream.
func (p *StreamProducer) PublishLifecycleEvent(ctx context.Context, envelope map[string]any) error {
	_, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: LifecycleStream,
		Values: envelope,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish lifecycle event: %w", err)
	}
	return nil
}

// PublishRetryDispatch enqueues an accepted attempt for the worker.
func (p *StreamProducer) PublishRetryDispatch(ctx context.Context, transactionID string, attemptNumber int, causationID string) error {
	_, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: RetryDispatchStream,
		Values: map[string]any{
			"transaction_id": transactionID,
			"attempt_number": attemptNumber,
			"causation_id":   causationID,
			"timestamp":      time.Now().Unix(),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish retry dispatch: %w", err)
	}
	return nil
}

// PublishToDLT routes a message unchanged to `<stream>.DLT`, preserving
// its key and values and adding the dead-letter metadata.
func (p *StreamProducer) PublishToDLT(ctx context.Context, msg consumer.Message, reason string, handlerErr error, attempts uint) error {
	values := make(map[string]any, len(msg.Values)+5)
	for k, v := range msg.Values {
		values[k] = v
	}
	if msg.Key != "" {
		values["key"] = msg.Key
	}
	values["dlt_reason"] = reason
	values["dlt_error"] = handlerErr.Error()
	values["dlt_attempts"] = attempts
	values["dlt_original_id"] = msg.ID
	values["dlt_timestamp"] = time.Now().Unix()

	_, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: msg.Stream + DLTSuffix,
		Values: values,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to DLT: %w", err)
	}
	return nil
}

type StreamConsumer struct {
	client        *redis.Client
	stream        string
	group         string
	consumer      string
	batchSize     int64
	blockDuration time.Duration
}

func NewStreamConsumer(
	client *redis.Client,
	stream string,
	group string,
	consumer string,
	batchSize int64,
	blockDuration time.Duration,
) *StreamConsumer {
	return &StreamConsumer{
		client:        client,
		stream:        stream,
		group:         group,
		consumer:      consumer,
		batchSize:     batchSize,
		blockDuration: blockDuration,
	}
}

func (c *StreamConsumer) CreateGroup(ctx context.Context) error {
	// Create stream if it doesn't exist
	const busyGroupMsg = "BUSYGROUP"
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), busyGroupMsg) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

func (c *StreamConsumer) Read(ctx context.Context) ([]redis.XStream, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    c.batchSize,
		Block:    c.blockDuration,
	}).Result()

	if err != nil {
		if err == redis.Nil {
			// No new messages
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	return streams, nil
}

func (c *StreamConsumer) Ack(ctx context.Context, messageID string) error {
	err := c.client.XAck(ctx, c.stream, c.group, messageID).Err()
	if err != nil {
		return fmt.Errorf("failed to ack message: %w", err)
	}
	return nil
}

// ClaimStale takes over the group's pending entries that have been idle
// for at least minIdle. Read only returns entries never delivered to the
// group, so an entry read by a consumer that crashed before acking is
// invisible to it; this sweep hands such entries to the caller for
// reprocessing.
func (c *StreamConsumer) ClaimStale(ctx context.Context, minIdle time.Duration) ([]redis.XMessage, error) {
	messages, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    c.batchSize,
	}).Result()

	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to claim stale messages: %w", err)
	}

	return messages, nil
}

// RetryDispatcher adapts the stream producer to the orchestrator's
// Dispatcher port.
type RetryDispatcher struct {
	producer *StreamProducer
}

func NewRetryDispatcher(producer *StreamProducer) *RetryDispatcher {
	return &RetryDispatcher{producer: producer}
}

func (d *RetryDispatcher) EnqueueAttempt(ctx context.Context, transactionID string, attemptNumber int, causationID string) error {
	return d.producer.PublishRetryDispatch(ctx, transactionID, attemptNumber, causationID)
}
