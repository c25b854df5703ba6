package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	payload := ExceptionCaptured{
		ExceptionID:   "3e9f6b1a-1111-4d2a-9c8a-000000000001",
		TransactionID: "TXN-12345",
		InterfaceType: "ORDER",
	}

	env, err := NewEnvelope(TypeExceptionCaptured, "TXN-12345", "cause-event-id", payload)

	require.NoError(t, err)
	assert.NotEqual(t, "", env.EventID.String())
	assert.Equal(t, TypeExceptionCaptured, env.EventType)
	assert.Equal(t, EventVersion, env.EventVersion)
	assert.Equal(t, Source, env.Source)
	assert.Equal(t, "TXN-12345", env.CorrelationID)
	assert.Equal(t, "cause-event-id", env.CausationID)
	assert.WithinDuration(t, time.Now().UTC(), env.OccurredOn, time.Second)

	var decoded ExceptionCaptured
	require.NoError(t, env.DecodePayload(&decoded))
	assert.Equal(t, payload.TransactionID, decoded.TransactionID)
	assert.Equal(t, payload.InterfaceType, decoded.InterfaceType)
}

func TestNewEnvelopeUniqueEventIDs(t *testing.T) {
	a, err := NewEnvelope(TypeRetryAttemptStarted, "TXN-1", "", nil)
	require.NoError(t, err)
	b, err := NewEnvelope(TypeRetryAttemptStarted, "TXN-1", "", nil)
	require.NoError(t, err)

	assert.NotEqual(t, a.EventID, b.EventID)
}

func TestNewEnvelopeMarshalFailure(t *testing.T) {
	_, err := NewEnvelope(TypeExceptionCaptured, "TXN-1", "", func() {})
	require.Error(t, err)
}

func TestAsMap(t *testing.T) {
	env, err := NewEnvelope(TypeExceptionResolved, "TXN-777", "completed-event-id", ExceptionResolved{
		TransactionID: "TXN-777",
		ResolvedBy:    "ops@example.com",
	})
	require.NoError(t, err)

	m := env.AsMap()

	assert.Equal(t, env.EventID.String(), m["eventId"])
	assert.Equal(t, TypeExceptionResolved, m["eventType"])
	assert.Equal(t, EventVersion, m["eventVersion"])
	assert.Equal(t, Source, m["source"])
	assert.Equal(t, "TXN-777", m["correlationId"])
	assert.Equal(t, "completed-event-id", m["causationId"])

	occurredOn, err := time.Parse(time.RFC3339Nano, m["occurredOn"].(string))
	require.NoError(t, err)
	assert.True(t, occurredOn.Equal(env.OccurredOn))

	var payload ExceptionResolved
	require.NoError(t, json.Unmarshal([]byte(m["payload"].(string)), &payload))
	assert.Equal(t, "ops@example.com", payload.ResolvedBy)
}

func TestDecodePayloadError(t *testing.T) {
	env, err := NewEnvelope(TypeExceptionCaptured, "TXN-1", "", map[string]string{"key": "value"})
	require.NoError(t, err)

	var dst []string
	err = env.DecodePayload(&dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), TypeExceptionCaptured)
}

func TestInboundEnvelopeUnmarshal(t *testing.T) {
	raw := `{
		"eventId": "evt-abc-123",
		"eventType": "OrderRejectedEvent",
		"eventVersion": "1.0",
		"occurredOn": "2026-08-15T10:30:00Z",
		"source": "order-service",
		"payload": {"transactionId": "TXN-555", "rejectedReason": "Order already exists"}
	}`

	var env InboundEnvelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))

	assert.Equal(t, "evt-abc-123", env.EventID)
	assert.Equal(t, TypeOrderRejected, env.EventType)
	assert.Equal(t, "order-service", env.Source)

	var payload OrderRejected
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "TXN-555", payload.TransactionID)
	assert.Equal(t, "Order already exists", payload.RejectedReason)
}
