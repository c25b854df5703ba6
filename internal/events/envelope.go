// Package events defines the lifecycle event envelopes published by the
// exception collector and the inbound envelopes it consumes. Every
// outbound event carries a correlation ID (constant per transaction) and
// a causation ID (the event ID of whatever directly triggered it), so the
// full chain for one exception is traceable back to the original failure.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event type names for outbound lifecycle events.
const (
	TypeExceptionCaptured      = "ExceptionCaptured"
	TypeExceptionResolved      = "ExceptionResolved"
	TypeExceptionStatusChanged = "ExceptionStatusChanged"
	TypeRetryAttemptStarted    = "RetryAttemptStarted"
	TypeRetryAttemptCompleted  = "RetryAttemptCompleted"
	TypeCriticalAlert          = "CriticalExceptionAlert"
)

// Event type names for inbound failure events.
const (
	TypeOrderRejected      = "OrderRejectedEvent"
	TypeOrderCancelled     = "OrderCancelledEvent"
	TypeCollectionRejected = "CollectionRejectedEvent"
	TypeDistributionFailed = "DistributionFailedEvent"
	TypeValidationError    = "ValidationErrorEvent"
)

// EventVersion is the wire version stamped on every outbound envelope.
const EventVersion = "1.0"

// Source identifies this service as the event origin.
const Source = "exception-collector"

// Envelope is the structural invariant on every outbound message.
type Envelope struct {
	EventID       uuid.UUID       `json:"eventId"`
	EventType     string          `json:"eventType"`
	EventVersion  string          `json:"eventVersion"`
	OccurredOn    time.Time       `json:"occurredOn"`
	Source        string          `json:"source"`
	CorrelationID string          `json:"correlationId"`
	CausationID   string          `json:"causationId"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope builds an envelope for one lifecycle event. correlationID is
// the owning exception's transaction ID; causationID is the event ID of
// the event or operation that directly triggered this one.
func NewEnvelope(eventType, correlationID, causationID string, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Envelope{
		EventID:       uuid.New(),
		EventType:     eventType,
		EventVersion:  EventVersion,
		OccurredOn:    time.Now().UTC(),
		Source:        Source,
		CorrelationID: correlationID,
		CausationID:   causationID,
		Payload:       raw,
	}, nil
}

// AsMap flattens the envelope into a generic map for outbox storage.
func (e *Envelope) AsMap() map[string]any {
	return map[string]any{
		"eventId":       e.EventID.String(),
		"eventType":     e.EventType,
		"eventVersion":  e.EventVersion,
		"occurredOn":    e.OccurredOn.Format(time.RFC3339Nano),
		"source":        e.Source,
		"correlationId": e.CorrelationID,
		"causationId":   e.CausationID,
		"payload":       string(e.Payload),
	}
}

// DecodePayload unmarshals the envelope payload into dst.
func (e *Envelope) DecodePayload(dst any) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return nil
}

// InboundEnvelope is the envelope shape emitted by upstream interfaces.
// Inbound events carry no correlation/causation pair; their eventId roots
// the causal chain for the exception they produce.
type InboundEnvelope struct {
	EventID      string          `json:"eventId"`
	EventType    string          `json:"eventType"`
	EventVersion string          `json:"eventVersion"`
	OccurredOn   time.Time       `json:"occurredOn"`
	Source       string          `json:"source"`
	Payload      json.RawMessage `json:"payload"`
}
