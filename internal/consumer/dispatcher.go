package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	domainErrors "github.com/biopro/interface-exception-collector/internal/domain/errors"
	domainException "github.com/biopro/interface-exception-collector/internal/domain/exception"
	appException "github.com/biopro/interface-exception-collector/internal/application/exception"
	"github.com/biopro/interface-exception-collector/internal/events"
	"github.com/rs/zerolog"
)

// Dispatcher decodes inbound failure envelopes and routes them to the
// capture use case by event type. Unknown event types and malformed
// payloads are deserialization failures: non-retryable, routed to the DLT
// by the pipeline.
type Dispatcher struct {
	capture *appException.CaptureUseCase
	logger  zerolog.Logger
}

func NewDispatcher(capture *appException.CaptureUseCase, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		capture: capture,
		logger:  logger.With().Str("component", "inbound_dispatcher").Logger(),
	}
}

// Handle is the pipeline handler for the inbound failure stream.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) error {
	raw, ok := msg.Values["envelope"].(string)
	if !ok || raw == "" {
		return fmt.Errorf("message %s has no envelope field: %w", msg.ID, domainErrors.ErrDeserialization)
	}

	var env events.InboundEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return fmt.Errorf("envelope for message %s: %v: %w", msg.ID, err, domainErrors.ErrDeserialization)
	}

	params, err := d.decode(&env)
	if err != nil {
		return err
	}

	_, err = d.capture.Execute(ctx, *params)
	return err
}

func (d *Dispatcher) decode(env *events.InboundEnvelope) (*appException.CaptureParams, error) {
	base := appException.CaptureParams{
		InboundEventID: env.EventID,
		EventTimestamp: env.OccurredOn,
	}

	switch env.EventType {
	case events.TypeOrderRejected:
		var p events.OrderRejected
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		base.TransactionID = p.TransactionID
		base.InterfaceType = domainException.InterfaceOrder
		base.ExceptionReason = p.RejectedReason
		base.Operation = p.Operation
		base.ExternalID = p.ExternalID
		base.CustomerID = p.CustomerID
		base.LocationCode = p.LocationCode

	case events.TypeOrderCancelled:
		var p events.OrderCancelled
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		base.TransactionID = p.TransactionID
		base.InterfaceType = domainException.InterfaceOrder
		base.ExceptionReason = p.CancelReason
		base.Operation = "CANCEL_ORDER"
		base.ExternalID = p.ExternalID
		base.CustomerID = p.CustomerID

	case events.TypeCollectionRejected:
		var p events.CollectionRejected
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		base.TransactionID = p.TransactionID
		base.InterfaceType = domainException.InterfaceCollection
		base.ExceptionReason = p.RejectedReason
		base.Operation = p.Operation
		base.ExternalID = p.CollectionID
		base.CustomerID = p.DonorID
		base.LocationCode = p.LocationCode

	case events.TypeDistributionFailed:
		var p events.DistributionFailed
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		base.TransactionID = p.TransactionID
		base.InterfaceType = domainException.InterfaceDistribution
		base.ExceptionReason = p.FailureReason
		base.Operation = p.Operation
		base.ExternalID = p.DistributionID
		base.CustomerID = p.CustomerID
		base.LocationCode = p.DestinationLocation

	case events.TypeValidationError:
		var p events.ValidationError
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		base.TransactionID = p.TransactionID
		base.InterfaceType = domainException.InterfaceType(p.InterfaceType)
		base.ExceptionReason = joinReasons(p.ValidationErrors)
		base.Operation = p.Operation
		base.CustomerID = p.CustomerID

	default:
		return nil, fmt.Errorf("unknown inbound event type %q: %w", env.EventType, domainErrors.ErrDeserialization)
	}

	return &base, nil
}

func unmarshalPayload(env *events.InboundEnvelope, dst any) error {
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("%s payload: %v: %w", env.EventType, err, domainErrors.ErrDeserialization)
	}
	return nil
}

func joinReasons(reasons []string) string {
	if len(reasons) == 0 {
		return "validation failed"
	}
	out := reasons[0]
	for _, r := range reasons[1:] {
		out += "; " + r
	}
	return out
}
