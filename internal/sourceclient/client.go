package sourceclient

import (
	"context"
	"encoding/json"

	"github.com/biopro/interface-exception-collector/internal/domain/exception"
)

// PayloadResult is the outcome of retrieving the original payload for an
// exception from its source service.
type PayloadResult struct {
	Retrieved    bool
	Payload      json.RawMessage
	ErrorMessage string
}

// SubmitResult is the outcome of submitting a retry to the source
// service. Timeouts and 5xx responses are reported as a structured
// failure, never raised, so the orchestrator's always-terminal guarantee
// holds.
type SubmitResult struct {
	Success      bool
	StatusCode   int
	Body         string
	ErrorMessage string
}

// Client talks to one upstream interface. One client exists per
// InterfaceType, selected by table lookup in the Registry.
type Client interface {
	// InterfaceType returns the interface this client supports.
	InterfaceType() exception.InterfaceType
	// GetOriginalPayload retrieves the payload of the failed operation.
	GetOriginalPayload(ctx context.Context, ex *exception.Exception) (*PayloadResult, error)
	// SubmitRetry resubmits the original operation to the source service.
	SubmitRetry(ctx context.Context, ex *exception.Exception, payload json.RawMessage) (*SubmitResult, error)
}

// Correlation and retry metadata headers propagated on every source call.
const (
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderRetryAttempt  = "X-Retry-Attempt"
	HeaderRetryCount    = "X-Retry-Count"
)
