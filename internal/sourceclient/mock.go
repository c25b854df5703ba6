package sourceclient

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	domainErrors "github.com/biopro/interface-exception-collector/internal/domain/errors"
	"github.com/biopro/interface-exception-collector/internal/domain/exception"
)

// MockClient simulates a source service for tests and local runs.
type MockClient struct {
	interfaceType exception.InterfaceType
	failureRate   float64 // 0.0 to 1.0
	timeoutRate   float64 // 0.0 to 1.0
	latency       time.Duration
}

type MockClientOption func(*MockClient)

func WithFailureRate(rate float64) MockClientOption {
	return func(c *MockClient) { c.failureRate = rate }
}

func WithTimeoutRate(rate float64) MockClientOption {
	return func(c *MockClient) { c.timeoutRate = rate }
}

func WithLatency(d time.Duration) MockClientOption {
	return func(c *MockClient) { c.latency = d }
}

func NewMockClient(it exception.InterfaceType, opts ...MockClientOption) *MockClient {
	c := &MockClient{
		interfaceType: it,
		failureRate:   0.0,
		timeoutRate:   0.0,
		latency:       10 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *MockClient) InterfaceType() exception.InterfaceType { return c.interfaceType }

func (c *MockClient) GetOriginalPayload(ctx context.Context, ex *exception.Exception) (*PayloadResult, error) {
	if err := c.simulate(ctx); err != nil {
		return &PayloadResult{Retrieved: false, ErrorMessage: err.Error()}, nil
	}

	if rand.Float64() < c.failureRate {
		return &PayloadResult{
			Retrieved:    false,
			ErrorMessage: fmt.Sprintf("%s: simulated payload retrieval failure for %s", c.interfaceType, ex.ExternalID),
		}, nil
	}

	payload, _ := json.Marshal(map[string]string{
		"externalId":    ex.ExternalID,
		"transactionId": ex.TransactionID,
		"operation":     ex.Operation,
	})
	return &PayloadResult{Retrieved: true, Payload: payload}, nil
}

func (c *MockClient) SubmitRetry(ctx context.Context, ex *exception.Exception, payload json.RawMessage) (*SubmitResult, error) {
	if err := c.simulate(ctx); err != nil {
		return &SubmitResult{Success: false, ErrorMessage: err.Error()}, nil
	}

	if rand.Float64() < c.timeoutRate {
		return nil, domainErrors.ErrSourceTimeout
	}
	if rand.Float64() < c.failureRate {
		return &SubmitResult{
			Success:      false,
			StatusCode:   http.StatusBadGateway,
			ErrorMessage: fmt.Sprintf("%s: simulated retry rejection for %s", c.interfaceType, ex.TransactionID),
		}, nil
	}

	return &SubmitResult{
		Success:    true,
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"status":"accepted","transactionId":%q}`, ex.TransactionID),
	}, nil
}

func (c *MockClient) simulate(ctx context.Context) error {
	select {
	case <-time.After(c.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
