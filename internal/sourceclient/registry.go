package sourceclient

import (
	"fmt"
	"time"

	domainErrors "github.com/biopro/interface-exception-collector/internal/domain/errors"
	"github.com/biopro/interface-exception-collector/internal/domain/exception"
	"github.com/sony/gobreaker/v2"
)

// Registry holds one client per interface type, each behind its own
// circuit breaker. Dispatch is a table lookup keyed by InterfaceType, not
// reflection.
type Registry struct {
	clients         map[exception.InterfaceType]Client
	circuitBreakers map[exception.InterfaceType]*gobreaker.CircuitBreaker[*SubmitResult]
}

// NewRegistry builds a registry from the given clients. With no clients it
// registers mocks for the three known interfaces, which keeps local runs
// and tests working without live source services.
func NewRegistry(clients ...Client) *Registry {
	r := &Registry{
		clients:         make(map[exception.InterfaceType]Client),
		circuitBreakers: make(map[exception.InterfaceType]*gobreaker.CircuitBreaker[*SubmitResult]),
	}

	if len(clients) == 0 {
		r.Register(NewMockClient(exception.InterfaceOrder,
			WithLatency(50*time.Millisecond),
		))
		r.Register(NewMockClient(exception.InterfaceCollection,
			WithLatency(50*time.Millisecond),
		))
		r.Register(NewMockClient(exception.InterfaceDistribution,
			WithLatency(50*time.Millisecond),
		))
	} else {
		for _, c := range clients {
			r.Register(c)
		}
	}

	return r
}

// Register adds a client and creates its circuit breaker.
func (r *Registry) Register(c Client) {
	it := c.InterfaceType()
	r.clients[it] = c
	r.circuitBreakers[it] = gobreaker.NewCircuitBreaker[*SubmitResult](gobreaker.Settings{
		Name:        string(it),
		MaxRequests: 10,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
	})
}

// Supports reports whether a client is registered for the interface type.
func (r *Registry) Supports(it exception.InterfaceType) bool {
	_, ok := r.clients[it]
	return ok
}

// Get returns the client and breaker for an interface type.
func (r *Registry) Get(it exception.InterfaceType) (Client, *gobreaker.CircuitBreaker[*SubmitResult], error) {
	c, ok := r.clients[it]
	if !ok {
		return nil, nil, fmt.Errorf("interface type %q: %w", it, domainErrors.ErrClientNotFound)
	}
	return c, r.circuitBreakers[it], nil
}
