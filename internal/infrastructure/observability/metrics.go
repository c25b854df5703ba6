package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Exception lifecycle metrics
	ExceptionsCaptured *prometheus.CounterVec
	ExceptionsResolved *prometheus.CounterVec
	ExceptionsByStatus *prometheus.GaugeVec
	DuplicateCaptures  prometheus.Counter

	// Retry metrics
	RetryAttemptsTotal  *prometheus.CounterVec
	RetryDuration       *prometheus.HistogramVec
	ActiveRetryAttempts prometheus.Gauge
	RetriesExhausted    *prometheus.CounterVec

	// Alerting metrics
	AlertsRaised *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState    *prometheus.GaugeVec
	CircuitBreakerRequests *prometheus.CounterVec

	// Consumer metrics
	ConsumerMessagesProcessed  *prometheus.CounterVec
	ConsumerProcessingDuration *prometheus.HistogramVec
	DeadLetteredMessages       *prometheus.CounterVec

	// Outbox metrics
	OutboxPublished *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := prometheus.WrapRegistererWith(nil, reg)

	m := &Metrics{
		ExceptionsCaptured: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exceptions_captured_total",
				Help:      "Total number of exceptions captured by interface type, category and severity",
			},
			[]string{"interface_type", "category", "severity"},
		),
		ExceptionsResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exceptions_resolved_total",
				Help:      "Total number of exceptions resolved by resolution method",
			},
			[]string{"method"},
		),
		ExceptionsByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "exceptions_by_status",
				Help:      "Number of exceptions currently in each status",
			},
			[]string{"status"},
		),
		DuplicateCaptures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "duplicate_captures_total",
				Help:      "Total number of capture requests deduplicated by transaction ID",
			},
		),
		RetryAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_attempts_total",
				Help:      "Total number of retry attempts by interface type and outcome",
			},
			[]string{"interface_type", "outcome"},
		),
		RetryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "retry_duration_seconds",
				Help:      "Retry attempt execution duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"interface_type", "outcome"},
		),
		ActiveRetryAttempts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_retry_attempts",
				Help:      "Number of retry attempts currently pending or executing",
			},
		),
		RetriesExhausted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_exhausted_total",
				Help:      "Total number of exceptions that used up their retry budget",
			},
			[]string{"interface_type"},
		),
		AlertsRaised: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_raised_total",
				Help:      "Total number of alerts raised by level and team",
			},
			[]string{"level", "team"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		CircuitBreakerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_requests_total",
				Help:      "Total number of circuit breaker requests",
			},
			[]string{"name", "result"},
		),
		ConsumerMessagesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "consumer_messages_processed_total",
				Help:      "Total number of consumer messages processed",
			},
			[]string{"stream", "status"},
		),
		ConsumerProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "consumer_processing_duration_seconds",
				Help:      "Consumer message processing duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"stream"},
		),
		DeadLetteredMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dead_lettered_messages_total",
				Help:      "Total number of messages routed to a dead-letter stream",
			},
			[]string{"stream", "reason"},
		),
		OutboxPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_published_total",
				Help:      "Total number of outbox entries relayed by result",
			},
			[]string{"result"},
		),
	}

	// Register all collectors
	factory.MustRegister(
		m.ExceptionsCaptured,
		m.ExceptionsResolved,
		m.ExceptionsByStatus,
		m.DuplicateCaptures,
		m.RetryAttemptsTotal,
		m.RetryDuration,
		m.ActiveRetryAttempts,
		m.RetriesExhausted,
		m.AlertsRaised,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CircuitBreakerState,
		m.CircuitBreakerRequests,
		m.ConsumerMessagesProcessed,
		m.ConsumerProcessingDuration,
		m.DeadLetteredMessages,
		m.OutboxPublished,
	)

	return m
}
