package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	return NewMetrics("test", prometheus.NewRegistry())
}

func TestPipelineStats_NoTraffic(t *testing.T) {
	m := newTestMetrics(t)

	stats := m.PipelineStats()

	assert.Zero(t, stats.P95Latency)
	assert.Zero(t, stats.ErrorRatePct)
}

func TestPipelineStats_ErrorRate(t *testing.T) {
	m := newTestMetrics(t)
	for i := 0; i < 9; i++ {
		m.ConsumerMessagesProcessed.WithLabelValues("exceptions:inbound", "success").Inc()
	}
	m.ConsumerMessagesProcessed.WithLabelValues("exceptions:inbound", "error").Inc()

	stats := m.PipelineStats()

	assert.InDelta(t, 10.0, stats.ErrorRatePct, 0.001)
}

func TestPipelineStats_ErrorRateAggregatesStreams(t *testing.T) {
	m := newTestMetrics(t)
	m.ConsumerMessagesProcessed.WithLabelValues("exceptions:inbound", "success").Inc()
	m.ConsumerMessagesProcessed.WithLabelValues("exceptions:retry-dispatch", "error").Inc()

	stats := m.PipelineStats()

	assert.InDelta(t, 50.0, stats.ErrorRatePct, 0.001)
}

func TestPipelineStats_P95Latency(t *testing.T) {
	m := newTestMetrics(t)
	// Nineteen fast observations and two slow ones put the 95th
	// percentile rank in the (1s, 2s] bucket, interpolated to 1.5s.
	for i := 0; i < 19; i++ {
		m.ConsumerProcessingDuration.WithLabelValues("exceptions:inbound").Observe(0.05)
	}
	m.ConsumerProcessingDuration.WithLabelValues("exceptions:inbound").Observe(1.5)
	m.ConsumerProcessingDuration.WithLabelValues("exceptions:retry-dispatch").Observe(1.5)

	stats := m.PipelineStats()

	assert.InDelta(t, float64(1500*time.Millisecond), float64(stats.P95Latency), float64(time.Millisecond))
}

func TestPipelineStats_P95BeyondLargestBucket(t *testing.T) {
	m := newTestMetrics(t)
	m.ConsumerProcessingDuration.WithLabelValues("exceptions:inbound").Observe(120)

	stats := m.PipelineStats()

	// Beyond the largest finite bucket the bound itself is reported.
	assert.Equal(t, 60*time.Second, stats.P95Latency)
}
