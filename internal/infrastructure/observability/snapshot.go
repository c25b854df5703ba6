package observability

import (
	"math"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// PipelineStats is a point-in-time summary of the consumer pipeline,
// aggregated across streams.
type PipelineStats struct {
	P95Latency   time.Duration
	ErrorRatePct float64
}

// PipelineStats condenses the processing histogram and the per-status
// message counters into the figures the alert monitor thresholds on.
func (m *Metrics) PipelineStats() PipelineStats {
	return PipelineStats{
		P95Latency:   histogramQuantile(m.ConsumerProcessingDuration, 0.95),
		ErrorRatePct: errorRatePct(m.ConsumerMessagesProcessed, "status", "error"),
	}
}

// collect drains one collector into its wire representation.
func collect(c prometheus.Collector) []*dto.Metric {
	ch := make(chan prometheus.Metric)
	go func() {
		c.Collect(ch)
		close(ch)
	}()

	var out []*dto.Metric
	for metric := range ch {
		pb := &dto.Metric{}
		if err := metric.Write(pb); err == nil {
			out = append(out, pb)
		}
	}
	return out
}

// histogramQuantile estimates a quantile from the summed buckets of every
// child in the family, interpolating linearly within the matching bucket.
// All children of a family share the same bucket layout.
func histogramQuantile(vec *prometheus.HistogramVec, q float64) time.Duration {
	totals := make(map[float64]uint64)
	var count uint64
	for _, pb := range collect(vec) {
		h := pb.GetHistogram()
		if h == nil {
			continue
		}
		count += h.GetSampleCount()
		for _, b := range h.GetBucket() {
			if math.IsInf(b.GetUpperBound(), +1) {
				continue
			}
			totals[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}
	if count == 0 || len(totals) == 0 {
		return 0
	}

	bounds := make([]float64, 0, len(totals))
	for ub := range totals {
		bounds = append(bounds, ub)
	}
	sort.Float64s(bounds)

	rank := uint64(math.Ceil(q * float64(count)))
	var prevBound float64
	var prevCount uint64
	for _, ub := range bounds {
		cumulative := totals[ub]
		if cumulative >= rank {
			if cumulative == prevCount {
				return time.Duration(ub * float64(time.Second))
			}
			frac := float64(rank-prevCount) / float64(cumulative-prevCount)
			return time.Duration((prevBound + (ub-prevBound)*frac) * float64(time.Second))
		}
		prevBound = ub
		prevCount = cumulative
	}
	// The rank falls beyond the largest finite bucket; that bound is the
	// best available estimate.
	return time.Duration(bounds[len(bounds)-1] * float64(time.Second))
}

// errorRatePct returns the share of counter samples whose statusLabel
// equals errorValue, as a percentage of the family total.
func errorRatePct(vec *prometheus.CounterVec, statusLabel, errorValue string) float64 {
	var errored, total float64
	for _, pb := range collect(vec) {
		c := pb.GetCounter()
		if c == nil {
			continue
		}
		total += c.GetValue()
		for _, lp := range pb.GetLabel() {
			if lp.GetName() == statusLabel && lp.GetValue() == errorValue {
				errored += c.GetValue()
			}
		}
	}
	if total == 0 {
		return 0
	}
	return errored / total * 100
}
