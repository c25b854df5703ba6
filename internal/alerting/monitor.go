package alerting

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Monitor alert names.
const (
	AlertSlowResponses      = "slow_responses"
	AlertHighErrorRate      = "high_error_rate"
	AlertHighCacheMissRate  = "high_cache_miss_rate"
	AlertConnectionPressure = "connection_pressure"
)

// Thresholds are the operational limits the monitor samples against.
type Thresholds struct {
	P95ResponseTime   time.Duration
	ErrorRatePct      float64
	CacheMissRatePct  float64
	ConnSaturationPct float64
}

// DefaultThresholds returns the default operational limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		P95ResponseTime:   2 * time.Second,
		ErrorRatePct:      5,
		CacheMissRatePct:  40,
		ConnSaturationPct: 85,
	}
}

// MetricsSnapshot is one sample of aggregate service metrics.
type MetricsSnapshot struct {
	P95ResponseTime   time.Duration
	ErrorRatePct      float64
	CacheMissRatePct  float64
	ConnSaturationPct float64
}

// AlertState tracks one named operational alert.
type AlertState struct {
	Name         string
	Active       bool
	TriggerCount int
	LastFiredAt  time.Time
	LastValue    string
}

// Monitor raises and clears named operational alerts from sampled
// metrics. A cooldown window prevents the same alert type from re-firing
// in a storm.
type Monitor struct {
	mu         sync.Mutex
	thresholds Thresholds
	cooldown   time.Duration
	states     map[string]*AlertState
	logger     zerolog.Logger
	now        func() time.Time
}

func NewMonitor(thresholds Thresholds, cooldown time.Duration, logger zerolog.Logger) *Monitor {
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}
	return &Monitor{
		thresholds: thresholds,
		cooldown:   cooldown,
		states:     make(map[string]*AlertState),
		logger:     logger.With().Str("component", "alert_monitor").Logger(),
		now:        time.Now,
	}
}

// Sample evaluates one metrics snapshot, raising or clearing alerts.
// It returns the names of alerts that fired on this sample.
func (m *Monitor) Sample(s MetricsSnapshot) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var fired []string
	checks := []struct {
		name     string
		breached bool
		value    string
	}{
		{AlertSlowResponses, m.thresholds.P95ResponseTime > 0 && s.P95ResponseTime > m.thresholds.P95ResponseTime,
			s.P95ResponseTime.String()},
		{AlertHighErrorRate, s.ErrorRatePct > m.thresholds.ErrorRatePct,
			fmt.Sprintf("%.2f%%", s.ErrorRatePct)},
		{AlertHighCacheMissRate, s.CacheMissRatePct > m.thresholds.CacheMissRatePct,
			fmt.Sprintf("%.2f%%", s.CacheMissRatePct)},
		{AlertConnectionPressure, s.ConnSaturationPct > m.thresholds.ConnSaturationPct,
			fmt.Sprintf("%.2f%%", s.ConnSaturationPct)},
	}

	for _, c := range checks {
		if c.breached {
			if m.raise(c.name, c.value) {
				fired = append(fired, c.name)
			}
		} else {
			m.clear(c.name)
		}
	}
	return fired
}

// raise activates an alert, honoring the cooldown window. Reports whether
// the alert actually fired.
func (m *Monitor) raise(name, value string) bool {
	st, ok := m.states[name]
	if !ok {
		st = &AlertState{Name: name}
		m.states[name] = st
	}
	now := m.now()
	st.Active = true
	st.LastValue = value

	if !st.LastFiredAt.IsZero() && now.Sub(st.LastFiredAt) < m.cooldown {
		return false // still cooling down
	}
	st.LastFiredAt = now
	st.TriggerCount++
	m.logger.Warn().Str("alert", name).Str("value", value).Int("trigger_count", st.TriggerCount).Msg("Operational alert raised")
	return true
}

func (m *Monitor) clear(name string) {
	st, ok := m.states[name]
	if !ok || !st.Active {
		return
	}
	st.Active = false
	m.logger.Info().Str("alert", name).Msg("Operational alert cleared")
}

// ActiveAlerts returns the names of currently active alerts.
func (m *Monitor) ActiveAlerts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var active []string
	for name, st := range m.states {
		if st.Active {
			active = append(active, name)
		}
	}
	return active
}

// States returns a copy of all alert states for health reporting.
func (m *Monitor) States() []AlertState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AlertState, 0, len(m.states))
	for _, st := range m.states {
		out = append(out, *st)
	}
	return out
}
