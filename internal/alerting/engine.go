// Package alerting raises and clears alerts for the exception collector.
// The Engine applies per-exception escalation rules; the Monitor samples
// aggregate operational metrics on a schedule.
package alerting

import (
	"github.com/biopro/interface-exception-collector/internal/domain/exception"
)

// AlertLevel ranks an alert.
type AlertLevel string

const (
	LevelHigh      AlertLevel = "HIGH"
	LevelCritical  AlertLevel = "CRITICAL"
	LevelEmergency AlertLevel = "EMERGENCY"
)

// EscalationTeam is the audience an alert is routed to.
type EscalationTeam string

const (
	TeamOperations EscalationTeam = "OPERATIONS"
	TeamManagement EscalationTeam = "MANAGEMENT"
)

// Alert is computed on demand from an exception plus threshold rules. It
// is not independently persisted.
type Alert struct {
	Level                   AlertLevel
	Reason                  string
	EscalationTeam          EscalationTeam
	RequiresImmediateAction bool
}

// EngineConfig holds the per-exception escalation thresholds.
type EngineConfig struct {
	// RepeatedFailureThreshold is the number of failed attempts inside the
	// rolling window that triggers escalation.
	RepeatedFailureThreshold int
}

// DefaultEngineConfig returns the default escalation thresholds.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{RepeatedFailureThreshold: 3}
}

// Engine evaluates the per-exception escalation rules. It is pure; the
// callers publish the resulting CriticalExceptionAlert and escalate the
// exception record.
type Engine struct {
	cfg EngineConfig
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.RepeatedFailureThreshold <= 0 {
		cfg.RepeatedFailureThreshold = DefaultEngineConfig().RepeatedFailureThreshold
	}
	return &Engine{cfg: cfg}
}

// EvaluateCapture applies the capture-time rule: severity CRITICAL raises
// an alert immediately.
func (e *Engine) EvaluateCapture(ex *exception.Exception) *Alert {
	if ex.Severity != exception.SeverityCritical {
		return nil
	}
	level := LevelCritical
	// A critical system-level failure at capture means the interface
	// itself is broken, not just one transaction.
	if ex.Category == exception.CategorySystemError {
		level = LevelEmergency
	}
	return e.build(level, "critical exception captured: "+ex.ExceptionReason)
}

// EvaluateFailure applies the repeated-failure rule after a failed retry
// attempt. recentFailures is the FAILED attempt count inside the rolling
// escalation window.
func (e *Engine) EvaluateFailure(ex *exception.Exception, recentFailures int) *Alert {
	if ex.Severity == exception.SeverityCritical && ex.RetriesExhausted() {
		return e.build(LevelEmergency, "critical exception exhausted its retry budget")
	}
	if recentFailures >= e.cfg.RepeatedFailureThreshold {
		level := LevelHigh
		if ex.Severity == exception.SeverityCritical {
			level = LevelCritical
		}
		return e.build(level, "repeated retry failures within escalation window")
	}
	return nil
}

func (e *Engine) build(level AlertLevel, reason string) *Alert {
	team := TeamOperations
	if level == LevelEmergency {
		team = TeamManagement
	}
	return &Alert{
		Level:                   level,
		Reason:                  reason,
		EscalationTeam:          team,
		RequiresImmediateAction: level == LevelCritical || level == LevelEmergency,
	}
}
