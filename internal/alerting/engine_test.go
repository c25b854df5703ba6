package alerting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biopro/interface-exception-collector/internal/domain/exception"
)

func captureFixture(t *testing.T, severity exception.Severity, category exception.Category) *exception.Exception {
	t.Helper()
	ex, err := exception.New(exception.NewParams{
		TransactionID:   "TXN-ALERT-1",
		InterfaceType:   exception.InterfaceOrder,
		ExceptionReason: "order pipeline failure",
		Category:        category,
		Severity:        severity,
		Retryable:       true,
		MaxRetries:      3,
	})
	require.NoError(t, err)
	return ex
}

func TestEvaluateCapture(t *testing.T) {
	engine := NewEngine(DefaultEngineConfig())

	t.Run("non critical severity raises nothing", func(t *testing.T) {
		for _, sev := range []exception.Severity{exception.SeverityLow, exception.SeverityMedium, exception.SeverityHigh} {
			ex := captureFixture(t, sev, exception.CategoryTimeout)
			assert.Nil(t, engine.EvaluateCapture(ex), string(sev))
		}
	})

	t.Run("critical severity raises critical alert", func(t *testing.T) {
		ex := captureFixture(t, exception.SeverityCritical, exception.CategoryTimeout)

		alert := engine.EvaluateCapture(ex)

		require.NotNil(t, alert)
		assert.Equal(t, LevelCritical, alert.Level)
		assert.Equal(t, TeamOperations, alert.EscalationTeam)
		assert.True(t, alert.RequiresImmediateAction)
		assert.Contains(t, alert.Reason, ex.ExceptionReason)
	})

	t.Run("critical system error escalates to emergency", func(t *testing.T) {
		ex := captureFixture(t, exception.SeverityCritical, exception.CategorySystemError)

		alert := engine.EvaluateCapture(ex)

		require.NotNil(t, alert)
		assert.Equal(t, LevelEmergency, alert.Level)
		assert.Equal(t, TeamManagement, alert.EscalationTeam)
		assert.True(t, alert.RequiresImmediateAction)
	})
}

func TestEvaluateFailure(t *testing.T) {
	engine := NewEngine(EngineConfig{RepeatedFailureThreshold: 3})

	t.Run("below threshold raises nothing", func(t *testing.T) {
		ex := captureFixture(t, exception.SeverityHigh, exception.CategoryTimeout)
		assert.Nil(t, engine.EvaluateFailure(ex, 2))
	})

	t.Run("threshold reached raises high alert", func(t *testing.T) {
		ex := captureFixture(t, exception.SeverityHigh, exception.CategoryTimeout)

		alert := engine.EvaluateFailure(ex, 3)

		require.NotNil(t, alert)
		assert.Equal(t, LevelHigh, alert.Level)
		assert.Equal(t, TeamOperations, alert.EscalationTeam)
		assert.False(t, alert.RequiresImmediateAction)
	})

	t.Run("threshold on critical exception raises critical alert", func(t *testing.T) {
		ex := captureFixture(t, exception.SeverityCritical, exception.CategoryTimeout)

		alert := engine.EvaluateFailure(ex, 3)

		require.NotNil(t, alert)
		assert.Equal(t, LevelCritical, alert.Level)
		assert.True(t, alert.RequiresImmediateAction)
	})

	t.Run("exhausted critical exception raises emergency", func(t *testing.T) {
		ex := captureFixture(t, exception.SeverityCritical, exception.CategoryTimeout)
		ex.IncrementRetry()
		ex.IncrementRetry()
		ex.IncrementRetry()
		require.True(t, ex.RetriesExhausted())

		alert := engine.EvaluateFailure(ex, 0)

		require.NotNil(t, alert)
		assert.Equal(t, LevelEmergency, alert.Level)
		assert.Equal(t, TeamManagement, alert.EscalationTeam)
	})
}

func TestNewEngineDefaultsThreshold(t *testing.T) {
	engine := NewEngine(EngineConfig{})
	ex := captureFixture(t, exception.SeverityHigh, exception.CategoryTimeout)

	assert.Nil(t, engine.EvaluateFailure(ex, 2))
	assert.NotNil(t, engine.EvaluateFailure(ex, 3))
}
