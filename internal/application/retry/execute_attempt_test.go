package retry

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biopro/interface-exception-collector/internal/alerting"
	domainErrors "github.com/biopro/interface-exception-collector/internal/domain/errors"
	"github.com/biopro/interface-exception-collector/internal/domain/exception"
	"github.com/biopro/interface-exception-collector/internal/events"
	"github.com/biopro/interface-exception-collector/internal/sourceclient"
	"github.com/biopro/interface-exception-collector/internal/testutil"
)

type executeFixture struct {
	uc        *ExecuteAttemptUseCase
	repo      *testutil.MockExceptionRepository
	attempts  *testutil.MockAttemptRepository
	tx        *testutil.MockTransactionManager
	publisher *testutil.MockPublisher
}

func newExecuteFixture(t *testing.T, clientOpts ...sourceclient.MockClientOption) *executeFixture {
	t.Helper()
	repo := testutil.NewMockExceptionRepository()
	attempts := testutil.NewMockAttemptRepository()
	tx := testutil.NewMockTransactionManager()
	publisher := testutil.NewMockPublisher()

	opts := append([]sourceclient.MockClientOption{sourceclient.WithLatency(time.Millisecond)}, clientOpts...)
	registry := sourceclient.NewRegistry(sourceclient.NewMockClient(exception.InterfaceOrder, opts...))

	uc := NewExecuteAttemptUseCase(
		repo,
		attempts,
		tx,
		registry,
		publisher,
		alerting.NewEngine(alerting.DefaultEngineConfig()),
		5*time.Second,
		time.Hour,
		zerolog.Nop(),
	)
	return &executeFixture{uc: uc, repo: repo, attempts: attempts, tx: tx, publisher: publisher}
}

// seedAttempt stores an acknowledged exception with one PENDING attempt.
func (f *executeFixture) seedAttempt(t *testing.T, overrides ...func(*exception.Exception)) (*exception.Exception, *exception.RetryAttempt) {
	t.Helper()
	ex := testutil.ExceptionFixture(overrides...)
	if ex.Status == exception.StatusNew {
		require.NoError(t, ex.Acknowledge("ops@example.com"))
	}
	f.repo.AddException(ex)

	attempt, err := exception.NewAttempt(ex, ex.RetryCount+1, "ops@example.com", "operator requested retry", "NORMAL")
	require.NoError(t, err)
	f.attempts.AddAttempt(attempt)
	return ex, attempt
}

func TestExecuteAttemptSuccess(t *testing.T) {
	f := newExecuteFixture(t)
	ex, attempt := f.seedAttempt(t)

	err := f.uc.Execute(context.Background(), ex.TransactionID, attempt.AttemptNumber, "started-evt-1")

	require.NoError(t, err)
	assert.Equal(t, exception.AttemptSuccess, attempt.Status)
	assert.True(t, attempt.ResultSuccess)
	require.NotNil(t, attempt.ResultResponseCode)
	assert.Equal(t, 200, *attempt.ResultResponseCode)

	assert.Equal(t, exception.StatusResolved, ex.Status)
	require.NotNil(t, ex.ResolvedBy)
	assert.Equal(t, attempt.InitiatedBy, *ex.ResolvedBy)
	require.NotNil(t, ex.ResolutionMethod)
	assert.Equal(t, exception.ResolutionRetrySuccess, *ex.ResolutionMethod)
	assert.Equal(t, 1, ex.RetryCount)

	completed := f.publisher.PublishedOfType(events.TypeRetryAttemptCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, "started-evt-1", completed[0].CausationID)

	resolved := f.publisher.PublishedOfType(events.TypeExceptionResolved)
	require.Len(t, resolved, 1)
	// Resolution is caused by the completion event, chaining back to the
	// attempt start.
	assert.Equal(t, completed[0].EventID.String(), resolved[0].CausationID)

	var payload events.ExceptionResolved
	require.NoError(t, resolved[0].DecodePayload(&payload))
	assert.Equal(t, "RETRY_SUCCESS", payload.ResolutionMethod)
	assert.Equal(t, 1, payload.TotalAttempts)
}

func TestExecuteAttemptFailureWithBudgetLeft(t *testing.T) {
	f := newExecuteFixture(t, sourceclient.WithFailureRate(1.0))
	ex, attempt := f.seedAttempt(t)

	err := f.uc.Execute(context.Background(), ex.TransactionID, attempt.AttemptNumber, "started-evt-1")

	require.NoError(t, err)
	assert.Equal(t, exception.AttemptFailed, attempt.Status)
	require.NotNil(t, attempt.ResultErrorDetails)

	// One failure against a budget of three goes back to ACKNOWLEDGED,
	// awaiting the next attempt.
	assert.Equal(t, exception.StatusAcknowledged, ex.Status)
	assert.Equal(t, 1, ex.RetryCount)
	assert.False(t, ex.RetriesExhausted())

	completed := f.publisher.PublishedOfType(events.TypeRetryAttemptCompleted)
	require.Len(t, completed, 1)
	var payload events.RetryAttemptCompleted
	require.NoError(t, completed[0].DecodePayload(&payload))
	assert.False(t, payload.Success)
	assert.Equal(t, "FAILED", payload.Status)

	changes := f.publisher.PublishedOfType(events.TypeExceptionStatusChanged)
	require.NotEmpty(t, changes)
	last := changes[len(changes)-1]
	assert.Equal(t, completed[0].EventID.String(), last.CausationID)
}

func TestExecuteAttemptExhaustsBudget(t *testing.T) {
	f := newExecuteFixture(t, sourceclient.WithFailureRate(1.0))
	ex, attempt := f.seedAttempt(t, func(e *exception.Exception) {
		e.RetryCount = 2
		e.MaxRetries = 3
	})

	err := f.uc.Execute(context.Background(), ex.TransactionID, attempt.AttemptNumber, "started-evt-3")

	require.NoError(t, err)
	assert.Equal(t, exception.AttemptFailed, attempt.Status)
	assert.Equal(t, exception.StatusFailed, ex.Status)
	assert.Equal(t, 3, ex.RetryCount)
	assert.True(t, ex.RetriesExhausted())
}

func TestExecuteAttemptRepeatedFailureEscalates(t *testing.T) {
	f := newExecuteFixture(t, sourceclient.WithFailureRate(1.0))
	ex, attempt := f.seedAttempt(t, func(e *exception.Exception) {
		e.MaxRetries = 10
	})

	// Two recent failed siblings put this failure at the threshold of three.
	for n := 1; n <= 2; n++ {
		prior, err := exception.NewAttempt(ex, attempt.AttemptNumber+n, "ops@example.com", "", "")
		require.NoError(t, err)
		require.NoError(t, prior.MarkRetrying())
		require.NoError(t, prior.Complete(false, "", nil, "boom"))
		f.attempts.AddAttempt(prior)
	}

	err := f.uc.Execute(context.Background(), ex.TransactionID, attempt.AttemptNumber, "started-evt-1")

	require.NoError(t, err)
	assert.Equal(t, exception.StatusEscalated, ex.Status)

	alerts := f.publisher.PublishedOfType(events.TypeCriticalAlert)
	require.Len(t, alerts, 1)
	var payload events.CriticalExceptionAlert
	require.NoError(t, alerts[0].DecodePayload(&payload))
	assert.Equal(t, string(alerting.LevelHigh), payload.AlertLevel)
}

func TestExecuteAttemptSkipsNonPending(t *testing.T) {
	statuses := []exception.AttemptStatus{
		exception.AttemptCancelled,
		exception.AttemptSuccess,
		exception.AttemptFailed,
	}
	for _, status := range statuses {
		t.Run(string(status), func(t *testing.T) {
			f := newExecuteFixture(t)
			ex, attempt := f.seedAttempt(t)
			attempt.Status = status

			err := f.uc.Execute(context.Background(), ex.TransactionID, attempt.AttemptNumber, "started-evt-1")

			require.NoError(t, err)
			assert.Equal(t, status, attempt.Status)
			assert.Empty(t, f.publisher.Published())
		})
	}
}

func TestExecuteAttemptUnknownInterface(t *testing.T) {
	// Registry only knows ORDER; a COLLECTION exception has no client and
	// the attempt fails terminally instead of erroring out of the worker.
	f := newExecuteFixture(t)
	ex, attempt := f.seedAttempt(t, func(e *exception.Exception) {
		e.InterfaceType = exception.InterfaceCollection
	})

	err := f.uc.Execute(context.Background(), ex.TransactionID, attempt.AttemptNumber, "started-evt-1")

	require.NoError(t, err)
	assert.Equal(t, exception.AttemptFailed, attempt.Status)
	require.NotNil(t, attempt.ResultErrorDetails)
	assert.Contains(t, *attempt.ResultErrorDetails, domainErrors.ErrClientNotFound.Error())
}

func TestExecuteAttemptUnknownTransaction(t *testing.T) {
	f := newExecuteFixture(t)

	err := f.uc.Execute(context.Background(), "TXN-MISSING", 1, "started-evt-1")

	assert.ErrorIs(t, err, domainErrors.ErrExceptionNotFound)
}

func TestExecuteAttemptFinalizationFailureNotSurfaced(t *testing.T) {
	f := newExecuteFixture(t)
	ex, attempt := f.seedAttempt(t)

	// Fail the exception update inside finalize, after the attempt was
	// dispatched and completed.
	calls := 0
	f.repo.UpdateFunc = func(ctx context.Context, e *exception.Exception) error {
		calls++
		if calls == 2 {
			return assert.AnError
		}
		return nil
	}

	err := f.uc.Execute(context.Background(), ex.TransactionID, attempt.AttemptNumber, "started-evt-1")

	// The dispatch boundary swallows finalization failures; the attempt is
	// still terminal and redelivery will not re-run it.
	require.NoError(t, err)
	assert.True(t, attempt.Status.IsTerminal())
}

func TestExecuteAttemptForcesTerminalWriteAfterRollback(t *testing.T) {
	f := newExecuteFixture(t)
	ex, attempt := f.seedAttempt(t)

	// Shadow the attempt row the way a real transaction does: updates
	// inside a transaction are staged and discarded on failure, so on
	// rollback the durable status diverges from the in-memory attempt.
	durable := attempt.Status
	staged := durable
	inTx := false
	compensating := 0
	f.attempts.UpdateFunc = func(ctx context.Context, a *exception.RetryAttempt) error {
		if inTx {
			staged = a.Status
			return nil
		}
		compensating++
		durable = a.Status
		return nil
	}
	f.tx.WithTransactionFunc = func(ctx context.Context, fn func(ctx context.Context) error) error {
		inTx = true
		staged = durable
		err := fn(ctx)
		inTx = false
		if err != nil {
			return err
		}
		durable = staged
		return nil
	}

	// Fail the exception update inside finalize, after the attempt has
	// already completed in memory.
	calls := 0
	f.repo.UpdateFunc = func(ctx context.Context, e *exception.Exception) error {
		calls++
		if calls == 2 {
			return assert.AnError
		}
		return nil
	}

	err := f.uc.Execute(context.Background(), ex.TransactionID, attempt.AttemptNumber, "started-evt-1")

	require.NoError(t, err)
	// Without the compensating write the row stays RETRYING, every
	// redelivery skips the non-PENDING attempt, and the stuck active row
	// makes each later retry request conflict.
	assert.GreaterOrEqual(t, compensating, 1, "expected a terminal write outside the failed transaction")
	assert.True(t, durable.IsTerminal(), "durable attempt status is %s, want terminal", durable)
}
