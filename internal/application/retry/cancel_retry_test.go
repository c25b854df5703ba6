package retry

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/biopro/interface-exception-collector/internal/domain/errors"
	"github.com/biopro/interface-exception-collector/internal/domain/exception"
	"github.com/biopro/interface-exception-collector/internal/events"
	"github.com/biopro/interface-exception-collector/internal/testutil"
)

func TestCancelRetry(t *testing.T) {
	newFixture := func(t *testing.T) (*CancelRetryUseCase, *testutil.MockExceptionRepository, *testutil.MockAttemptRepository, *testutil.MockPublisher) {
		t.Helper()
		repo := testutil.NewMockExceptionRepository()
		attempts := testutil.NewMockAttemptRepository()
		publisher := testutil.NewMockPublisher()
		uc := NewCancelRetryUseCase(repo, attempts, testutil.NewMockTransactionManager(), publisher, zerolog.Nop())
		return uc, repo, attempts, publisher
	}

	seed := func(t *testing.T, repo *testutil.MockExceptionRepository, attempts *testutil.MockAttemptRepository) (*exception.Exception, *exception.RetryAttempt) {
		t.Helper()
		ex := testutil.ExceptionFixture()
		require.NoError(t, ex.Acknowledge("ops@example.com"))
		repo.AddException(ex)
		attempt, err := exception.NewAttempt(ex, 1, "ops@example.com", "", "NORMAL")
		require.NoError(t, err)
		attempts.AddAttempt(attempt)
		return ex, attempt
	}

	t.Run("cancels a pending attempt", func(t *testing.T) {
		uc, repo, attempts, publisher := newFixture(t)
		ex, attempt := seed(t, repo, attempts)

		cancelled, err := uc.Execute(context.Background(), ex.TransactionID, attempt.AttemptNumber, "trigger-7")

		require.NoError(t, err)
		assert.Equal(t, exception.AttemptCancelled, cancelled.Status)
		assert.NotNil(t, cancelled.CompletedAt)

		completed := publisher.PublishedOfType(events.TypeRetryAttemptCompleted)
		require.Len(t, completed, 1)
		assert.Equal(t, "trigger-7", completed[0].CausationID)

		var payload events.RetryAttemptCompleted
		require.NoError(t, completed[0].DecodePayload(&payload))
		assert.Equal(t, "CANCELLED", payload.Status)
		assert.False(t, payload.Success)
		assert.Equal(t, "attempt cancelled before dispatch", payload.Message)
	})

	t.Run("dispatched attempt cannot be cancelled", func(t *testing.T) {
		uc, repo, attempts, publisher := newFixture(t)
		ex, attempt := seed(t, repo, attempts)
		require.NoError(t, attempt.MarkRetrying())

		_, err := uc.Execute(context.Background(), ex.TransactionID, attempt.AttemptNumber, "trigger-7")

		assert.ErrorIs(t, err, domainErrors.ErrCancellationNotAllowed)
		assert.Equal(t, exception.AttemptRetrying, attempt.Status)
		assert.Empty(t, publisher.Published())
	})

	t.Run("terminal attempt cannot be cancelled", func(t *testing.T) {
		uc, repo, attempts, _ := newFixture(t)
		ex, attempt := seed(t, repo, attempts)
		require.NoError(t, attempt.MarkRetrying())
		require.NoError(t, attempt.Complete(true, "done", nil, ""))

		_, err := uc.Execute(context.Background(), ex.TransactionID, attempt.AttemptNumber, "trigger-7")

		assert.ErrorIs(t, err, domainErrors.ErrCancellationNotAllowed)
	})

	t.Run("cancel racing a dispatch is rejected", func(t *testing.T) {
		uc, repo, attempts, publisher := newFixture(t)
		ex, attempt := seed(t, repo, attempts)

		// The dispatcher wins the race after the cancel request read the
		// attempt: serve a stale PENDING copy while the stored row has
		// already moved to RETRYING. The guarded update, not the stale
		// read, decides the outcome.
		stale := *attempt
		attempts.GetFunc = func(ctx context.Context, exceptionID uuid.UUID, attemptNumber int) (*exception.RetryAttempt, error) {
			return &stale, nil
		}
		require.NoError(t, attempt.MarkRetrying())

		_, err := uc.Execute(context.Background(), ex.TransactionID, attempt.AttemptNumber, "trigger-7")

		assert.ErrorIs(t, err, domainErrors.ErrCancellationNotAllowed)
		assert.Equal(t, exception.AttemptRetrying, attempt.Status)
		assert.Empty(t, publisher.Published())
	})

	t.Run("stale cancel cannot overwrite a terminal row", func(t *testing.T) {
		uc, repo, attempts, publisher := newFixture(t)
		ex, attempt := seed(t, repo, attempts)

		stale := *attempt
		attempts.GetFunc = func(ctx context.Context, exceptionID uuid.UUID, attemptNumber int) (*exception.RetryAttempt, error) {
			return &stale, nil
		}
		require.NoError(t, attempt.MarkRetrying())
		require.NoError(t, attempt.Complete(false, "", nil, "boom"))

		_, err := uc.Execute(context.Background(), ex.TransactionID, attempt.AttemptNumber, "trigger-7")

		assert.ErrorIs(t, err, domainErrors.ErrCancellationNotAllowed)
		assert.Equal(t, exception.AttemptFailed, attempt.Status)
		assert.Empty(t, publisher.Published())
	})

	t.Run("unknown attempt", func(t *testing.T) {
		uc, repo, attempts, _ := newFixture(t)
		ex, _ := seed(t, repo, attempts)

		_, err := uc.Execute(context.Background(), ex.TransactionID, 99, "trigger-7")

		assert.ErrorIs(t, err, domainErrors.ErrAttemptNotFound)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		uc, _, _, _ := newFixture(t)

		_, err := uc.Execute(context.Background(), "TXN-MISSING", 1, "trigger-7")

		assert.ErrorIs(t, err, domainErrors.ErrExceptionNotFound)
	})
}
