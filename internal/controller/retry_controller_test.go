package controller

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appRetry "github.com/biopro/interface-exception-collector/internal/application/retry"
	"github.com/biopro/interface-exception-collector/internal/domain/exception"
	"github.com/biopro/interface-exception-collector/internal/testutil"
)

type retryControllerFixture struct {
	router     chi.Router
	repo       *testutil.MockExceptionRepository
	attempts   *testutil.MockAttemptRepository
	dispatcher *testutil.MockDispatcher
}

func newRetryControllerFixture() *retryControllerFixture {
	repo := testutil.NewMockExceptionRepository()
	attempts := testutil.NewMockAttemptRepository()
	publisher := testutil.NewMockPublisher()
	dispatcher := testutil.NewMockDispatcher()
	txManager := testutil.NewMockTransactionManager()

	initiate := appRetry.NewInitiateRetryUseCase(repo, attempts, txManager, publisher, dispatcher, zerolog.Nop())
	cancel := appRetry.NewCancelRetryUseCase(repo, attempts, txManager, publisher, zerolog.Nop())
	queries := appRetry.NewQueries(repo, attempts)
	h := NewRetryController(initiate, cancel, queries)

	router := chi.NewRouter()
	router.Route("/api/v1/exceptions/{transactionId}", func(r chi.Router) {
		r.Post("/retry", h.Initiate)
		r.Get("/retry-history", h.History)
		r.Get("/retry/latest", h.Latest)
		r.Get("/retry/statistics", h.Statistics)
		r.Delete("/retry/{attemptNumber}", h.Cancel)
	})

	return &retryControllerFixture{router: router, repo: repo, attempts: attempts, dispatcher: dispatcher}
}

func (f *retryControllerFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestRetryControllerInitiate(t *testing.T) {
	t.Run("accepts with 202", func(t *testing.T) {
		f := newRetryControllerFixture()
		ex := testutil.ExceptionFixture()
		f.repo.AddException(ex)

		rec := f.do(t, http.MethodPost, "/api/v1/exceptions/"+ex.TransactionID+"/retry",
			`{"initiated_by":"ops@example.com","reason":"operator requested retry","priority":"HIGH"}`)

		require.Equal(t, http.StatusAccepted, rec.Code)
		var resp InitiateRetryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, ex.TransactionID, resp.TransactionID)
		assert.Equal(t, 1, resp.AttemptNumber)
		assert.Equal(t, "PENDING", resp.Status)
		assert.NotEmpty(t, resp.RetryID)
		assert.Len(t, f.dispatcher.Enqueued(), 1)
	})

	t.Run("missing initiator is a 400", func(t *testing.T) {
		f := newRetryControllerFixture()
		ex := testutil.ExceptionFixture()
		f.repo.AddException(ex)

		rec := f.do(t, http.MethodPost, "/api/v1/exceptions/"+ex.TransactionID+"/retry", `{}`)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "validation_error", resp.Code)
	})

	t.Run("invalid priority is a 400", func(t *testing.T) {
		f := newRetryControllerFixture()
		ex := testutil.ExceptionFixture()
		f.repo.AddException(ex)

		rec := f.do(t, http.MethodPost, "/api/v1/exceptions/"+ex.TransactionID+"/retry",
			`{"initiated_by":"ops@example.com","priority":"URGENT"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("active attempt is a 409", func(t *testing.T) {
		f := newRetryControllerFixture()
		ex := testutil.ExceptionFixture()
		f.repo.AddException(ex)
		body := `{"initiated_by":"ops@example.com"}`
		require.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/api/v1/exceptions/"+ex.TransactionID+"/retry", body).Code)

		rec := f.do(t, http.MethodPost, "/api/v1/exceptions/"+ex.TransactionID+"/retry", body)

		require.Equal(t, http.StatusConflict, rec.Code)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "retry_already_active", resp.Code)
	})

	t.Run("non retryable exception is a 409", func(t *testing.T) {
		f := newRetryControllerFixture()
		ex := testutil.ExceptionFixture(func(e *exception.Exception) {
			e.Retryable = false
		})
		f.repo.AddException(ex)

		rec := f.do(t, http.MethodPost, "/api/v1/exceptions/"+ex.TransactionID+"/retry",
			`{"initiated_by":"ops@example.com"}`)

		require.Equal(t, http.StatusConflict, rec.Code)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "retry_not_allowed", resp.Code)
	})

	t.Run("unknown transaction is a 404", func(t *testing.T) {
		f := newRetryControllerFixture()

		rec := f.do(t, http.MethodPost, "/api/v1/exceptions/TXN-MISSING/retry",
			`{"initiated_by":"ops@example.com"}`)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRetryControllerQueries(t *testing.T) {
	f := newRetryControllerFixture()
	ex := testutil.ExceptionFixture()
	require.NoError(t, ex.Acknowledge("ops@example.com"))
	f.repo.AddException(ex)

	first, err := exception.NewAttempt(ex, 1, "ops@example.com", "", "")
	require.NoError(t, err)
	require.NoError(t, first.MarkRetrying())
	require.NoError(t, first.Complete(false, "rejected", nil, "boom"))
	f.attempts.AddAttempt(first)

	second, err := exception.NewAttempt(ex, 2, "ops@example.com", "", "")
	require.NoError(t, err)
	f.attempts.AddAttempt(second)

	t.Run("history", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/exceptions/"+ex.TransactionID+"/retry-history", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var resp []*RetryAttemptResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp, 2)
	})

	t.Run("latest", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/exceptions/"+ex.TransactionID+"/retry/latest", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var resp RetryAttemptResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.AttemptNumber)
		assert.Equal(t, "PENDING", resp.Status)
	})

	t.Run("statistics", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/exceptions/"+ex.TransactionID+"/retry/statistics", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var resp RetryStatisticsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Total)
		assert.Equal(t, 1, resp.Failed)
		assert.Equal(t, 1, resp.Pending)
	})

	t.Run("unknown transaction is a 404", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/exceptions/TXN-MISSING/retry-history", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRetryControllerCancel(t *testing.T) {
	t.Run("cancels a pending attempt", func(t *testing.T) {
		f := newRetryControllerFixture()
		ex := testutil.ExceptionFixture()
		require.NoError(t, ex.Acknowledge("ops@example.com"))
		f.repo.AddException(ex)
		attempt, err := exception.NewAttempt(ex, 1, "ops@example.com", "", "")
		require.NoError(t, err)
		f.attempts.AddAttempt(attempt)

		rec := f.do(t, http.MethodDelete, "/api/v1/exceptions/"+ex.TransactionID+"/retry/1", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var resp RetryAttemptResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "CANCELLED", resp.Status)
	})

	t.Run("dispatched attempt is a 409", func(t *testing.T) {
		f := newRetryControllerFixture()
		ex := testutil.ExceptionFixture()
		require.NoError(t, ex.Acknowledge("ops@example.com"))
		f.repo.AddException(ex)
		attempt, err := exception.NewAttempt(ex, 1, "ops@example.com", "", "")
		require.NoError(t, err)
		require.NoError(t, attempt.MarkRetrying())
		f.attempts.AddAttempt(attempt)

		rec := f.do(t, http.MethodDelete, "/api/v1/exceptions/"+ex.TransactionID+"/retry/1", "")

		require.Equal(t, http.StatusConflict, rec.Code)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "retry_cancellation_failed", resp.Code)
	})

	t.Run("non numeric attempt number is a 400", func(t *testing.T) {
		f := newRetryControllerFixture()
		ex := testutil.ExceptionFixture()
		f.repo.AddException(ex)

		rec := f.do(t, http.MethodDelete, "/api/v1/exceptions/"+ex.TransactionID+"/retry/abc", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown attempt is a 404", func(t *testing.T) {
		f := newRetryControllerFixture()
		ex := testutil.ExceptionFixture()
		f.repo.AddException(ex)

		rec := f.do(t, http.MethodDelete, "/api/v1/exceptions/"+ex.TransactionID+"/retry/5", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
