package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appException "github.com/biopro/interface-exception-collector/internal/application/exception"
	"github.com/biopro/interface-exception-collector/internal/domain/exception"
	"github.com/biopro/interface-exception-collector/internal/testutil"
)

type exceptionControllerFixture struct {
	router chi.Router
	repo   *testutil.MockExceptionRepository
}

func newExceptionControllerFixture() *exceptionControllerFixture {
	repo := testutil.NewMockExceptionRepository()
	publisher := testutil.NewMockPublisher()
	txManager := testutil.NewMockTransactionManager()

	acknowledge := appException.NewAcknowledgeUseCase(repo, txManager, publisher, zerolog.Nop())
	resolve := appException.NewResolveUseCase(repo, txManager, publisher, zerolog.Nop())
	h := NewExceptionController(repo, acknowledge, resolve)

	router := chi.NewRouter()
	router.Route("/api/v1/exceptions", func(r chi.Router) {
		r.Get("/", h.List)
		r.Route("/{transactionId}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/acknowledge", h.Acknowledge)
			r.Put("/resolve", h.Resolve)
		})
	})

	return &exceptionControllerFixture{router: router, repo: repo}
}

func (f *exceptionControllerFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
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

func TestExceptionControllerGet(t *testing.T) {
	t.Run("returns the exception", func(t *testing.T) {
		f := newExceptionControllerFixture()
		ex := testutil.ExceptionFixture()
		f.repo.AddException(ex)

		rec := f.do(t, http.MethodGet, "/api/v1/exceptions/"+ex.TransactionID, "")

		require.Equal(t, http.StatusOK, rec.Code)
		var resp ExceptionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, ex.TransactionID, resp.TransactionID)
		assert.Equal(t, "ORDER", resp.InterfaceType)
		assert.Equal(t, "NEW", resp.Status)
		assert.True(t, resp.Retryable)
	})

	t.Run("unknown transaction is a 404", func(t *testing.T) {
		f := newExceptionControllerFixture()

		rec := f.do(t, http.MethodGet, "/api/v1/exceptions/TXN-MISSING", "")

		require.Equal(t, http.StatusNotFound, rec.Code)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "not_found", resp.Code)
	})
}

func TestExceptionControllerList(t *testing.T) {
	f := newExceptionControllerFixture()
	f.repo.AddException(testutil.ExceptionFixture(func(e *exception.Exception) {
		e.TransactionID = "TXN-LIST-1"
	}))
	f.repo.AddException(testutil.ExceptionFixture(func(e *exception.Exception) {
		e.TransactionID = "TXN-LIST-2"
	}))

	t.Run("lists exceptions", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/exceptions", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var resp []*ExceptionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp, 2)
	})

	t.Run("passes filters to the repository", func(t *testing.T) {
		var got exception.ListFilter
		f.repo.ListFunc = func(ctx context.Context, filter exception.ListFilter) ([]*exception.Exception, error) {
			got = filter
			return nil, nil
		}
		defer func() { f.repo.ListFunc = nil }()

		rec := f.do(t, http.MethodGet,
			"/api/v1/exceptions?interface_type=ORDER&status=NEW&severity=HIGH&customer_id=CUST-42&limit=5&offset=10&sort_by=severity&sort_order=desc", "")

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, got.InterfaceType)
		assert.Equal(t, exception.InterfaceOrder, *got.InterfaceType)
		require.NotNil(t, got.Status)
		assert.Equal(t, exception.StatusNew, *got.Status)
		require.NotNil(t, got.Severity)
		assert.Equal(t, exception.SeverityHigh, *got.Severity)
		require.NotNil(t, got.CustomerID)
		assert.Equal(t, "CUST-42", *got.CustomerID)
		assert.Equal(t, 5, got.Limit)
		assert.Equal(t, 10, got.Offset)
		assert.Equal(t, "severity", got.SortBy)
		assert.Equal(t, "desc", got.SortOrder)
	})

	t.Run("rejects non-numeric pagination", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/exceptions?limit=abc", "")

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "invalid_input", resp.Code)
	})

	t.Run("rejects negative offset", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/exceptions?offset=-1", "")

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "invalid_input", resp.Code)
	})
}

func TestExceptionControllerAcknowledge(t *testing.T) {
	t.Run("acknowledges", func(t *testing.T) {
		f := newExceptionControllerFixture()
		ex := testutil.ExceptionFixture()
		f.repo.AddException(ex)

		rec := f.do(t, http.MethodPut, "/api/v1/exceptions/"+ex.TransactionID+"/acknowledge",
			`{"acknowledged_by":"ops@example.com"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp ExceptionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "ACKNOWLEDGED", resp.Status)
		require.NotNil(t, resp.AcknowledgedBy)
		assert.Equal(t, "ops@example.com", *resp.AcknowledgedBy)
	})

	t.Run("missing acknowledger is a 400", func(t *testing.T) {
		f := newExceptionControllerFixture()
		ex := testutil.ExceptionFixture()
		f.repo.AddException(ex)

		rec := f.do(t, http.MethodPut, "/api/v1/exceptions/"+ex.TransactionID+"/acknowledge", `{}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body is a 400", func(t *testing.T) {
		f := newExceptionControllerFixture()
		ex := testutil.ExceptionFixture()
		f.repo.AddException(ex)

		rec := f.do(t, http.MethodPut, "/api/v1/exceptions/"+ex.TransactionID+"/acknowledge", `{not json`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestExceptionControllerResolve(t *testing.T) {
	t.Run("resolves manually", func(t *testing.T) {
		f := newExceptionControllerFixture()
		ex := testutil.ExceptionFixture()
		f.repo.AddException(ex)

		rec := f.do(t, http.MethodPut, "/api/v1/exceptions/"+ex.TransactionID+"/resolve",
			`{"resolved_by":"ops@example.com","resolution_method":"MANUAL_RESOLUTION","resolution_notes":"re-sent by hand"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp ExceptionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "RESOLVED", resp.Status)
		require.NotNil(t, resp.ResolutionMethod)
		assert.Equal(t, "MANUAL_RESOLUTION", *resp.ResolutionMethod)
		require.NotNil(t, resp.ResolutionNotes)
		assert.Equal(t, "re-sent by hand", *resp.ResolutionNotes)
	})

	t.Run("invalid method is a 400", func(t *testing.T) {
		f := newExceptionControllerFixture()
		ex := testutil.ExceptionFixture()
		f.repo.AddException(ex)

		rec := f.do(t, http.MethodPut, "/api/v1/exceptions/"+ex.TransactionID+"/resolve",
			`{"resolved_by":"ops@example.com","resolution_method":"GUESSWORK"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("already resolved is a 409", func(t *testing.T) {
		f := newExceptionControllerFixture()
		ex := testutil.ExceptionFixture()
		require.NoError(t, ex.Resolve("ops@example.com", exception.ResolutionManual, ""))
		f.repo.AddException(ex)

		rec := f.do(t, http.MethodPut, "/api/v1/exceptions/"+ex.TransactionID+"/resolve",
			`{"resolved_by":"ops@example.com"}`)

		require.Equal(t, http.StatusConflict, rec.Code)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "invalid_state_transition", resp.Code)
	})
}
