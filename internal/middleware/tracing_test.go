package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func okHandler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}
}

func TestTracing_PassesRequestThrough(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	wrapped := Tracing()(handler)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestTracing_UsesChiRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Tracing())
	r.Get("/api/v1/exceptions/{transactionId}", okHandler(http.StatusOK))

	// Span name resolves to "GET /api/v1/exceptions/{transactionId}".
	req := httptest.NewRequest("GET", "/api/v1/exceptions/TXN-1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTracing_FallsBackToRawPath(t *testing.T) {
	// No chi routing context; the span name falls back to "GET /unrouted".
	wrapped := Tracing()(okHandler(http.StatusOK))

	req := httptest.NewRequest("GET", "/unrouted", nil)
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTracing_PreservesStatusAndBody(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"202 Accepted", http.StatusAccepted},
		{"404 Not Found", http.StatusNotFound},
		{"409 Conflict", http.StatusConflict},
		{"500 Internal Server Error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"error":{"code":"test"}}`
			handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(body))
			})

			wrapped := Tracing()(handler)

			req := httptest.NewRequest("POST", "/api/v1/exceptions/TXN-1/retries", nil)
			w := httptest.NewRecorder()
			wrapped.ServeHTTP(w, req)

			assert.Equal(t, tt.statusCode, w.Code)
			assert.Equal(t, body, w.Body.String())
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestTracing_PropagatesRequestContext(t *testing.T) {
	type ctxKey struct{}

	var got any
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Context().Value(ctxKey{})
		w.WriteHeader(http.StatusOK)
	})

	wrapped := Tracing()(handler)

	req := httptest.NewRequest("GET", "/api/v1/exceptions", nil)
	req = req.WithContext(context.WithValue(req.Context(), ctxKey{}, "correlation-1"))
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	assert.Equal(t, "correlation-1", got)
	assert.Equal(t, http.StatusOK, w.Code)
}
