package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/biopro/interface-exception-collector/internal/infrastructure/observability"
	"github.com/go-chi/chi/v5"
)

// Metrics records request count and latency per method and route pattern.
// The chi pattern keeps label cardinality bounded: "/api/v1/exceptions/{transactionId}"
// instead of one label value per transaction.
func Metrics(m *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}

			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// statusRecorder captures the status code written by the handler. Handlers
// that write a body without an explicit WriteHeader keep the 200 default.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
