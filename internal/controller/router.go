package controller

import (
	"time"

	"github.com/biopro/interface-exception-collector/internal/alerting"
	appException "github.com/biopro/interface-exception-collector/internal/application/exception"
	appRetry "github.com/biopro/interface-exception-collector/internal/application/retry"
	"github.com/biopro/interface-exception-collector/internal/domain/exception"
	"github.com/biopro/interface-exception-collector/internal/infrastructure/config"
	"github.com/biopro/interface-exception-collector/internal/infrastructure/observability"
	customMW "github.com/biopro/interface-exception-collector/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type RouterDeps struct {
	Pool          *pgxpool.Pool
	RedisClient   *redis.Client
	ExceptionRepo exception.Repository
	Acknowledge   *appException.AcknowledgeUseCase
	Resolve       *appException.ResolveUseCase
	InitiateRetry *appRetry.InitiateRetryUseCase
	CancelRetry   *appRetry.CancelRetryUseCase
	RetryQueries  *appRetry.Queries
	Monitor       *alerting.Monitor
	Metrics       *observability.Metrics
	CORSConfig    config.CORSConfig
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.Pool, deps.RedisClient, deps.Monitor)
	exceptionH := NewExceptionController(deps.ExceptionRepo, deps.Acknowledge, deps.Resolve)
	retryH := NewRetryController(deps.InitiateRetry, deps.CancelRetry, deps.RetryQueries)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Exceptions
		r.Get("/exceptions", exceptionH.List)
		r.Get("/exceptions/{transactionId}", exceptionH.Get)
		r.Put("/exceptions/{transactionId}/acknowledge", exceptionH.Acknowledge)
		r.Put("/exceptions/{transactionId}/resolve", exceptionH.Resolve)

		// Retries
		r.Post("/exceptions/{transactionId}/retry", retryH.Initiate)
		r.Get("/exceptions/{transactionId}/retry-history", retryH.History)
		r.Get("/exceptions/{transactionId}/retry/latest", retryH.Latest)
		r.Get("/exceptions/{transactionId}/retry/statistics", retryH.Statistics)
		r.Delete("/exceptions/{transactionId}/retry/{attemptNumber}", retryH.Cancel)
	})

	return r
}
