package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/biopro/interface-exception-collector/internal/infrastructure/config"
	"github.com/biopro/interface-exception-collector/internal/infrastructure/observability"
	infraRedis "github.com/biopro/interface-exception-collector/internal/infrastructure/redis"
	"github.com/biopro/interface-exception-collector/internal/repository/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// App holds the shared infrastructure both binaries (api, worker) start from:
// loaded config, logger, metrics registry, and the postgres/redis connections.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics

	tracerProvider *sdktrace.TracerProvider
}

// New loads configuration and connects the shared infrastructure. On any
// failure it closes whatever it already opened and returns the error.
func New(ctx context.Context, serviceName string, metricsNamespace string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info().
		Str("service", serviceName).
		Str("instance", cfg.InstanceID).
		Msg("Starting")

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(metricsNamespace, nil),
	}

	if cfg.Observability.EnableTracing {
		tp, err := observability.InitTracer(serviceName, cfg.Observability.JaegerEndpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		} else {
			app.tracerProvider = tp
			logger.Info().Msg("Tracing enabled")
		}
	}

	app.Pool, err = postgres.NewPool(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info().Msg("Connected to PostgreSQL")

	app.Redis, err = infraRedis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		app.Pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info().Msg("Connected to Redis")

	return app, nil
}

// Close releases the shared infrastructure in reverse connection order and
// flushes any buffered trace spans.
func (a *App) Close() {
	a.Redis.Close()
	a.Pool.Close()
	if a.tracerProvider != nil {
		observability.Shutdown(context.Background(), a.tracerProvider)
	}
}
