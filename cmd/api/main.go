package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	appException "github.com/biopro/interface-exception-collector/internal/application/exception"
	appRetry "github.com/biopro/interface-exception-collector/internal/application/retry"
	"github.com/biopro/interface-exception-collector/internal/bootstrap"
	"github.com/biopro/interface-exception-collector/internal/controller"
	"github.com/biopro/interface-exception-collector/internal/events"
	infraRedis "github.com/biopro/interface-exception-collector/internal/infrastructure/redis"
	"github.com/biopro/interface-exception-collector/internal/repository/postgres"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "exception-collector-api", "exceptions")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories ---
	exceptionRepo := postgres.NewExceptionRepository(app.Pool)
	attemptRepo := postgres.NewAttemptRepository(app.Pool)
	outboxRepo := postgres.NewOutboxRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Event publishing and retry dispatch ---
	publisher := events.NewOutboxPublisher(outboxRepo, app.Logger)
	streamProducer := infraRedis.NewStreamProducer(app.Redis)
	dispatcher := infraRedis.NewRetryDispatcher(streamProducer)

	// --- Use cases ---
	acknowledgeUC := appException.NewAcknowledgeUseCase(exceptionRepo, txManager, publisher, app.Logger)
	resolveUC := appException.NewResolveUseCase(exceptionRepo, txManager, publisher, app.Logger)
	initiateRetryUC := appRetry.NewInitiateRetryUseCase(exceptionRepo, attemptRepo, txManager, publisher, dispatcher, app.Logger)
	cancelRetryUC := appRetry.NewCancelRetryUseCase(exceptionRepo, attemptRepo, txManager, publisher, app.Logger)
	retryQueries := appRetry.NewQueries(exceptionRepo, attemptRepo)

	// --- Build router ---
	router := controller.NewRouter(controller.RouterDeps{
		Pool:          app.Pool,
		RedisClient:   app.Redis,
		ExceptionRepo: exceptionRepo,
		Acknowledge:   acknowledgeUC,
		Resolve:       resolveUC,
		InitiateRetry: initiateRetryUC,
		CancelRetry:   cancelRetryUC,
		RetryQueries:  retryQueries,
		Metrics:       app.Metrics,
		CORSConfig:    app.Config.Server.CORS,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}
