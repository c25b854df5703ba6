package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/biopro/interface-exception-collector/internal/alerting"
	appException "github.com/biopro/interface-exception-collector/internal/application/exception"
	appRetry "github.com/biopro/interface-exception-collector/internal/application/retry"
	"github.com/biopro/interface-exception-collector/internal/bootstrap"
	"github.com/biopro/interface-exception-collector/internal/classification"
	"github.com/biopro/interface-exception-collector/internal/consumer"
	"github.com/biopro/interface-exception-collector/internal/domain/exception"
	"github.com/biopro/interface-exception-collector/internal/events"
	"github.com/biopro/interface-exception-collector/internal/infrastructure/config"
	infraRedis "github.com/biopro/interface-exception-collector/internal/infrastructure/redis"
	"github.com/biopro/interface-exception-collector/internal/repository/postgres"
	"github.com/biopro/interface-exception-collector/internal/sourceclient"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "exception-collector-worker", "exceptions_worker")
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

	// --- Publishing and dispatch ---
	publisher := events.NewOutboxPublisher(outboxRepo, app.Logger)
	streamProducer := infraRedis.NewStreamProducer(app.Redis)

	// --- Domain services ---
	classifier := classification.New(classification.TableWithOverrides(
		app.Config.Classification.CategoryRules,
		app.Config.Classification.SeverityRules,
	))
	alertEngine := alerting.NewEngine(alerting.EngineConfig{
		RepeatedFailureThreshold: app.Config.Alerting.RepeatedFailureThreshold,
	})
	registry := buildSourceRegistry(app.Config, app.Logger)

	// --- Use cases ---
	captureUC := appException.NewCaptureUseCase(
		exceptionRepo, txManager, classifier, publisher, alertEngine,
		app.Config.Retry.MaxAttempts, app.Logger,
	)
	executeUC := appRetry.NewExecuteAttemptUseCase(
		exceptionRepo, attemptRepo, txManager, registry, publisher, alertEngine,
		app.Config.Retry.AttemptTimeout, app.Config.Retry.FailureWindow, app.Logger,
	)

	// --- Consumers ---
	consumerCfg := app.Config.Consumer
	inbound := infraRedis.NewStreamConsumer(
		app.Redis, infraRedis.InboundStream,
		consumerCfg.ConsumerGroup, app.Config.InstanceID,
		consumerCfg.BatchSize, consumerCfg.BlockDuration,
	)
	retryDispatch := infraRedis.NewStreamConsumer(
		app.Redis, infraRedis.RetryDispatchStream,
		consumerCfg.ConsumerGroup, app.Config.InstanceID,
		consumerCfg.BatchSize, consumerCfg.BlockDuration,
	)
	for _, c := range []*infraRedis.StreamConsumer{inbound, retryDispatch} {
		if err := c.CreateGroup(ctx); err != nil {
			app.Logger.Error().Err(err).Msg("Failed to create consumer group (may already exist)")
		}
	}

	pipeline := consumer.NewPipeline(consumer.BackoffPolicy{
		InitialInterval: consumerCfg.Backoff.InitialInterval,
		Multiplier:      consumerCfg.Backoff.Multiplier,
		MaxInterval:     consumerCfg.Backoff.MaxInterval,
		MaxAttempts:     consumerCfg.Backoff.MaxAttempts,
	}, streamProducer, app.Logger)
	inboundDispatcher := consumer.NewDispatcher(captureUC, app.Logger)

	// --- Alert monitor on a cron schedule ---
	monitor := alerting.NewMonitor(alerting.Thresholds{
		P95ResponseTime:   app.Config.Alerting.P95ResponseTime,
		ErrorRatePct:      app.Config.Alerting.ErrorRatePct,
		CacheMissRatePct:  app.Config.Alerting.CacheMissRatePct,
		ConnSaturationPct: app.Config.Alerting.ConnSaturationPct,
	}, app.Config.Alerting.Cooldown, app.Logger)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(app.Config.Alerting.MonitorSchedule, func() {
		monitor.Sample(sampleMetrics(app))
	}); err != nil {
		app.Logger.Error().Err(err).Str("schedule", app.Config.Alerting.MonitorSchedule).Msg("Failed to schedule alert monitor")
	} else {
		scheduler.Start()
		defer scheduler.Stop()
	}

	app.Logger.Info().
		Str("inbound_stream", infraRedis.InboundStream).
		Str("dispatch_stream", infraRedis.RetryDispatchStream).
		Str("group", consumerCfg.ConsumerGroup).
		Str("consumer", app.Config.InstanceID).
		Msg("Worker started, listening for messages...")

	// Signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Inbound failure events (capture pipeline with backoff and DLT).
	g.Go(func() error {
		return runInboundConsumer(gCtx, app, inbound, pipeline, inboundDispatcher)
	})

	// 2. Accepted retry attempts awaiting execution.
	g.Go(func() error {
		return runRetryExecutor(gCtx, app, retryDispatch, executeUC)
	})

	// 3. Outbox relay (polls outbox table and publishes to the lifecycle stream).
	g.Go(func() error {
		return runOutboxRelay(gCtx, app, txManager, outboxRepo, streamProducer, consumerCfg.OutboxPollInterval)
	})

	// 4. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}

// buildSourceRegistry wires one client per upstream interface. Mocks
// replace HTTP clients for local runs.
func buildSourceRegistry(cfg *config.Config, logger zerolog.Logger) *sourceclient.Registry {
	if cfg.Sources.UseMocks {
		return sourceclient.NewRegistry()
	}
	timeout := cfg.Retry.ClientTimeout
	return sourceclient.NewRegistry(
		sourceclient.NewHTTPClient(exception.InterfaceOrder, cfg.Sources.OrderBaseURL, timeout, logger),
		sourceclient.NewHTTPClient(exception.InterfaceCollection, cfg.Sources.CollectionBaseURL, timeout, logger),
		sourceclient.NewHTTPClient(exception.InterfaceDistribution, cfg.Sources.DistributionBaseURL, timeout, logger),
	)
}

func runInboundConsumer(
	ctx context.Context,
	app *bootstrap.App,
	sc *infraRedis.StreamConsumer,
	pipeline *consumer.Pipeline,
	dispatcher *consumer.Dispatcher,
) error {
	process := func(msg consumer.Message) {
		start := time.Now()
		if err := pipeline.Handle(ctx, msg, dispatcher.Handle); err != nil {
			// Dead-letter publication itself failed; leave the message
			// pending so the claim sweep redelivers it.
			app.Logger.Error().Err(err).Str("message_id", msg.ID).Msg("Message left pending after DLT failure")
			app.Metrics.ConsumerMessagesProcessed.WithLabelValues(msg.Stream, "error").Inc()
			return
		}
		app.Metrics.ConsumerMessagesProcessed.WithLabelValues(msg.Stream, "success").Inc()
		app.Metrics.ConsumerProcessingDuration.WithLabelValues(msg.Stream).Observe(time.Since(start).Seconds())
		sc.Ack(ctx, msg.ID)
	}

	claimTicker := time.NewTicker(app.Config.Consumer.ClaimInterval)
	defer claimTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-claimTicker.C:
			stale, err := sc.ClaimStale(ctx, app.Config.Consumer.ClaimMinIdle)
			if err != nil {
				app.Logger.Error().Err(err).Msg("Failed to claim stale inbound messages")
			}
			for _, xmsg := range stale {
				process(toMessage(infraRedis.InboundStream, xmsg.ID, xmsg.Values))
			}
		default:
		}

		streams, err := sc.Read(ctx)
		if err != nil {
			app.Logger.Error().Err(err).Msg("Failed to read from inbound stream")
			time.Sleep(1 * time.Second)
			continue
		}

		for _, stream := range streams {
			for _, xmsg := range stream.Messages {
				process(toMessage(stream.Stream, xmsg.ID, xmsg.Values))
			}
		}
	}
}

func runRetryExecutor(
	ctx context.Context,
	app *bootstrap.App,
	sc *infraRedis.StreamConsumer,
	executeUC *appRetry.ExecuteAttemptUseCase,
) error {
	handler := consumer.NewRetryDispatchHandler(executeUC, func(transactionID string) consumer.Lock {
		return infraRedis.NewDistributedLock(app.Redis, "retry:"+transactionID, app.Config.Retry.LockTTL)
	}, app.Logger)

	process := func(streamName, messageID string, values map[string]any) {
		msg := consumer.Message{ID: messageID, Stream: streamName, Values: values}
		switch handler.Handle(ctx, msg, sc) {
		case consumer.DispatchExecuted:
			app.Metrics.ConsumerMessagesProcessed.WithLabelValues(streamName, "success").Inc()
		case consumer.DispatchFailed:
			app.Metrics.ConsumerMessagesProcessed.WithLabelValues(streamName, "error").Inc()
		}
	}

	claimTicker := time.NewTicker(app.Config.Consumer.ClaimInterval)
	defer claimTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-claimTicker.C:
			stale, err := sc.ClaimStale(ctx, app.Config.Consumer.ClaimMinIdle)
			if err != nil {
				app.Logger.Error().Err(err).Msg("Failed to claim stale dispatch messages")
			}
			for _, xmsg := range stale {
				process(infraRedis.RetryDispatchStream, xmsg.ID, xmsg.Values)
			}
		default:
		}

		streams, err := sc.Read(ctx)
		if err != nil {
			app.Logger.Error().Err(err).Msg("Failed to read from retry dispatch stream")
			time.Sleep(1 * time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				process(stream.Stream, msg.ID, msg.Values)
			}
		}
	}
}

func runOutboxRelay(
	ctx context.Context,
	app *bootstrap.App,
	txManager *postgres.TxManager,
	outboxRepo *postgres.OutboxRepository,
	streamProducer *infraRedis.StreamProducer,
	pollInterval time.Duration,
) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		err := txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			entries, err := outboxRepo.GetPending(txCtx, 10)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				if err := streamProducer.PublishLifecycleEvent(ctx, entry.Payload); err != nil {
					app.Logger.Error().Err(err).Str("outbox_id", entry.ID.String()).Msg("Failed to publish outbox event")
					outboxRepo.MarkFailed(txCtx, entry.ID)
					app.Metrics.OutboxPublished.WithLabelValues("error").Inc()
					continue
				}
				outboxRepo.MarkPublished(txCtx, entry.ID)
				app.Metrics.OutboxPublished.WithLabelValues("success").Inc()
			}
			return nil
		})
		if err != nil {
			app.Logger.Error().Err(err).Msg("Outbox relay error")
		}
	}
}

// sampleMetrics builds one operational snapshot from the consumer
// pipeline's metric families and live pool stats.
func sampleMetrics(app *bootstrap.App) alerting.MetricsSnapshot {
	snap := alerting.MetricsSnapshot{}

	pipeline := app.Metrics.PipelineStats()
	snap.P95ResponseTime = pipeline.P95Latency
	snap.ErrorRatePct = pipeline.ErrorRatePct

	stat := app.Pool.Stat()
	if stat.MaxConns() > 0 {
		snap.ConnSaturationPct = float64(stat.AcquiredConns()) / float64(stat.MaxConns()) * 100
	}

	poolStats := app.Redis.PoolStats()
	total := poolStats.Hits + poolStats.Misses
	if total > 0 {
		snap.CacheMissRatePct = float64(poolStats.Misses) / float64(total) * 100
	}
	return snap
}

func toMessage(stream, id string, values map[string]any) consumer.Message {
	msg := consumer.Message{ID: id, Stream: stream, Values: values}
	if key, ok := values["key"].(string); ok {
		msg.Key = key
	}
	return msg
}
