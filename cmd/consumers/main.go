package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"fanpass/cmd/consumers/jobs"
	"fanpass/internal/config"
	"fanpass/internal/consumers"
	"fanpass/internal/logger"
	"fanpass/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", "error", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	// Override NATS client ID for consumers
	cfg.NATS.ClientID = "fanpass-consumers"

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// спаны сверки и sweep экспортируются под собственным именем сервиса
	shutdownTracer, err := obs.InitTracer(ctx, cfg.Tracing.ForComponent("consumers"))
	if err != nil {
		logger.Fatal("Failed to init tracing", "error", err)
	}

	consumerService, err := consumers.NewConsumerService(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to create consumer service", "error", err)
	}

	if err := consumerService.Start(); err != nil {
		logger.Fatal("Failed to start consumers", "error", err)
	}

	var sweepJob *jobs.PendingSweepJob
	if cfg.Sweep.Enabled {
		sweepJob = jobs.NewPendingSweepJob(consumerService.Sweeper, cfg.Sweep.Interval)
		sweepJob.Start(ctx)
	}

	slog.Info("Consumers service started successfully")

	<-ctx.Done()
	slog.Info("Shutting down consumers service...")

	if sweepJob != nil {
		sweepJob.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := consumerService.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
	}

	if err := shutdownTracer(shutdownCtx); err != nil {
		slog.Error("Error flushing traces", "error", err)
	}

	slog.Info("Consumers service stopped")
}
