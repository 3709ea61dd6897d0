package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fanpass/internal/api"
	"fanpass/internal/config"
	"fanpass/internal/logger"
	"fanpass/internal/obs"
	"fanpass/internal/validation"
)

func main() {
	// Проверяем, нужно ли запустить валидацию
	if len(os.Args) > 1 && os.Args[1] == "validate" {
		runValidate(os.Args[2:])
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", "error", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		logger.Fatal("Failed to init tracing", "error", err)
	}

	server, err := api.NewServer(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to create server", "error", err)
	}

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Ждем сигнал для graceful shutdown
	<-ctx.Done()
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	if err := server.Cleanup(); err != nil {
		slog.Error("Error during cleanup", "error", err)
	}

	if err := shutdownTracer(shutdownCtx); err != nil {
		slog.Error("Error flushing traces", "error", err)
	}

	slog.Info("Server stopped")
}

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8080", "base URL of a running API server")
	_ = fs.Parse(args)

	logger.Init("info", "text")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := validation.RunValidation(ctx, *url); err != nil {
		logger.Fatal("Validation failed", "error", err)
	}
}
