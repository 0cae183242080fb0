package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pairvault/pairvault/internal/app"
	"github.com/pairvault/pairvault/internal/config"
	"github.com/pairvault/pairvault/internal/logging"
	"github.com/pairvault/pairvault/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	if err := run(cfg, logger); err != nil {
		logger.Error("pairvault api stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited cleanly")
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backends, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open backends: %w", err)
	}
	defer func() {
		if err := backends.Close(context.Background()); err != nil {
			logger.Warn("close backends", "error", err)
		}
	}()

	srv, err := server.New(cfg, backends, logger)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	logger.Info("pairvault api starting",
		"addr", cfg.Address(),
		"env", cfg.AppEnv,
		"blob_backend", cfg.BlobBackend,
		"schema_version", cfg.SchemaVersion,
	)

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- srv.Listen()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	} else if err != nil {
		logger.Warn("shutdown timed out, dropping in-flight requests", "timeout", cfg.ShutdownPeriod)
	}
	return nil
}
