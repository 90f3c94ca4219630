package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"fasela/internal/platform/config"
	"fasela/internal/platform/httpserver"
	"fasela/internal/platform/logger"
)

// main loads configuration, wires the ledger, allocator and report services
// behind one router, and keeps the server lifecycle small. Business logic
// lives in the internal service packages.
func main() {
	cfg := config.Load()
	log := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close(log)

	if app.worker != nil {
		if err := app.worker.Start(ctx); err != nil {
			return fmt.Errorf("start outbox worker: %w", err)
		}
	}

	srv := httpserver.New(cfg.Server, app.router)
	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting fasela", "addr", cfg.Server.Addr, "environment", cfg.Server.Environment, "storage", app.storage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if app.worker != nil {
		if err := app.worker.Stop(shutdownCtx); err != nil {
			log.Warn("outbox worker did not stop cleanly", "error", err)
		}
	}
	log.Info("server stopped")
	return nil
}
