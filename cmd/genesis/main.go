// Command genesis runs the simulation driver: every tick it picks or creates a
// worker, synthesizes a task and settles it through the economy engine.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hecoverseer/backend/internal/app"
	"github.com/hecoverseer/backend/internal/config"
	"github.com/hecoverseer/backend/internal/platform/otel"
	"github.com/hecoverseer/backend/internal/simulation"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, "hec-genesis", otel.Options{Endpoint: cfg.OTelEndpoint, Enabled: cfg.OTelEnabled})
	if err != nil {
		slog.Warn("Tracing disabled", "error", err)
	} else {
		defer func() { _ = shutdownTracing(context.Background()) }()
	}

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		slog.Error("Cannot start simulation", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.MigrateRiver(ctx); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}
	// Insert-only: failed mints are queued here and retried by the API process.
	if _, err := a.NewRiverClient(false); err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	driver := &simulation.Driver{
		Engine:               a.Engine,
		Switch:               a.Query,
		Interval:             cfg.TickInterval,
		NewWorkerProbability: cfg.NewWorkerProbability,
		Metrics:              a.Metrics,
		Logger:               logger,
	}
	slog.Info("Genesis simulation started", "interval", cfg.TickInterval, "verifier", cfg.Verifier, "ledger", cfg.Ledger)
	if err := driver.Run(ctx); err != nil {
		slog.Error("Simulation stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("Simulation stopped")
}
