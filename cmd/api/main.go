package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/hecoverseer/backend/internal/app"
	"github.com/hecoverseer/backend/internal/config"
	"github.com/hecoverseer/backend/internal/platform/otel"
	"github.com/hecoverseer/backend/internal/validation"
)

// pendingMintScan bounds how many MINT_PENDING submissions are re-enqueued at
// startup.
const pendingMintScan = 1000

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

	shutdownTracing, err := otel.Setup(ctx, "hec-api", otel.Options{Endpoint: cfg.OTelEndpoint, Enabled: cfg.OTelEnabled})
	if err != nil {
		slog.Warn("Tracing disabled", "error", err)
	} else {
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				slog.Warn("Tracing shutdown", "error", err)
			}
		}()
	}

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		slog.Error("Cannot start node. Ensure Postgres is running, e.g. make dev-up or docker-compose up -d", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.MigrateRiver(ctx); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}

	// The API process runs the mint_retry worker.
	riverClient, err := a.NewRiverClient(true)
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}
	if n, err := a.ResumePendingMints(ctx, riverClient, pendingMintScan); err != nil {
		slog.Warn("Could not resume pending mints", "error", err)
	} else if n > 0 {
		slog.Info("Re-enqueued pending mints", "count", n)
	}

	validator, err := validation.New()
	if err != nil {
		slog.Error("Schema validator init failed", "error", err)
		os.Exit(1)
	}

	mux, err := newRouter(a, validator, logger)
	if err != nil {
		slog.Error("Cannot build router", "error", err)
		os.Exit(1)
	}
	handler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(mux)

	riverCtx, stopRiver := context.WithCancel(context.Background())
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	serverAddr := "0.0.0.0:" + cfg.Port
	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "addr", serverAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		slog.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown", "error", err)
	}
	if err := riverClient.Stop(shutdownCtx); err != nil {
		slog.Warn("River stop", "error", err)
	}
}
