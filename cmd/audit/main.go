// Command audit prints the economy audit report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"

	"github.com/hecoverseer/backend/internal/app"
	"github.com/hecoverseer/backend/internal/config"
)

func main() {
	asJSON := flag.Bool("json", false, "print the report as JSON")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		slog.Error("Cannot open economy", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	report, err := a.Auditor().Build(ctx)
	if err != nil {
		slog.Error("Audit failed", "error", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(report)
	} else {
		err = report.Render(os.Stdout)
	}
	if err != nil {
		slog.Error("Write report", "error", err)
		os.Exit(1)
	}
}
