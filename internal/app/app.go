// Package app wires the economy for the binaries under cmd/: database pool
// and migrations, reward ledger, repositories, settlement engine and the
// River client that retries failed mints.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"

	"github.com/hecoverseer/backend/internal/audit"
	"github.com/hecoverseer/backend/internal/config"
	"github.com/hecoverseer/backend/internal/db"
	"github.com/hecoverseer/backend/internal/economy"
	"github.com/hecoverseer/backend/internal/execution"
	"github.com/hecoverseer/backend/internal/ledger"
	"github.com/hecoverseer/backend/internal/metrics"
	"github.com/hecoverseer/backend/internal/query"
	"github.com/hecoverseer/backend/internal/repository"
)

// ErrRiverNotWired is returned by the retry enqueuer before BindRiver ran.
var ErrRiverNotWired = errors.New("river insert not wired")

type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Pool     *pgxpool.Pool
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Ledger *ledger.Breaker
	// Supply is set when the ledger backend keeps its own mint record.
	Supply audit.SupplySource

	Users       *repository.UserRepo
	Tasks       *repository.TaskRepo
	Submissions *repository.SubmissionRepo
	Settings    *repository.ConfigRepo
	Stats       *repository.StatsRepo

	Engine *economy.Engine
	Query  *query.Service

	closeLedger func() error

	insertMu sync.Mutex
	insertFn func(ctx context.Context, tx pgx.Tx, args execution.MintRetryArgs) error
}

// Open connects to PostgreSQL, applies the schema, opens the ledger and
// builds the engine. The caller must Close the App.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("reach PostgreSQL: %w", err)
	}
	logger.Info("Connected to PostgreSQL database successfully!")

	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	raw, closeLedger, err := cfg.OpenLedger(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	logger.Info("Reward ledger ready", "backend", cfg.Ledger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &App{
		Config:      cfg,
		Logger:      logger,
		Pool:        pool,
		Registry:    reg,
		Metrics:     metrics.New(reg),
		Ledger:      ledger.NewBreaker(raw, ledger.DefaultBreakerConfig(), logger),
		Users:       repository.NewUserRepo(pool),
		Tasks:       repository.NewTaskRepo(pool),
		Submissions: repository.NewSubmissionRepo(pool),
		Settings:    repository.NewConfigRepo(pool),
		Stats:       repository.NewStatsRepo(pool),
		closeLedger: closeLedger,
	}
	if s, ok := raw.(audit.SupplySource); ok {
		a.Supply = s
	}

	a.Engine = &economy.Engine{
		Pool:             pool,
		Users:            a.Users,
		Tasks:            a.Tasks,
		Submissions:      a.Submissions,
		Verifier:         cfg.BuildVerifier(),
		Ledger:           a.Ledger,
		EnqueueMintRetry: a.enqueueMintRetry,
		Penalty:          cfg.ReputationPenalty,
		Metrics:          a.Metrics,
		Logger:           logger,
	}
	a.Query = &query.Service{Stats: a.Stats, Users: a.Users, Config: a.Settings}
	return a, nil
}

// MigrateRiver brings River's own tables up to date.
func (a *App) MigrateRiver(ctx context.Context) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(a.Pool), nil)
	if err != nil {
		return fmt.Errorf("create River migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("River migrate up: %w", err)
	}
	a.Logger.Info("River migrations applied")
	return nil
}

// NewRiverClient builds the River client and binds it as the engine's retry
// enqueuer. With work set the client also runs the mint_retry worker;
// without it the client is insert-only.
func (a *App) NewRiverClient(work bool) (*river.Client[pgx.Tx], error) {
	cfg := &river.Config{}
	if work {
		workers := river.NewWorkers()
		river.AddWorker(workers, execution.NewMintRetryWorker(a.Engine, a.Logger))
		cfg.Queues = map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		}
		cfg.Workers = workers
	}
	client, err := river.NewClient(riverpgxv5.New(a.Pool), cfg)
	if err != nil {
		return nil, fmt.Errorf("create River client: %w", err)
	}
	a.BindRiver(func(ctx context.Context, tx pgx.Tx, args execution.MintRetryArgs) error {
		_, err := client.InsertTx(ctx, tx, args, nil)
		return err
	})
	return client, nil
}

// BindRiver sets the insert func used for mint retries. The engine is built
// before the River client exists, so the binding happens late.
func (a *App) BindRiver(fn func(ctx context.Context, tx pgx.Tx, args execution.MintRetryArgs) error) {
	a.insertMu.Lock()
	a.insertFn = fn
	a.insertMu.Unlock()
}

func (a *App) enqueueMintRetry(ctx context.Context, tx pgx.Tx, submissionID uuid.UUID) error {
	a.insertMu.Lock()
	fn := a.insertFn
	a.insertMu.Unlock()
	if fn == nil {
		return ErrRiverNotWired
	}
	return fn(ctx, tx, execution.MintRetryArgs{SubmissionID: submissionID})
}

// ResumePendingMints re-enqueues a retry for every MINT_PENDING submission.
// Unique insert options make this a no-op for submissions that already have
// a live job.
func (a *App) ResumePendingMints(ctx context.Context, client *river.Client[pgx.Tx], limit int) (int, error) {
	ids, err := a.Submissions.ListPendingMints(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending mints: %w", err)
	}
	for _, id := range ids {
		if _, err := client.Insert(ctx, execution.MintRetryArgs{SubmissionID: id}, nil); err != nil {
			return 0, fmt.Errorf("enqueue mint retry for %s: %w", id, err)
		}
	}
	return len(ids), nil
}

// Auditor returns the economy auditor, reconciling against the ledger when
// the backend supports it.
func (a *App) Auditor() *audit.Auditor {
	return &audit.Auditor{Stats: a.Stats, Workers: a.Users, Ledger: a.Supply}
}

func (a *App) Close() {
	if a.closeLedger != nil {
		if err := a.closeLedger(); err != nil {
			a.Logger.Warn("close ledger", "error", err)
		}
	}
	a.Pool.Close()
}
