// Package simulation drives the economy with synthetic workers and tasks on a
// fixed cadence, one full submit-and-settle cycle at a time.
package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hecoverseer/backend/internal/economy"
	"github.com/hecoverseer/backend/internal/metrics"
	"github.com/hecoverseer/backend/internal/models"
	"github.com/hecoverseer/backend/internal/verifier"
)

const (
	DefaultInterval             = 1500 * time.Millisecond
	DefaultNewWorkerProbability = 0.3
)

// Synthetic task parameters.
var (
	taskTypes = []string{models.TaskTypeGardening, models.TaskTypeCoding, models.TaskTypeConstruction}
	siteFence = models.GeoFence{Lat: 34.05, Long: -118.24, RadiusMeters: 50}
	siteGPS   = "34.05, -118.24"
)

const (
	minHours = 1.0
	maxHours = 5.0
)

// Settler is the part of the economy engine the driver uses.
type Settler interface {
	SelectOrCreateWorker(ctx context.Context, probabilityNew float64) (*models.User, bool, error)
	SubmitWork(ctx context.Context, req economy.WorkRequest) (*economy.Result, error)
}

// Switch reports whether the simulation is running.
type Switch interface {
	SimulationActive(ctx context.Context) (bool, error)
}

type Driver struct {
	Engine               Settler
	Switch               Switch
	Interval             time.Duration
	NewWorkerProbability float64
	Metrics              *metrics.Metrics
	Logger               *slog.Logger
	// Rand drives task synthesis. Nil uses a randomly seeded source.
	Rand *rand.Rand
}

// Run performs a cycle immediately and then one cycle per Interval until ctx
// is cancelled. The wait starts after a cycle finishes, so cycles never
// overlap. A failed cycle is logged and the loop continues.
func (d *Driver) Run(ctx context.Context) error {
	interval := d.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	d.logger().Info("simulation driver started", "interval", interval, "new_worker_probability", d.probability())

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			d.logger().Info("simulation driver stopped")
			return nil
		case <-timer.C:
		}
		// A shutdown signal stops the loop between cycles, never mid-settlement.
		if _, err := d.RunCycle(context.WithoutCancel(ctx)); err != nil {
			d.logger().Error("simulation cycle failed", "error", err)
		}
		timer.Reset(interval)
	}
}

// RunCycle performs one tick: check the switch, pick or create a worker,
// synthesize work and settle it. It returns nil without settling when the
// simulation is paused.
func (d *Driver) RunCycle(ctx context.Context) (*economy.Result, error) {
	active, err := d.Switch.SimulationActive(ctx)
	if err != nil {
		d.Metrics.SimulationCycle(metrics.CycleFailed)
		return nil, fmt.Errorf("read simulation switch: %w", err)
	}
	if !active {
		d.Metrics.SimulationCycle(metrics.CyclePaused)
		d.logger().Info("simulation paused")
		return nil, nil
	}

	worker, created, err := d.Engine.SelectOrCreateWorker(ctx, d.probability())
	if err != nil {
		d.Metrics.SimulationCycle(metrics.CycleFailed)
		return nil, fmt.Errorf("select worker: %w", err)
	}
	if created {
		d.logger().Info("new worker registered", "worker_id", worker.ID, "wallet_address", shortWallet(worker.WalletAddress, 8))
	}

	req := d.SyntheticWork(worker.ID)
	d.logger().Info("worker submitting", "wallet_address", shortWallet(worker.WalletAddress, 6), "hours", req.Hours, "task_type", req.TaskType)

	res, err := d.Engine.SubmitWork(ctx, req)
	if err != nil {
		d.Metrics.SimulationCycle(metrics.CycleFailed)
		return nil, fmt.Errorf("settle synthetic work: %w", err)
	}
	d.Metrics.SimulationCycle(metrics.CycleSettled)
	d.narrate(res)
	return res, nil
}

// SyntheticWork builds the work claim for one tick: a random task type,
// 1.0 to 5.0 hours in tenths, GPS telemetry at the site, a fresh media locator.
func (d *Driver) SyntheticWork(workerID uuid.UUID) economy.WorkRequest {
	rng := d.rng()
	taskType := taskTypes[rng.IntN(len(taskTypes))]
	hours := decimal.NewFromFloat(minHours + rng.Float64()*(maxHours-minHours)).Round(1).InexactFloat64()

	telemetry := map[string]string{verifier.TelemetryGPSLog: siteGPS}
	if taskType == models.TaskTypeCoding {
		telemetry[verifier.TelemetryCommitLog] = "commit " + hexID()[:12]
	}
	return economy.WorkRequest{
		WorkerID:         workerID,
		TaskType:         taskType,
		Hours:            hours,
		Telemetry:        telemetry,
		ProofMedia:       []string{"ipfs://" + hexID()},
		GeoFence:         siteFence,
		RequiredEvidence: []string{models.EvidenceGPS, models.EvidenceTimelapseVideo},
	}
}

func (d *Driver) narrate(res *economy.Result) {
	log := d.logger().With("submission_id", res.SubmissionID, "worker_id", res.WorkerID)
	switch res.Verdict {
	case models.VerdictApproved:
		log.Info("verdict approved", "reason", res.Reason, "confidence", res.Confidence)
		log.Info("tokens minted", "amount", res.Minted, "multiplier", economy.MultiplierFor(res.TaskType), "tx_id", shortWallet(res.LedgerTxID, 16))
	case models.VerdictMintPending:
		log.Warn("verdict approved, mint deferred to retry", "reason", res.Reason)
	default:
		log.Info("verdict rejected", "reason", res.Reason, "confidence", res.Confidence)
		log.Info("reputation slashed", "reputation_score", res.ReputationScore)
	}
}

func (d *Driver) probability() float64 {
	if d.NewWorkerProbability < 0 {
		return DefaultNewWorkerProbability
	}
	return d.NewWorkerProbability
}

func (d *Driver) rng() *rand.Rand {
	if d.Rand == nil {
		d.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return d.Rand
}

func (d *Driver) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func hexID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func shortWallet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
