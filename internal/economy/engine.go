package economy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hecoverseer/backend/internal/ledger"
	"github.com/hecoverseer/backend/internal/metrics"
	"github.com/hecoverseer/backend/internal/models"
	"github.com/hecoverseer/backend/internal/verifier"
)

var tracer = otel.Tracer("github.com/hecoverseer/backend/internal/economy")

// Engine settles submissions. All fields except EnqueueMintRetry, Penalty,
// Metrics, Logger, Now and Chance are required.
type Engine struct {
	Pool        TxBeginner
	Users       UserStore
	Tasks       TaskStore
	Submissions SubmissionStore
	Verifier    verifier.Verifier
	Ledger      ledger.Ledger

	// EnqueueMintRetry, when set, turns a failed mint into a MINT_PENDING
	// submission plus a retry job. When nil the settlement rolls back.
	EnqueueMintRetry MintRetryEnqueuer

	Penalty float64
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
	Chance  func() float64
}

// WorkRequest is a worker's claim for work on a task that does not exist yet.
// The task is created in the same transaction as the submission.
type WorkRequest struct {
	WorkerID         uuid.UUID
	TaskType         string
	Hours            float64
	Telemetry        map[string]string
	ProofMedia       []string
	GeoFence         models.GeoFence
	RequiredEvidence []string
}

// SubmitRequest is a worker's claim for work on an existing task.
type SubmitRequest struct {
	WorkerID   uuid.UUID
	TaskID     uuid.UUID
	Hours      float64
	Telemetry  map[string]string
	ProofMedia []string
}

// Result is the outcome of one settlement.
type Result struct {
	SubmissionID    uuid.UUID
	TaskID          uuid.UUID
	WorkerID        uuid.UUID
	TaskType        string
	Hours           float64
	Verdict         string
	Reason          string
	Confidence      float64
	Minted          float64
	LedgerTxID      string
	ReputationScore float64
	TotalMinted     float64
}

// SubmitWork creates the task and the submission, runs the verifier and
// applies the verdict, all in one transaction.
func (e *Engine) SubmitWork(ctx context.Context, req WorkRequest) (*Result, error) {
	if err := validateClaim(req.WorkerID, req.Hours); err != nil {
		return nil, err
	}
	taskType := verifier.NormalizeTaskType(req.TaskType)
	ctx, span := tracer.Start(ctx, "economy.SubmitWork", trace.WithAttributes(
		attribute.String("worker_id", req.WorkerID.String()),
		attribute.String("task_type", taskType),
	))
	defer span.End()
	start := time.Now()

	tx, err := e.Pool.Begin(ctx)
	if err != nil {
		return nil, fail(span, fmt.Errorf("%w: begin tx: %w", ErrStorage, err))
	}
	defer tx.Rollback(ctx)

	worker, err := e.Users.GetByIDForUpdate(ctx, tx, req.WorkerID)
	if err != nil {
		return nil, fail(span, lookupErr("worker", req.WorkerID, err))
	}

	task := &models.Task{
		ID:               uuid.New(),
		CreatorID:        worker.ID,
		Type:             taskType,
		GeoFence:         req.GeoFence,
		RequiredEvidence: req.RequiredEvidence,
		Status:           models.TaskStatusOpen,
		CreatedAt:        e.now(),
	}
	if err := e.Tasks.CreateTx(ctx, tx, task); err != nil {
		return nil, fail(span, fmt.Errorf("%w: create task: %w", ErrStorage, err))
	}

	ev := &verifier.Evidence{
		TaskID:           task.ID,
		TaskType:         task.Type,
		Telemetry:        req.Telemetry,
		ProofMedia:       req.ProofMedia,
		RequiredEvidence: task.RequiredEvidence,
	}
	res, err := e.settle(ctx, tx, worker, task, ev, req.Hours)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fail(span, fmt.Errorf("%w: commit settlement: %w", ErrStorage, err))
	}
	e.settled(ev, res, start)
	span.SetAttributes(attribute.String("verdict", res.Verdict))
	return res, nil
}

// Submit settles a claim against an existing task.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (*Result, error) {
	if err := validateClaim(req.WorkerID, req.Hours); err != nil {
		return nil, err
	}
	if req.TaskID == uuid.Nil {
		return nil, fmt.Errorf("%w: task_id is required", ErrValidation)
	}
	ctx, span := tracer.Start(ctx, "economy.Submit", trace.WithAttributes(
		attribute.String("worker_id", req.WorkerID.String()),
		attribute.String("task_id", req.TaskID.String()),
	))
	defer span.End()
	start := time.Now()

	tx, err := e.Pool.Begin(ctx)
	if err != nil {
		return nil, fail(span, fmt.Errorf("%w: begin tx: %w", ErrStorage, err))
	}
	defer tx.Rollback(ctx)

	worker, err := e.Users.GetByIDForUpdate(ctx, tx, req.WorkerID)
	if err != nil {
		return nil, fail(span, lookupErr("worker", req.WorkerID, err))
	}
	task, err := e.Tasks.GetByIDTx(ctx, tx, req.TaskID)
	if err != nil {
		return nil, fail(span, lookupErr("task", req.TaskID, err))
	}

	ev := &verifier.Evidence{
		TaskID:           task.ID,
		TaskType:         task.Type,
		Telemetry:        req.Telemetry,
		ProofMedia:       req.ProofMedia,
		RequiredEvidence: task.RequiredEvidence,
	}
	res, err := e.settle(ctx, tx, worker, task, ev, req.Hours)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fail(span, fmt.Errorf("%w: commit settlement: %w", ErrStorage, err))
	}
	e.settled(ev, res, start)
	span.SetAttributes(attribute.String("verdict", res.Verdict))
	return res, nil
}

// settle runs the verifier and applies its verdict inside tx. The worker row
// must already be locked by the caller.
func (e *Engine) settle(ctx context.Context, tx pgx.Tx, worker *models.User, task *models.Task, ev *verifier.Evidence, hours float64) (*Result, error) {
	verdict, err := e.Verifier.Evaluate(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("evaluate evidence: %w", err)
	}

	end := e.now()
	sub := &models.Submission{
		ID:            uuid.New(),
		TaskID:        task.ID,
		WorkerID:      worker.ID,
		TimeStart:     end.Add(-time.Duration(hours * float64(time.Hour))),
		TimeEnd:       end,
		DurationHours: hours,
		TelemetryData: ev.Telemetry,
		ProofMedia:    ev.ProofMedia,
		VerdictReason: verdict.Reason,
		Confidence:    verdict.Confidence,
	}
	res := &Result{
		SubmissionID:    sub.ID,
		TaskID:          task.ID,
		WorkerID:        worker.ID,
		TaskType:        task.Type,
		Hours:           hours,
		Reason:          verdict.Reason,
		Confidence:      verdict.Confidence,
		ReputationScore: worker.ReputationScore,
		TotalMinted:     worker.TotalMinted,
	}

	if verdict.Approved() {
		receipt, err := e.Ledger.Mint(ctx, ledger.MintRequest{
			SubmissionID: sub.ID,
			Address:      worker.WalletAddress,
			Hours:        hours,
			Multiplier:   MultiplierFor(task.Type),
		})
		switch {
		case err == nil:
			res.Minted = receipt.Amount.InexactFloat64()
			res.TotalMinted = Credit(worker.TotalMinted, receipt.Amount)
			res.LedgerTxID = receipt.TxID
			sub.AgentVerdict = models.VerdictApproved
			sub.LedgerTxID = &receipt.TxID
		case e.EnqueueMintRetry != nil && !errors.Is(err, ledger.ErrInvalidMint):
			e.Metrics.LedgerFailed()
			e.logger().Warn("mint failed, deferring to retry", "submission_id", sub.ID, "worker_id", worker.ID, "error", err)
			sub.AgentVerdict = models.VerdictMintPending
		default:
			e.Metrics.LedgerFailed()
			return nil, fmt.Errorf("%w: %w", ErrLedger, err)
		}
	} else {
		res.ReputationScore = Penalize(worker.ReputationScore, e.penalty())
		sub.AgentVerdict = models.VerdictRejected
	}
	res.Verdict = sub.AgentVerdict

	if res.ReputationScore != worker.ReputationScore || res.TotalMinted != worker.TotalMinted {
		if err := e.Users.UpdateBalancesTx(ctx, tx, worker.ID, res.ReputationScore, res.TotalMinted); err != nil {
			return nil, fmt.Errorf("%w: update worker: %w", ErrStorage, err)
		}
	}
	if err := e.Submissions.CreateTx(ctx, tx, sub); err != nil {
		return nil, fmt.Errorf("%w: create submission: %w", ErrStorage, err)
	}
	if sub.AgentVerdict == models.VerdictMintPending {
		if err := e.EnqueueMintRetry(ctx, tx, sub.ID); err != nil {
			return nil, fmt.Errorf("%w: enqueue mint retry: %w", ErrStorage, err)
		}
	}
	return res, nil
}

// CompleteMint finishes a MINT_PENDING submission. Calling it for a
// submission that is already settled is a no-op that returns its state.
func (e *Engine) CompleteMint(ctx context.Context, submissionID uuid.UUID) (*Result, error) {
	ctx, span := tracer.Start(ctx, "economy.CompleteMint", trace.WithAttributes(
		attribute.String("submission_id", submissionID.String()),
	))
	defer span.End()

	tx, err := e.Pool.Begin(ctx)
	if err != nil {
		return nil, fail(span, fmt.Errorf("%w: begin tx: %w", ErrStorage, err))
	}
	defer tx.Rollback(ctx)

	sub, err := e.Submissions.GetByIDForUpdate(ctx, tx, submissionID)
	if err != nil {
		return nil, fail(span, lookupErr("submission", submissionID, err))
	}
	res := &Result{
		SubmissionID: sub.ID,
		TaskID:       sub.TaskID,
		WorkerID:     sub.WorkerID,
		Hours:        sub.DurationHours,
		Verdict:      sub.AgentVerdict,
		Reason:       sub.VerdictReason,
		Confidence:   sub.Confidence,
	}
	if sub.AgentVerdict != models.VerdictMintPending {
		if sub.LedgerTxID != nil {
			res.LedgerTxID = *sub.LedgerTxID
		}
		return res, nil
	}

	worker, err := e.Users.GetByIDForUpdate(ctx, tx, sub.WorkerID)
	if err != nil {
		return nil, fail(span, lookupErr("worker", sub.WorkerID, err))
	}
	task, err := e.Tasks.GetByIDTx(ctx, tx, sub.TaskID)
	if err != nil {
		return nil, fail(span, lookupErr("task", sub.TaskID, err))
	}

	receipt, err := e.Ledger.Mint(ctx, ledger.MintRequest{
		SubmissionID: sub.ID,
		Address:      worker.WalletAddress,
		Hours:        sub.DurationHours,
		Multiplier:   MultiplierFor(task.Type),
	})
	if err != nil {
		e.Metrics.LedgerFailed()
		return nil, fail(span, fmt.Errorf("%w: %w", ErrLedger, err))
	}

	res.TaskType = task.Type
	res.Minted = receipt.Amount.InexactFloat64()
	res.TotalMinted = Credit(worker.TotalMinted, receipt.Amount)
	res.ReputationScore = worker.ReputationScore
	res.LedgerTxID = receipt.TxID
	res.Verdict = models.VerdictApproved

	if err := e.Users.UpdateBalancesTx(ctx, tx, worker.ID, worker.ReputationScore, res.TotalMinted); err != nil {
		return nil, fail(span, fmt.Errorf("%w: update worker: %w", ErrStorage, err))
	}
	if err := e.Submissions.UpdateVerdictTx(ctx, tx, sub.ID, models.VerdictApproved, &receipt.TxID); err != nil {
		return nil, fail(span, fmt.Errorf("%w: update submission: %w", ErrStorage, err))
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fail(span, fmt.Errorf("%w: commit mint: %w", ErrStorage, err))
	}

	e.Metrics.AddMinted(res.Minted)
	e.logger().Info("pending mint completed", "submission_id", sub.ID, "worker_id", worker.ID, "amount", res.Minted, "tx_id", receipt.TxID, "replayed", receipt.Replayed)
	return res, nil
}

// settled runs the post-commit effects of a settlement.
func (e *Engine) settled(ev *verifier.Evidence, res *Result, start time.Time) {
	if obs, ok := e.Verifier.(verifier.Observer); ok {
		obs.Observe(ev)
	}
	e.Metrics.ObserveSettlement(res.Verdict, time.Since(start))
	e.Metrics.AddMinted(res.Minted)
	e.logger().Info("submission settled",
		"submission_id", res.SubmissionID,
		"worker_id", res.WorkerID,
		"task_type", res.TaskType,
		"hours", res.Hours,
		"verdict", res.Verdict,
		"reason", res.Reason,
		"minted", res.Minted,
		"reputation", res.ReputationScore,
	)
}

func validateClaim(workerID uuid.UUID, hours float64) error {
	if workerID == uuid.Nil {
		return fmt.Errorf("%w: worker_id is required", ErrValidation)
	}
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours <= 0 {
		return fmt.Errorf("%w: hours must be > 0", ErrValidation)
	}
	if hours > MaxClaimHours {
		return fmt.Errorf("%w: hours must be <= %d", ErrValidation, MaxClaimHours)
	}
	return nil
}

func lookupErr(kind string, id uuid.UUID, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return fmt.Errorf("%w: load %s: %w", ErrStorage, kind, err)
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (e *Engine) penalty() float64 {
	if e.Penalty > 0 {
		return e.Penalty
	}
	return DefaultReputationPenalty
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
