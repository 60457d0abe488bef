package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/hecoverseer/backend/internal/economy"
	"github.com/hecoverseer/backend/internal/ledger"
)

// MintRetryArgs asks for the pending mint of one submission to be completed.
type MintRetryArgs struct {
	SubmissionID uuid.UUID `json:"submission_id"`
}

func (MintRetryArgs) Kind() string { return "mint_retry" }

// InsertOpts keeps at most one live retry per submission.
func (MintRetryArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: 25,
		UniqueOpts:  river.UniqueOpts{ByArgs: true},
	}
}

// MintCompleter defines the contract the worker needs to finish a mint.
type MintCompleter interface {
	CompleteMint(ctx context.Context, submissionID uuid.UUID) (*economy.Result, error)
}

type MintRetryWorker struct {
	river.WorkerDefaults[MintRetryArgs]
	engine MintCompleter
	logger *slog.Logger
}

func NewMintRetryWorker(engine MintCompleter, logger *slog.Logger) *MintRetryWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &MintRetryWorker{engine: engine, logger: logger}
}

func (w *MintRetryWorker) Work(ctx context.Context, job *river.Job[MintRetryArgs]) error {
	res, err := w.engine.CompleteMint(ctx, job.Args.SubmissionID)
	if permanent(err) {
		return river.JobCancel(fmt.Errorf("submission %s: %w", job.Args.SubmissionID, err))
	}
	if err != nil {
		return fmt.Errorf("complete mint (attempt %d): %w", job.Attempt, err)
	}
	w.logger.Info("mint retry finished", "submission_id", res.SubmissionID, "verdict", res.Verdict, "tx_id", res.LedgerTxID, "attempt", job.Attempt)
	return nil
}

// Timeout bounds one attempt; the ledger call is the slow part.
func (w *MintRetryWorker) Timeout(*river.Job[MintRetryArgs]) time.Duration {
	return 30 * time.Second
}

// permanent reports errors that no retry can fix: the submission never
// committed, or the ledger refused the request itself.
func permanent(err error) bool {
	return errors.Is(err, economy.ErrNotFound) || errors.Is(err, ledger.ErrInvalidMint)
}
