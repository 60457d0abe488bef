// Package economy is the settlement engine. It is the only writer of worker
// reputation, worker minted totals and submission verdicts: every submission
// goes through the verifier and is settled in a single database transaction.
package economy

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/hecoverseer/backend/internal/models"
)

var (
	// ErrNotFound is returned when a referenced worker, task or submission does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned for malformed submissions, before any state is touched.
	ErrValidation = errors.New("validation failed")
	// ErrLedger is returned when a mint fails and no retry path is available.
	ErrLedger = errors.New("ledger mint failed")
	// ErrStorage is returned when the persistence layer fails mid-operation.
	ErrStorage = errors.New("storage failure")
)

// MaxClaimHours caps the hours of a single claim at one year of work.
const MaxClaimHours = 24 * 365

// DefaultReputationPenalty is subtracted from a worker's reputation on every rejection.
const DefaultReputationPenalty = 0.1

// DefaultMultiplier applies to task types missing from the multiplier table.
const DefaultMultiplier = 1.0

var multipliers = map[string]float64{
	models.TaskTypeGardening:    1.0,
	models.TaskTypeConstruction: 1.5,
	models.TaskTypeCoding:       1.2,
}

// MultiplierFor returns the reward multiplier of a task type.
func MultiplierFor(taskType string) float64 {
	if m, ok := multipliers[strings.ToUpper(strings.TrimSpace(taskType))]; ok {
		return m
	}
	return DefaultMultiplier
}

// Penalize returns reputation minus penalty, rounded to two decimals and floored at 0.
func Penalize(reputation, penalty float64) float64 {
	next := decimal.NewFromFloat(reputation).Sub(decimal.NewFromFloat(penalty)).Round(2)
	if next.IsNegative() {
		return 0
	}
	return next.InexactFloat64()
}

// Credit returns total plus amount without float drift.
func Credit(total float64, amount decimal.Decimal) float64 {
	return decimal.NewFromFloat(total).Add(amount).InexactFloat64()
}

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// UserStore is the subset of the user repository the engine needs.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	Random(ctx context.Context) (*models.User, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error)
	UpdateBalancesTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, reputation, totalMinted float64) error
}

// TaskStore is the subset of the task repository the engine needs.
type TaskStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error
	GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error)
}

// SubmissionStore is the subset of the submission repository the engine needs.
type SubmissionStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, s *models.Submission) error
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Submission, error)
	UpdateVerdictTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, verdict string, ledgerTxID *string) error
}

// MintRetryEnqueuer schedules a durable retry of a pending mint inside tx.
type MintRetryEnqueuer func(ctx context.Context, tx pgx.Tx, submissionID uuid.UUID) error
