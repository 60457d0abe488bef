package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hecoverseer/backend/internal/models"
)

const submissionColumns = `submission_id, task_id, worker_id, time_start, time_end, duration_hours, telemetry_data, proof_media, agent_verdict, verdict_reason, confidence, ledger_tx_id`

type SubmissionRepo struct {
	pool *pgxpool.Pool
}

func NewSubmissionRepo(pool *pgxpool.Pool) *SubmissionRepo {
	return &SubmissionRepo{pool: pool}
}

func scanSubmission(row pgx.Row) (*models.Submission, error) {
	var s models.Submission
	err := row.Scan(&s.ID, &s.TaskID, &s.WorkerID, &s.TimeStart, &s.TimeEnd, &s.DurationHours, &s.TelemetryData, &s.ProofMedia, &s.AgentVerdict, &s.VerdictReason, &s.Confidence, &s.LedgerTxID)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateTx inserts the submission inside the caller's transaction.
func (r *SubmissionRepo) CreateTx(ctx context.Context, tx pgx.Tx, s *models.Submission) error {
	telemetry := s.TelemetryData
	if telemetry == nil {
		telemetry = map[string]string{}
	}
	media := s.ProofMedia
	if media == nil {
		media = []string{}
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO task_submissions (submission_id, task_id, worker_id, time_start, time_end, duration_hours, telemetry_data, proof_media, agent_verdict, verdict_reason, confidence, ledger_tx_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, s.ID, s.TaskID, s.WorkerID, s.TimeStart, s.TimeEnd, s.DurationHours, telemetry, media, s.AgentVerdict, s.VerdictReason, s.Confidence, s.LedgerTxID)
	return err
}

func (r *SubmissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	return scanSubmission(r.pool.QueryRow(ctx, `SELECT `+submissionColumns+` FROM task_submissions WHERE submission_id = $1`, id))
}

// GetByIDForUpdate locks the submission row for update. Call within a transaction.
func (r *SubmissionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Submission, error) {
	return scanSubmission(tx.QueryRow(ctx, `SELECT `+submissionColumns+` FROM task_submissions WHERE submission_id = $1 FOR UPDATE`, id))
}

// UpdateVerdictTx moves a submission to its final verdict. Call after GetByIDForUpdate in same tx.
func (r *SubmissionRepo) UpdateVerdictTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, verdict string, ledgerTxID *string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE task_submissions SET agent_verdict = $2, ledger_tx_id = $3 WHERE submission_id = $1
	`, id, verdict, ledgerTxID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListPendingMints returns the ids of submissions whose mint is still unconfirmed.
func (r *SubmissionRepo) ListPendingMints(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT submission_id FROM task_submissions WHERE agent_verdict = $1 ORDER BY time_end ASC LIMIT $2
	`, models.VerdictMintPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
