package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hecoverseer/backend/internal/models"
)

const taskColumns = `task_id, creator_id, task_type, geo_lat, geo_long, geo_radius_meters, required_evidence, status, created_at`

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.CreatorID, &t.Type, &t.GeoFence.Lat, &t.GeoFence.Long, &t.GeoFence.RadiusMeters, &t.RequiredEvidence, &t.Status, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTx inserts the task inside the caller's transaction.
func (r *TaskRepo) CreateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error {
	required := t.RequiredEvidence
	if required == nil {
		required = []string{}
	}
	return tx.QueryRow(ctx, `
		INSERT INTO tasks (task_id, creator_id, task_type, geo_lat, geo_long, geo_radius_meters, required_evidence, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, t.ID, t.CreatorID, t.Type, t.GeoFence.Lat, t.GeoFence.Long, t.GeoFence.RadiusMeters, required, t.Status, t.CreatedAt).Scan(&t.CreatedAt)
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE task_id = $1`, id))
}

func (r *TaskRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error) {
	return scanTask(tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE task_id = $1`, id))
}
