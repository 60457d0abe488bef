package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hecoverseer/backend/internal/models"
)

const userColumns = `user_id, wallet_address, reputation_score, total_minted, skills, status, created_at`

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.WalletAddress, &u.ReputationScore, &u.TotalMinted, &u.Skills, &u.Status, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO users (user_id, wallet_address, reputation_score, total_minted, skills, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, u.ID, u.WalletAddress, u.ReputationScore, u.TotalMinted, u.Skills, u.Status, u.CreatedAt).Scan(&u.CreatedAt)
}

func (r *UserRepo) GetByWallet(ctx context.Context, wallet string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE wallet_address = $1`, wallet))
}

// Random returns a uniformly chosen worker, or pgx.ErrNoRows when there are none.
func (r *UserRepo) Random(ctx context.Context) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users ORDER BY random() LIMIT 1`))
}

// GetByIDForUpdate locks the user row for update. Call within a transaction.
func (r *UserRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error) {
	return scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1 FOR UPDATE`, id))
}

// UpdateBalancesTx sets reputation and minted total. Call after GetByIDForUpdate in same tx.
func (r *UserRepo) UpdateBalancesTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, reputation, totalMinted float64) error {
	tag, err := tx.Exec(ctx, `
		UPDATE users SET reputation_score = $2, total_minted = $3 WHERE user_id = $1
	`, id, reputation, totalMinted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// TopByMinted returns the worker with the largest minted total.
func (r *UserRepo) TopByMinted(ctx context.Context) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users ORDER BY total_minted DESC, created_at ASC LIMIT 1
	`))
}
