package economy

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	mrand "math/rand/v2"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hecoverseer/backend/internal/models"
)

// DefaultSkill is granted to every new worker.
var DefaultSkill = models.Skill{Tag: "manual_labor", Multiplier: 1.0}

// RegisterWorker creates a worker with default reputation, nothing minted and
// a fresh reward address. Every call creates a distinct identity.
func (e *Engine) RegisterWorker(ctx context.Context) (*models.User, error) {
	wallet, err := NewWalletAddress()
	if err != nil {
		return nil, err
	}
	u := &models.User{
		ID:              uuid.New(),
		WalletAddress:   wallet,
		ReputationScore: models.DefaultReputation,
		Skills:          []models.Skill{DefaultSkill},
		Status:          models.UserStatusActive,
		CreatedAt:       e.now(),
	}
	if err := e.Users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("%w: create worker: %w", ErrStorage, err)
	}
	e.Metrics.WorkerCreated()
	e.logger().Info("worker registered", "worker_id", u.ID, "wallet_address", u.WalletAddress)
	return u, nil
}

// SelectOrCreateWorker registers a new worker with probability probabilityNew
// and otherwise picks a random existing one. An empty population always
// yields a new worker. The bool reports whether the worker was created.
func (e *Engine) SelectOrCreateWorker(ctx context.Context, probabilityNew float64) (*models.User, bool, error) {
	if e.chance() >= probabilityNew {
		u, err := e.Users.Random(ctx)
		if err == nil {
			return u, false, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, false, fmt.Errorf("%w: pick worker: %w", ErrStorage, err)
		}
	}
	u, err := e.RegisterWorker(ctx)
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

// NewWalletAddress returns a random 20-byte address in 0x-prefixed hex.
func NewWalletAddress() (string, error) {
	var b [20]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate wallet address: %w", err)
	}
	return "0x" + hex.EncodeToString(b[:]), nil
}

func (e *Engine) chance() float64 {
	if e.Chance != nil {
		return e.Chance()
	}
	return mrand.Float64()
}
