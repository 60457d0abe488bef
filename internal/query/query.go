// Package query is the read side of the economy: stats, the submission feed,
// worker lookup and the simulation switch.
package query

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/hecoverseer/backend/internal/models"
)

// ErrNotFound is returned when a wallet address has no worker.
var ErrNotFound = errors.New("not found")

const (
	DefaultFeedLimit = 10
	MaxFeedLimit     = 100
)

type StatsReader interface {
	Stats(ctx context.Context) (*models.EconomyStats, error)
	Feed(ctx context.Context, limit int) ([]models.FeedEntry, error)
}

type UserReader interface {
	GetByWallet(ctx context.Context, wallet string) (*models.User, error)
}

type ConfigStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

type Service struct {
	Stats  StatsReader
	Users  UserReader
	Config ConfigStore
}

type Stats struct {
	TotalUsers  int64   `json:"total_users"`
	TotalMinted float64 `json:"total_minted"`
	TotalTasks  int64   `json:"total_tasks"`
}

type FeedItem struct {
	ID      string  `json:"id"`
	Worker  string  `json:"worker"`
	Type    string  `json:"type"`
	Hours   float64 `json:"hours"`
	Verdict string  `json:"verdict"`
	Time    string  `json:"time"`
}

type UserView struct {
	UserID          string  `json:"user_id"`
	WalletAddress   string  `json:"wallet_address"`
	ReputationScore float64 `json:"reputation_score"`
	TotalMinted     float64 `json:"total_minted"`
	Status          string  `json:"status"`
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// EconomyStats returns population, minted supply (two decimals) and task count.
func (s *Service) EconomyStats(ctx context.Context) (*Stats, error) {
	st, err := s.Stats.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	return &Stats{
		TotalUsers:  st.TotalUsers,
		TotalMinted: Round2(st.TotalMinted),
		TotalTasks:  st.TotalTasks,
	}, nil
}

// ClampFeedLimit maps a requested limit onto [1, MaxFeedLimit]; zero or
// negative means the default.
func ClampFeedLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultFeedLimit
	case limit > MaxFeedLimit:
		return MaxFeedLimit
	}
	return limit
}

// Feed returns the most recent submissions, newest first.
func (s *Service) Feed(ctx context.Context, limit int) ([]FeedItem, error) {
	limit = ClampFeedLimit(limit)
	entries, err := s.Stats.Feed(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load feed: %w", err)
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	items := make([]FeedItem, 0, len(entries))
	for _, e := range entries {
		taskType := e.TaskType
		if taskType == "" {
			taskType = "UNKNOWN"
		}
		items = append(items, FeedItem{
			ID:      e.SubmissionID.String(),
			Worker:  ShortID(e.WorkerID.String(), 8),
			Type:    taskType,
			Hours:   e.DurationHours,
			Verdict: e.Verdict,
			Time:    e.TimeEnd.UTC().Format(time.RFC3339),
		})
	}
	return items, nil
}

// ShortID truncates id to n characters followed by "...".
func ShortID(id string, n int) string {
	if len(id) <= n {
		return id
	}
	return id[:n] + "..."
}

// User looks a worker up by reward address.
func (s *Service) User(ctx context.Context, wallet string) (*UserView, error) {
	u, err := s.Users.GetByWallet(ctx, wallet)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: wallet %s", ErrNotFound, wallet)
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &UserView{
		UserID:          u.ID.String(),
		WalletAddress:   u.WalletAddress,
		ReputationScore: u.ReputationScore,
		TotalMinted:     u.TotalMinted,
		Status:          u.Status,
	}, nil
}

// SimulationActive reports the simulation switch. A missing row means active.
func (s *Service) SimulationActive(ctx context.Context) (bool, error) {
	v, err := s.Config.Get(ctx, models.SimulationActiveKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("load simulation flag: %w", err)
	}
	return v == "true", nil
}

func (s *Service) SetSimulationActive(ctx context.Context, active bool) error {
	if err := s.Config.Set(ctx, models.SimulationActiveKey, strconv.FormatBool(active)); err != nil {
		return fmt.Errorf("store simulation flag: %w", err)
	}
	return nil
}
