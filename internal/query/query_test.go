package query

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hecoverseer/backend/internal/models"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockStats struct {
	stats   models.EconomyStats
	entries []models.FeedEntry
	limits  []int
}

func (m *mockStats) Stats(context.Context) (*models.EconomyStats, error) {
	cp := m.stats
	return &cp, nil
}

func (m *mockStats) Feed(_ context.Context, limit int) ([]models.FeedEntry, error) {
	m.limits = append(m.limits, limit)
	out := append([]models.FeedEntry(nil), m.entries...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].TimeEnd.After(out[j].TimeEnd) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type mockUsers struct {
	byWallet map[string]*models.User
}

func (m *mockUsers) GetByWallet(_ context.Context, wallet string) (*models.User, error) {
	u, ok := m.byWallet[wallet]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

type mockConfig struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *mockConfig) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", pgx.ErrNoRows
	}
	return v, nil
}

func (m *mockConfig) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func newService() (*Service, *mockStats, *mockUsers, *mockConfig) {
	st := &mockStats{}
	us := &mockUsers{byWallet: make(map[string]*models.User)}
	cfg := &mockConfig{values: make(map[string]string)}
	return &Service{Stats: st, Users: us, Config: cfg}, st, us, cfg
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestEconomyStats_RoundsMinted(t *testing.T) {
	svc, st, _, _ := newService()
	st.stats = models.EconomyStats{TotalUsers: 3, TotalMinted: 3.6 + 6.0 + 1.237, TotalTasks: 7}

	got, err := svc.EconomyStats(context.Background())
	if err != nil {
		t.Fatalf("EconomyStats: %v", err)
	}
	if got.TotalMinted != 10.84 || got.TotalUsers != 3 || got.TotalTasks != 7 {
		t.Fatalf("unexpected stats %+v", got)
	}
}

func TestFeed_OrderAndFormatting(t *testing.T) {
	svc, st, _, _ := newService()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	worker := uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	for i := 0; i < 15; i++ {
		st.entries = append(st.entries, models.FeedEntry{
			SubmissionID:  uuid.New(),
			WorkerID:      worker,
			TaskType:      "GARDENING",
			DurationHours: 2.5,
			Verdict:       models.VerdictApproved,
			TimeEnd:       base.Add(time.Duration(i) * time.Minute),
		})
	}

	items, err := svc.Feed(context.Background(), 0)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(items) != DefaultFeedLimit {
		t.Fatalf("len = %d, want %d", len(items), DefaultFeedLimit)
	}
	for i := 1; i < len(items); i++ {
		if items[i].Time > items[i-1].Time {
			t.Fatalf("feed not in non-increasing time order at %d: %s > %s", i, items[i].Time, items[i-1].Time)
		}
	}
	if items[0].Worker != "7c9e6679..." {
		t.Errorf("worker = %q, want truncated id", items[0].Worker)
	}
	if items[0].Time != "2024-05-01T12:14:00Z" {
		t.Errorf("time = %q", items[0].Time)
	}
}

func TestClampFeedLimit(t *testing.T) {
	cases := map[int]int{-1: 10, 0: 10, 1: 1, 20: 20, 100: 100, 5000: 100}
	for in, want := range cases {
		if got := ClampFeedLimit(in); got != want {
			t.Errorf("ClampFeedLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestUser_LookupAndNotFound(t *testing.T) {
	svc, _, us, _ := newService()
	u := &models.User{ID: uuid.New(), WalletAddress: "0xabc", ReputationScore: 0.9, TotalMinted: 3.6, Status: models.UserStatusActive}
	us.byWallet[u.WalletAddress] = u

	first, err := svc.User(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	second, _ := svc.User(context.Background(), "0xabc")
	if *first != *second {
		t.Errorf("repeated lookups differ: %+v vs %+v", first, second)
	}
	if first.TotalMinted != 3.6 || first.ReputationScore != 0.9 {
		t.Errorf("unexpected view %+v", first)
	}

	if _, err := svc.User(context.Background(), "0xmissing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSimulationToggle(t *testing.T) {
	svc, _, _, _ := newService()
	ctx := context.Background()

	active, err := svc.SimulationActive(ctx)
	if err != nil || !active {
		t.Fatalf("absent flag must read as active, got %v err=%v", active, err)
	}
	if err := svc.SetSimulationActive(ctx, false); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if active, _ := svc.SimulationActive(ctx); active {
		t.Fatal("expected inactive after stop")
	}
	if err := svc.SetSimulationActive(ctx, true); err != nil {
		t.Fatalf("start: %v", err)
	}
	if active, _ := svc.SimulationActive(ctx); !active {
		t.Fatal("expected active after start")
	}
}
