package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func mintReq(hours, mult float64) MintRequest {
	return MintRequest{
		SubmissionID: uuid.New(),
		Address:      "0x71c7656ec7ab88b098defb751b7401b5f6d8976f",
		Hours:        hours,
		Multiplier:   mult,
	}
}

func TestAmount(t *testing.T) {
	cases := []struct {
		hours, mult float64
		want        string
	}{
		{3.0, 1.2, "3.6"},
		{4.0, 1.5, "6"},
		{0.5, 1.0, "0.5"},
		{2.5, 2.0, "5"},
	}
	for _, tc := range cases {
		got := Amount(tc.hours, tc.mult)
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("Amount(%v, %v) = %s, want %s", tc.hours, tc.mult, got, tc.want)
		}
	}
}

func TestMemory_MintAndReplay(t *testing.T) {
	l := NewMemory(0)
	ctx := context.Background()
	req := mintReq(3.0, 1.2)

	first, err := l.Mint(ctx, req)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if !strings.HasPrefix(first.TxID, "0x") || len(first.TxID) != 66 {
		t.Errorf("unexpected tx id %q", first.TxID)
	}
	if first.Replayed {
		t.Error("first mint must not be a replay")
	}

	second, err := l.Mint(ctx, req)
	if err != nil {
		t.Fatalf("Mint replay: %v", err)
	}
	if !second.Replayed || second.TxID != first.TxID {
		t.Errorf("replay should return the original receipt, got %+v", second)
	}
	if !l.Supply().Equal(decimal.RequireFromString("3.6")) {
		t.Errorf("supply = %s, want 3.6", l.Supply())
	}
}

func TestMemory_InvalidRequest(t *testing.T) {
	l := NewMemory(0)
	bad := []MintRequest{
		{Address: "0xabc", Hours: 1, Multiplier: 1},
		{SubmissionID: uuid.New(), Hours: 1, Multiplier: 1},
		{SubmissionID: uuid.New(), Address: "0xabc", Hours: 0, Multiplier: 1},
		{SubmissionID: uuid.New(), Address: "0xabc", Hours: 1, Multiplier: -1},
	}
	for i, req := range bad {
		if _, err := l.Mint(context.Background(), req); !errors.Is(err, ErrInvalidMint) {
			t.Errorf("case %d: expected ErrInvalidMint, got %v", i, err)
		}
	}
	if l.Calls() != 0 {
		t.Errorf("invalid requests must not reach the ledger, calls=%d", l.Calls())
	}
}

func TestMemory_LatencyRespectsContext(t *testing.T) {
	l := NewMemory(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.Mint(ctx, mintReq(1, 1)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSQLite_MintIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer l.Close()

	req := mintReq(3.0, 1.2)
	first, err := l.Mint(ctx, req)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if first.Replayed || !first.Amount.Equal(decimal.RequireFromString("3.6")) {
		t.Fatalf("unexpected first receipt %+v", first)
	}

	second, err := l.Mint(ctx, req)
	if err != nil {
		t.Fatalf("Mint replay: %v", err)
	}
	if !second.Replayed || second.TxID != first.TxID {
		t.Fatalf("replay should return the original receipt, got %+v", second)
	}

	if _, err := l.Mint(ctx, mintReq(4.0, 1.5)); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	total, n, err := l.Supply(ctx)
	if err != nil {
		t.Fatalf("Supply: %v", err)
	}
	if n != 2 || !total.Equal(decimal.RequireFromString("9.6")) {
		t.Errorf("supply = %s over %d txs, want 9.6 over 2", total, n)
	}
}

func TestSQLite_ReopenKeepsReceipts(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	req := mintReq(2.0, 1.0)

	l, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	first, err := l.Mint(ctx, req)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	l.Close()

	l, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l.Close()
	again, err := l.Mint(ctx, req)
	if err != nil {
		t.Fatalf("Mint after reopen: %v", err)
	}
	if !again.Replayed || again.TxID != first.TxID {
		t.Fatalf("receipt lost across reopen: %+v vs %+v", again, first)
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := NewMemory(0)
	inner.FailNext(3)
	b := NewBreaker(inner, BreakerConfig{ConsecutiveFailures: 3, OpenTimeout: time.Minute}, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := b.Mint(ctx, mintReq(1, 1)); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("attempt %d: expected ErrUnavailable, got %v", i, err)
		}
	}
	if b.State() != "open" {
		t.Fatalf("breaker state = %s, want open", b.State())
	}

	if _, err := b.Mint(ctx, mintReq(1, 1)); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("open breaker should fail fast with ErrUnavailable, got %v", err)
	}
	if inner.Calls() != 3 {
		t.Errorf("open breaker must not call the ledger, calls=%d", inner.Calls())
	}
}

func TestBreaker_InvalidRequestsDoNotTrip(t *testing.T) {
	b := NewBreaker(NewMemory(0), BreakerConfig{ConsecutiveFailures: 1, OpenTimeout: time.Minute}, nil)
	ctx := context.Background()
	if _, err := b.Mint(ctx, MintRequest{}); !errors.Is(err, ErrInvalidMint) {
		t.Fatalf("expected ErrInvalidMint, got %v", err)
	}
	if b.State() != "closed" {
		t.Fatalf("breaker state = %s, want closed", b.State())
	}
	if _, err := b.Mint(ctx, mintReq(1, 1)); err != nil {
		t.Fatalf("Mint: %v", err)
	}
}
