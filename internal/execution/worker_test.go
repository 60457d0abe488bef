package execution

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/hecoverseer/backend/internal/economy"
	"github.com/hecoverseer/backend/internal/ledger"
	"github.com/hecoverseer/backend/internal/models"
)

type stubCompleter struct {
	err   error
	calls []uuid.UUID
}

func (s *stubCompleter) CompleteMint(_ context.Context, id uuid.UUID) (*economy.Result, error) {
	s.calls = append(s.calls, id)
	if s.err != nil {
		return nil, s.err
	}
	return &economy.Result{SubmissionID: id, Verdict: models.VerdictApproved, LedgerTxID: "0xabc"}, nil
}

func job(id uuid.UUID) *river.Job[MintRetryArgs] {
	return &river.Job[MintRetryArgs]{
		JobRow: &rivertype.JobRow{Attempt: 1},
		Args:   MintRetryArgs{SubmissionID: id},
	}
}

func TestMintRetryArgs_Kind(t *testing.T) {
	if (MintRetryArgs{}).Kind() != "mint_retry" {
		t.Fatal("unexpected job kind")
	}
	if !(MintRetryArgs{}).InsertOpts().UniqueOpts.ByArgs {
		t.Error("retries must be unique per submission")
	}
}

func TestMintRetryWorker_Completes(t *testing.T) {
	stub := &stubCompleter{}
	w := NewMintRetryWorker(stub, nil)
	id := uuid.New()

	if err := w.Work(context.Background(), job(id)); err != nil {
		t.Fatalf("Work: %v", err)
	}
	if len(stub.calls) != 1 || stub.calls[0] != id {
		t.Fatalf("CompleteMint calls = %v", stub.calls)
	}
}

func TestMintRetryWorker_LedgerDownIsRetried(t *testing.T) {
	stub := &stubCompleter{err: economy.ErrLedger}
	w := NewMintRetryWorker(stub, nil)

	err := w.Work(context.Background(), job(uuid.New()))
	if !errors.Is(err, economy.ErrLedger) {
		t.Fatalf("expected retryable ErrLedger, got %v", err)
	}
}

func TestMintRetryWorker_MissingSubmissionCancels(t *testing.T) {
	stub := &stubCompleter{err: economy.ErrNotFound}
	w := NewMintRetryWorker(stub, nil)

	err := w.Work(context.Background(), job(uuid.New()))
	if err == nil || !errors.Is(err, economy.ErrNotFound) {
		t.Fatalf("expected cancellation wrapping ErrNotFound, got %v", err)
	}
}

func TestMintRetryWorker_InvalidMintCancels(t *testing.T) {
	stub := &stubCompleter{err: fmt.Errorf("%w: %w", economy.ErrLedger, ledger.ErrInvalidMint)}
	w := NewMintRetryWorker(stub, nil)

	err := w.Work(context.Background(), job(uuid.New()))
	if !errors.Is(err, ledger.ErrInvalidMint) {
		t.Fatalf("expected cancellation wrapping ErrInvalidMint, got %v", err)
	}
	if len(stub.calls) != 1 {
		t.Fatalf("CompleteMint calls = %d", len(stub.calls))
	}
}

func TestPermanent(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("%w: submission", economy.ErrNotFound), true},
		{fmt.Errorf("%w: %w", economy.ErrLedger, ledger.ErrInvalidMint), true},
		{fmt.Errorf("%w: %w", economy.ErrLedger, ledger.ErrUnavailable), false},
		{fmt.Errorf("%w: commit", economy.ErrStorage), false},
	}
	for _, tc := range cases {
		if got := permanent(tc.err); got != tc.want {
			t.Errorf("permanent(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
