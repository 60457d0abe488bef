package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hecoverseer/backend/internal/execution"
)

func TestEnqueueMintRetry_LateBinding(t *testing.T) {
	a := &App{}
	id := uuid.New()

	if err := a.enqueueMintRetry(context.Background(), nil, id); !errors.Is(err, ErrRiverNotWired) {
		t.Fatalf("before binding: got %v", err)
	}

	var got []execution.MintRetryArgs
	a.BindRiver(func(_ context.Context, _ pgx.Tx, args execution.MintRetryArgs) error {
		got = append(got, args)
		return nil
	})
	if err := a.enqueueMintRetry(context.Background(), nil, id); err != nil {
		t.Fatalf("after binding: %v", err)
	}
	if len(got) != 1 || got[0].SubmissionID != id {
		t.Fatalf("inserted %+v", got)
	}
}
