// Package ledger is the reward ledger boundary: it records token mints and
// hands back transaction identifiers. It keeps no worker or task state; the
// only key it remembers is the submission a mint was issued for, so that a
// retried mint returns the original receipt instead of minting twice.
package ledger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrUnavailable is returned when the ledger cannot accept a mint right now.
	ErrUnavailable = errors.New("ledger unavailable")
	// ErrInvalidMint is returned for requests that can never succeed.
	ErrInvalidMint = errors.New("invalid mint request")
)

type MintRequest struct {
	SubmissionID uuid.UUID
	Address      string
	Hours        float64
	Multiplier   float64
}

type Receipt struct {
	TxID   string
	Amount decimal.Decimal
	// Replayed is true when the submission had already been minted and the
	// original receipt was returned.
	Replayed bool
}

type Ledger interface {
	Mint(ctx context.Context, req MintRequest) (Receipt, error)
}

// Amount is the number of tokens minted for hours of work at multiplier.
func Amount(hours, multiplier float64) decimal.Decimal {
	return decimal.NewFromFloat(hours).Mul(decimal.NewFromFloat(multiplier))
}

func (r MintRequest) validate() error {
	switch {
	case r.SubmissionID == uuid.Nil:
		return fmt.Errorf("%w: submission id is required", ErrInvalidMint)
	case strings.TrimSpace(r.Address) == "":
		return fmt.Errorf("%w: reward address is required", ErrInvalidMint)
	case r.Hours <= 0:
		return fmt.Errorf("%w: hours must be > 0", ErrInvalidMint)
	case r.Multiplier <= 0:
		return fmt.Errorf("%w: multiplier must be > 0", ErrInvalidMint)
	}
	return nil
}

func newTxID() string {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("ledger: read random tx id: %v", err))
	}
	return "0x" + hex.EncodeToString(b[:])
}
