// Package audit produces the economy audit report: population, minted
// supply, rejection rate and the top earner, optionally reconciled against
// the reward ledger's own record.
package audit

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/hecoverseer/backend/internal/models"
	"github.com/hecoverseer/backend/internal/query"
)

type StatsSource interface {
	Stats(ctx context.Context) (*models.EconomyStats, error)
	VerdictCounts(ctx context.Context) (map[string]int64, error)
}

type TopWorkerSource interface {
	TopByMinted(ctx context.Context) (*models.User, error)
}

// SupplySource is implemented by ledgers that keep their own mint record.
type SupplySource interface {
	Supply(ctx context.Context) (decimal.Decimal, int64, error)
}

type Auditor struct {
	Stats   StatsSource
	Workers TopWorkerSource
	// Ledger is optional; when set the report includes a reconciliation.
	Ledger SupplySource
}

type Report struct {
	TotalCitizens    int64        `json:"total_citizens"`
	TotalSupply      float64      `json:"total_supply"`
	TotalSubmissions int64        `json:"total_submissions"`
	Rejected         int64        `json:"rejected"`
	PendingMints     int64        `json:"pending_mints"`
	RejectionRate    float64      `json:"rejection_rate"`
	TopWorker        *TopWorker   `json:"top_worker,omitempty"`
	Ledger           *LedgerCheck `json:"ledger,omitempty"`
}

type TopWorker struct {
	ID            string  `json:"id"`
	WalletAddress string  `json:"wallet_address"`
	Minted        float64 `json:"minted"`
	Reputation    float64 `json:"reputation"`
}

// LedgerCheck compares the minted totals credited to workers with what the
// ledger recorded. A non-zero drift means a mint committed on one side only.
type LedgerCheck struct {
	Supply       float64 `json:"supply"`
	Transactions int64   `json:"transactions"`
	Drift        float64 `json:"drift"`
}

// Build gathers the report. Rejection rate is a percentage of all persisted
// submissions, rounded to one decimal; zero submissions give 0.
func (a *Auditor) Build(ctx context.Context) (*Report, error) {
	st, err := a.Stats.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	counts, err := a.Stats.VerdictCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load verdict counts: %w", err)
	}

	r := &Report{
		TotalCitizens: st.TotalUsers,
		TotalSupply:   query.Round2(st.TotalMinted),
		Rejected:      counts[models.VerdictRejected],
		PendingMints:  counts[models.VerdictMintPending],
	}
	for _, n := range counts {
		r.TotalSubmissions += n
	}
	if r.TotalSubmissions > 0 {
		r.RejectionRate = decimal.NewFromInt(r.Rejected).
			Div(decimal.NewFromInt(r.TotalSubmissions)).
			Mul(decimal.NewFromInt(100)).
			Round(1).InexactFloat64()
	}

	top, err := a.Workers.TopByMinted(ctx)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("load top worker: %w", err)
	default:
		r.TopWorker = &TopWorker{
			ID:            top.ID.String(),
			WalletAddress: top.WalletAddress,
			Minted:        query.Round2(top.TotalMinted),
			Reputation:    top.ReputationScore,
		}
	}

	if a.Ledger != nil {
		supply, n, err := a.Ledger.Supply(ctx)
		if err != nil {
			return nil, fmt.Errorf("load ledger supply: %w", err)
		}
		r.Ledger = &LedgerCheck{
			Supply:       supply.Round(2).InexactFloat64(),
			Transactions: n,
			Drift:        supply.Sub(decimal.NewFromFloat(st.TotalMinted)).Round(2).InexactFloat64(),
		}
	}
	return r, nil
}

// Render writes the report as plain text.
func (r *Report) Render(w io.Writer) error {
	ew := &errWriter{w: w}
	ew.printf("\n=== HEC ECONOMY AUDIT REPORT ===\n")
	ew.printf("Total Citizens:   %d\n", r.TotalCitizens)
	ew.printf("Total Supply:     %.2f EC\n", r.TotalSupply)
	ew.printf("Rejection Rate:   %.1f%% (%d/%d submissions)\n", r.RejectionRate, r.Rejected, r.TotalSubmissions)
	if r.PendingMints > 0 {
		ew.printf("Pending Mints:    %d\n", r.PendingMints)
	}
	if r.TopWorker != nil {
		ew.printf("\nTop Worker: %s\n", query.ShortID(r.TopWorker.ID, 10))
		ew.printf("   Minted: %.2f\n", r.TopWorker.Minted)
		ew.printf("   Rep:    %v\n", r.TopWorker.Reputation)
	}
	if r.Ledger != nil {
		ew.printf("\nLedger Supply:    %.2f EC (%d transactions)\n", r.Ledger.Supply, r.Ledger.Transactions)
		ew.printf("Ledger Drift:     %.2f\n", r.Ledger.Drift)
	}
	ew.printf("================================\n\n")
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
