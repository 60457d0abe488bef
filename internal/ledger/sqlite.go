package ledger

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/hecoverseer/backend/internal/platform/sqlitemigrate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLite is a durable local ledger: one row per minted submission.
type SQLite struct {
	db *sql.DB
}

var _ Ledger = (*SQLite)(nil)

// OpenSQLite opens (or creates) the ledger file at path and applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("ledger path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite ledger: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite ledger: %w", err)
	}
	if err := sqlitemigrate.Apply(ctx, db, migrationsFS, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run ledger migrations: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (l *SQLite) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Mint inserts the transaction keyed by submission id. A second call for the
// same submission inserts nothing and returns the stored receipt.
func (l *SQLite) Mint(ctx context.Context, req MintRequest) (Receipt, error) {
	if err := req.validate(); err != nil {
		return Receipt{}, err
	}
	amount := Amount(req.Hours, req.Multiplier)
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO mint_transactions (submission_id, tx_id, wallet_address, hours, multiplier, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (submission_id) DO NOTHING
	`, req.SubmissionID.String(), newTxID(), req.Address, req.Hours, req.Multiplier, amount.String(), time.Now().UTC().UnixMilli())
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: insert mint: %v", ErrUnavailable, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: rows affected: %v", ErrUnavailable, err)
	}

	var r Receipt
	var stored string
	if err := l.db.QueryRowContext(ctx,
		`SELECT tx_id, amount FROM mint_transactions WHERE submission_id = ?`, req.SubmissionID.String(),
	).Scan(&r.TxID, &stored); err != nil {
		return Receipt{}, fmt.Errorf("%w: read mint: %v", ErrUnavailable, err)
	}
	if r.Amount, err = decimal.NewFromString(stored); err != nil {
		return Receipt{}, fmt.Errorf("parse stored amount %q: %w", stored, err)
	}
	r.Replayed = inserted == 0
	return r, nil
}

// Supply returns the total minted amount and the number of mint transactions.
func (l *SQLite) Supply(ctx context.Context) (decimal.Decimal, int64, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT amount FROM mint_transactions`)
	if err != nil {
		return decimal.Zero, 0, err
	}
	defer rows.Close()
	total := decimal.Zero
	var n int64
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return decimal.Zero, 0, err
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, 0, fmt.Errorf("parse amount %q: %w", s, err)
		}
		total = total.Add(d)
		n++
	}
	return total, n, rows.Err()
}
