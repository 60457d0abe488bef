package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Memory is an in-process ledger used by the simulation and tests. Latency
// emulates the round trip to a real chain.
type Memory struct {
	Latency time.Duration

	mu       sync.Mutex
	receipts map[uuid.UUID]Receipt
	failures int
	calls    int
}

var _ Ledger = (*Memory)(nil)

func NewMemory(latency time.Duration) *Memory {
	return &Memory{Latency: latency, receipts: make(map[uuid.UUID]Receipt)}
}

func (m *Memory) Mint(ctx context.Context, req MintRequest) (Receipt, error) {
	if err := req.validate(); err != nil {
		return Receipt{}, err
	}
	if m.Latency > 0 {
		timer := time.NewTimer(m.Latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failures > 0 {
		m.failures--
		return Receipt{}, fmt.Errorf("%w: injected failure", ErrUnavailable)
	}
	if r, ok := m.receipts[req.SubmissionID]; ok {
		r.Replayed = true
		return r, nil
	}
	r := Receipt{TxID: newTxID(), Amount: Amount(req.Hours, req.Multiplier)}
	m.receipts[req.SubmissionID] = r
	return r, nil
}

// FailNext makes the next n Mint calls fail with ErrUnavailable.
func (m *Memory) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = n
}

// Calls returns how many mint attempts reached the ledger.
func (m *Memory) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Supply returns the sum of all minted amounts.
func (m *Memory) Supply() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, r := range m.receipts {
		total = total.Add(r.Amount)
	}
	return total
}
