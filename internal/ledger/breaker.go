package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker open.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{ConsecutiveFailures: 5, OpenTimeout: 30 * time.Second}
}

// Breaker fails fast while the wrapped ledger keeps erroring.
type Breaker struct {
	next Ledger
	cb   *gobreaker.CircuitBreaker
}

var _ Ledger = (*Breaker)(nil)

func NewBreaker(next Ledger, cfg BreakerConfig, logger *slog.Logger) *Breaker {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = DefaultBreakerConfig().ConsecutiveFailures
	}
	if logger == nil {
		logger = slog.Default()
	}
	threshold := cfg.ConsecutiveFailures
	return &Breaker{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "reward-ledger",
			MaxRequests: 1,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("ledger breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			},
			// Malformed requests say nothing about ledger health.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrInvalidMint)
			},
		}),
	}
}

func (b *Breaker) Mint(ctx context.Context, req MintRequest) (Receipt, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Mint(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Receipt{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return Receipt{}, err
	}
	return out.(Receipt), nil
}

// State reports the breaker state as a string for status endpoints.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
