package verifier

import (
	"context"
	"math/rand/v2"
	"sync"
)

// Stand-in scoring range and fraud rate of the simulated overseer.
const (
	RandomMinScore          = 0.60
	RandomMaxScore          = 0.99
	DefaultFraudProbability = 0.05
)

// Random draws confidence uniformly from [MinScore, MaxScore) and flags fraud
// with a fixed probability. The same seed yields the same verdict sequence.
type Random struct {
	mu               sync.Mutex
	rng              *rand.Rand
	MinScore         float64
	MaxScore         float64
	FraudProbability float64
}

var (
	_ Scorer        = (*Random)(nil)
	_ FraudDetector = (*Random)(nil)
)

// NewRandom returns a Policy backed by a seeded Random source.
func NewRandom(seed uint64, fraudProbability, threshold float64) *Policy {
	r := &Random{
		rng:              rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		MinScore:         RandomMinScore,
		MaxScore:         RandomMaxScore,
		FraudProbability: fraudProbability,
	}
	return &Policy{Scorer: r, Detector: r, Threshold: threshold}
}

func (r *Random) Score(_ context.Context, _ *Evidence) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.MinScore + r.rng.Float64()*(r.MaxScore-r.MinScore), nil
}

func (r *Random) Flag(_ context.Context, _ *Evidence) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64() < r.FraudProbability, nil
}
