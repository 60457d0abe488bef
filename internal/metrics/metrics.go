// Package metrics holds the Prometheus collectors of the settlement engine and
// the simulation driver. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Settlements      *prometheus.CounterVec
	SettleDuration   prometheus.Histogram
	TokensMinted     prometheus.Counter
	LedgerFailures   prometheus.Counter
	WorkersCreated   prometheus.Counter
	SimulationCycles *prometheus.CounterVec
}

// New registers the collectors on reg. Passing nil uses a private registry,
// which keeps tests from colliding on the default one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hec",
			Name:      "settlements_total",
			Help:      "Settled submissions by verdict.",
		}, []string{"verdict"}),
		SettleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hec",
			Name:      "settle_duration_seconds",
			Help:      "Wall time of one submit-and-settle unit of work.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		TokensMinted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hec",
			Name:      "tokens_minted_total",
			Help:      "Tokens minted through the reward ledger.",
		}),
		LedgerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hec",
			Name:      "ledger_failures_total",
			Help:      "Mint calls that failed.",
		}),
		WorkersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hec",
			Name:      "workers_created_total",
			Help:      "Workers registered.",
		}),
		SimulationCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hec",
			Name:      "simulation_cycles_total",
			Help:      "Simulation ticks by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.Settlements, m.SettleDuration, m.TokensMinted, m.LedgerFailures, m.WorkersCreated, m.SimulationCycles)
	return m
}

func (m *Metrics) ObserveSettlement(verdict string, took time.Duration) {
	if m == nil {
		return
	}
	m.Settlements.WithLabelValues(verdict).Inc()
	m.SettleDuration.Observe(took.Seconds())
}

func (m *Metrics) AddMinted(amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.TokensMinted.Add(amount)
}

func (m *Metrics) LedgerFailed() {
	if m == nil {
		return
	}
	m.LedgerFailures.Inc()
}

func (m *Metrics) WorkerCreated() {
	if m == nil {
		return
	}
	m.WorkersCreated.Inc()
}

// Cycle outcomes.
const (
	CycleSettled = "settled"
	CyclePaused  = "paused"
	CycleFailed  = "failed"
)

func (m *Metrics) SimulationCycle(outcome string) {
	if m == nil {
		return
	}
	m.SimulationCycles.WithLabelValues(outcome).Inc()
}
