package verifier

import (
	"context"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Telemetry keys understood by the evidence scorer.
const (
	TelemetryGPSLog    = "gps_log"
	TelemetryCommitLog = "commit_log"
)

// expectedTelemetry is the telemetry key each known task type is judged on.
// Unknown types accept any non-empty telemetry entry.
var expectedTelemetry = map[string]string{
	"GARDENING":    TelemetryGPSLog,
	"CONSTRUCTION": TelemetryGPSLog,
	"CODING":       TelemetryCommitLog,
}

// Score weights of the evidence scorer. A complete bundle scores 0.99.
const (
	scoreBase      = 0.40
	scoreTelemetry = 0.30
	scoreMedia     = 0.20
	scoreCoverage  = 0.09
)

// EvidenceScorer is a deterministic scorer over evidence completeness.
type EvidenceScorer struct{}

var _ Scorer = EvidenceScorer{}

func (EvidenceScorer) Score(_ context.Context, ev *Evidence) (float64, error) {
	score := scoreBase
	if hasTelemetry(ev) {
		score += scoreTelemetry
	}
	if len(nonEmpty(ev.ProofMedia)) > 0 {
		score += scoreMedia
	}
	if coversRequired(ev) {
		score += scoreCoverage
	}
	return score, nil
}

func hasTelemetry(ev *Evidence) bool {
	if key, ok := expectedTelemetry[NormalizeTaskType(ev.TaskType)]; ok {
		return strings.TrimSpace(ev.Telemetry[key]) != ""
	}
	for _, v := range ev.Telemetry {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

func coversRequired(ev *Evidence) bool {
	for _, kind := range ev.RequiredEvidence {
		switch strings.ToUpper(strings.TrimSpace(kind)) {
		case "GPS":
			if strings.TrimSpace(ev.Telemetry[TelemetryGPSLog]) == "" {
				return false
			}
		case "TIMELAPSE_VIDEO", "PHOTO", "VIDEO":
			if len(nonEmpty(ev.ProofMedia)) == 0 {
				return false
			}
		default:
			if strings.TrimSpace(ev.Telemetry[strings.ToLower(kind)]) == "" {
				return false
			}
		}
	}
	return true
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ReplayDetector flags bundles reusing a media locator that was already part
// of a settled submission. Membership is probabilistic (bloom filter), so a
// false positive rejects honest work at roughly the configured rate.
type ReplayDetector struct {
	mu   sync.Mutex
	seen *bloom.BloomFilter
}

var (
	_ FraudDetector = (*ReplayDetector)(nil)
	_ Observer      = (*ReplayDetector)(nil)
)

func NewReplayDetector(expected uint, falsePositiveRate float64) *ReplayDetector {
	return &ReplayDetector{seen: bloom.NewWithEstimates(expected, falsePositiveRate)}
}

func (d *ReplayDetector) Flag(_ context.Context, ev *Evidence) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range nonEmpty(ev.ProofMedia) {
		if d.seen.TestString(m) {
			return true, nil
		}
	}
	return false, nil
}

func (d *ReplayDetector) Observe(ev *Evidence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range nonEmpty(ev.ProofMedia) {
		d.seen.AddString(m)
	}
}

// NewReference returns the deterministic verifier: completeness scoring plus
// replay detection.
func NewReference(threshold float64) *Policy {
	return &Policy{
		Scorer:    EvidenceScorer{},
		Detector:  NewReplayDetector(100_000, 0.001),
		Threshold: threshold,
	}
}
