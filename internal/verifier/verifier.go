// Package verifier turns the evidence attached to a task submission into a
// MINT or REJECT verdict. The economy engine only sees the Verifier interface;
// scoring models and fraud heuristics plug in behind it.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

type Action string

const (
	ActionMint   Action = "MINT"
	ActionReject Action = "REJECT"
)

// DefaultApprovalThreshold is the minimum confidence for a MINT verdict.
const DefaultApprovalThreshold = 0.80

const (
	ReasonReplaySuspected = "ERR_REPLAY_ATTACK: replay/duplicate evidence suspected"
	ReasonVerified        = "metadata verified, objects detected, fraud check clean"
	reasonWeakFormat      = "weak evidence (score: %.2f)"
)

// ErrNilEvidence is returned when Evaluate is called without an evidence bundle.
var ErrNilEvidence = errors.New("evidence is required")

// Evidence is everything a verifier may look at. TaskType may be empty or
// unknown; implementations fall back to a default interpretation.
type Evidence struct {
	TaskID           uuid.UUID
	TaskType         string
	Telemetry        map[string]string
	ProofMedia       []string
	RequiredEvidence []string
}

type Verdict struct {
	Action     Action  `json:"action"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

func (v Verdict) Approved() bool { return v.Action == ActionMint }

// Verifier evaluates one evidence bundle. It must not mutate domain state.
type Verifier interface {
	Evaluate(ctx context.Context, ev *Evidence) (Verdict, error)
}

// Observer is implemented by verifiers that learn from evidence once a
// submission has been durably settled (e.g. replay detection).
type Observer interface {
	Observe(ev *Evidence)
}

// Scorer produces a confidence in [0,1] for an evidence bundle.
type Scorer interface {
	Score(ctx context.Context, ev *Evidence) (float64, error)
}

// FraudDetector flags bundles that must be rejected regardless of confidence.
type FraudDetector interface {
	Flag(ctx context.Context, ev *Evidence) (bool, error)
}

// Decide applies the approval policy: a fraud flag always rejects, a
// confidence below threshold rejects as weak evidence, anything else mints.
func Decide(confidence float64, fraud bool, threshold float64) Verdict {
	switch {
	case fraud:
		return Verdict{Action: ActionReject, Reason: ReasonReplaySuspected, Confidence: confidence}
	case confidence < threshold:
		return Verdict{Action: ActionReject, Reason: fmt.Sprintf(reasonWeakFormat, confidence), Confidence: confidence}
	default:
		return Verdict{Action: ActionMint, Reason: ReasonVerified, Confidence: confidence}
	}
}

// Policy composes a Scorer and an optional FraudDetector under Decide.
type Policy struct {
	Scorer    Scorer
	Detector  FraudDetector
	Threshold float64
}

var _ Verifier = (*Policy)(nil)

func (p *Policy) Evaluate(ctx context.Context, ev *Evidence) (Verdict, error) {
	if ev == nil {
		return Verdict{}, ErrNilEvidence
	}
	confidence, err := p.Scorer.Score(ctx, ev)
	if err != nil {
		return Verdict{}, fmt.Errorf("score evidence: %w", err)
	}
	confidence = clamp(confidence)

	fraud := false
	if p.Detector != nil {
		fraud, err = p.Detector.Flag(ctx, ev)
		if err != nil {
			return Verdict{}, fmt.Errorf("fraud check: %w", err)
		}
	}
	return Decide(confidence, fraud, p.threshold()), nil
}

// Observe forwards settled evidence to the detector when it keeps history.
func (p *Policy) Observe(ev *Evidence) {
	if ev == nil {
		return
	}
	if o, ok := p.Detector.(Observer); ok {
		o.Observe(ev)
	}
}

func (p *Policy) threshold() float64 {
	if p.Threshold <= 0 {
		return DefaultApprovalThreshold
	}
	return p.Threshold
}

// clamp maps a score onto [0,1]. A score that is not a finite number counts
// as no evidence.
func clamp(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// NormalizeTaskType upper-cases and trims a task type tag.
func NormalizeTaskType(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}
