package models

import (
	"time"

	"github.com/google/uuid"
)

// Submission verdict enums. PENDING is the state before the verifier runs and
// is never committed by the engine. MINT_PENDING marks a MINT decision whose
// ledger transaction has not been confirmed yet.
const (
	VerdictPending     = "PENDING"
	VerdictApproved    = "APPROVED"
	VerdictRejected    = "REJECTED"
	VerdictMintPending = "MINT_PENDING"
)

type Submission struct {
	ID            uuid.UUID         `json:"submission_id"`
	TaskID        uuid.UUID         `json:"task_id"`
	WorkerID      uuid.UUID         `json:"worker_id"`
	TimeStart     time.Time         `json:"time_start"`
	TimeEnd       time.Time         `json:"time_end"`
	DurationHours float64           `json:"duration_hours"`
	TelemetryData map[string]string `json:"telemetry_data"`
	ProofMedia    []string          `json:"proof_media"`
	AgentVerdict  string            `json:"agent_verdict"`
	VerdictReason string            `json:"verdict_reason,omitempty"`
	Confidence    float64           `json:"confidence"`
	LedgerTxID    *string           `json:"ledger_tx_id,omitempty"`
}

// Settled reports whether the submission reached a terminal verdict.
func (s *Submission) Settled() bool {
	return s.AgentVerdict == VerdictApproved || s.AgentVerdict == VerdictRejected
}

// FeedEntry is a submission joined with its task type for the public feed.
type FeedEntry struct {
	SubmissionID  uuid.UUID
	WorkerID      uuid.UUID
	TaskType      string
	DurationHours float64
	Verdict       string
	TimeEnd       time.Time
}
