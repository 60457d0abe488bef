package models

import (
	"time"

	"github.com/google/uuid"
)

// User status enums.
const (
	UserStatusActive    = "ACTIVE"
	UserStatusSuspended = "SUSPENDED"
)

// DefaultReputation is the score every new worker starts with.
const DefaultReputation = 1.0

// Skill is a tagged capability with a reward multiplier (> 0).
type Skill struct {
	Tag        string  `json:"tag"`
	Multiplier float64 `json:"multiplier"`
}

// User is a worker whose submissions are judged and rewarded.
type User struct {
	ID              uuid.UUID `json:"user_id"`
	WalletAddress   string    `json:"wallet_address"`
	ReputationScore float64   `json:"reputation_score"`
	TotalMinted     float64   `json:"total_minted"`
	Skills          []Skill   `json:"skills"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}
