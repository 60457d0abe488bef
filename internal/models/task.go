package models

import (
	"time"

	"github.com/google/uuid"
)

// Task type tags with a known reward multiplier. The set is open: any other
// tag is accepted and settles at the default multiplier.
const (
	TaskTypeGardening    = "GARDENING"
	TaskTypeCoding       = "CODING"
	TaskTypeConstruction = "CONSTRUCTION"
)

// Evidence kinds a task can require.
const (
	EvidenceGPS            = "GPS"
	EvidenceTimelapseVideo = "TIMELAPSE_VIDEO"
)

// Task status enums.
const (
	TaskStatusOpen   = "OPEN"
	TaskStatusClosed = "CLOSED"
)

// GeoFence is the location constraint of a physical task.
type GeoFence struct {
	Lat          float64 `json:"lat"`
	Long         float64 `json:"long"`
	RadiusMeters int     `json:"radius_meters"`
}

type Task struct {
	ID               uuid.UUID `json:"task_id"`
	CreatorID        uuid.UUID `json:"creator_id"`
	Type             string    `json:"type"`
	GeoFence         GeoFence  `json:"geo_fence"`
	RequiredEvidence []string  `json:"required_evidence"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}
