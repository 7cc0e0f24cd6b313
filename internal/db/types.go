package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Run status values
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run is a roadmap generation record. Roadmap holds the final result only.
type Run struct {
	ID          uuid.UUID       `json:"id"`
	Goal        string          `json:"goal"`
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	Roadmap     json.RawMessage `json:"roadmap,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// RunFilters holds optional filters for listing runs
type RunFilters struct {
	Status string
	Limit  int
}
