// Package model defines the persisted records shared across stores.
package model

import "time"

// RunStatus tracks the lifecycle of a tagging run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run records one tagging pass over a dataset.
type Run struct {
	ID        string    `json:"id"`
	Dataset   string    `json:"dataset"`
	Output    string    `json:"output,omitempty"`
	Status    RunStatus `json:"status"`
	Rows      int       `json:"rows"`
	Found     int       `json:"found"`
	NoMatch   int       `json:"no_match"`
	Malformed int       `json:"malformed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
