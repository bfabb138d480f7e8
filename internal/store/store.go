// Package store persists tagging runs and the census reference tables.
package store

import (
	"context"

	"github.com/streetscope/blockgeo/internal/model"
)

// Store defines the persistence interface for the tagging pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, dataset, output string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, rows, found, noMatch, malformed int) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Reference tables
	SaveTractLookup(ctx context.Context, lookup map[string]string) error
	GetTractCode(ctx context.Context, geoid string) (string, error)
	SaveAttributes(ctx context.Context, columns []string, rows []map[string]any) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
