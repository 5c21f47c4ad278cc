// Package store persists assembled catalog snapshots. A snapshot is the
// complete output of one pipeline run; reruns write new snapshots rather
// than patching old ones.
package store

import (
	"context"
	"errors"

	"seiscat/pkg/catalog"
)

// ErrNotFound is returned when no snapshot exists for the requested run.
var ErrNotFound = errors.New("store: snapshot not found")

// Snapshot is one run's complete catalog.
type Snapshot struct {
	RunID     string                   `json:"run_id"`
	Picks     []catalog.Pick           `json:"picks"`
	Origins   []catalog.Origin         `json:"origins"`
	Events    []catalog.Event          `json:"events"`
	Waveforms []catalog.WaveformRecord `json:"waveforms"`
}

// Store is a catalog snapshot backend.
type Store interface {
	// Save writes the snapshot, replacing any snapshot with the same run id.
	Save(ctx context.Context, snap Snapshot) error
	// Load returns the snapshot for the run id, or ErrNotFound.
	Load(ctx context.Context, runID string) (Snapshot, error)
	// Runs lists stored run ids in lexical order.
	Runs(ctx context.Context) ([]string, error)
	Close() error
}
