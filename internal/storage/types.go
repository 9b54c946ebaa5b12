package storage

import (
	"context"
	"errors"
	"time"

	"hftracker/internal/tracker"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
//
// Driver values:
//   - "file" (default): JSON document at Path
//   - "sqlite": SQLite database file at Path
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the sole read/write gate for the persisted tracker state.
// It has a single owner; calls are serialized but not expected to overlap.
type Store interface {
	// Load returns the persisted state, or an empty state when nothing usable
	// is stored. It never returns nil.
	Load(ctx context.Context) *tracker.State
	// Save replaces the persisted state wholesale. A failed Save leaves the
	// previous version intact.
	Save(ctx context.Context, st *tracker.State) error
	Close() error
}
