package storage

import (
	"context"
	"time"

	"note-lifecycle-lab/internal/calendar"
)

// RunRecord summarizes one batch evaluation run.
type RunRecord struct {
	RunID      string
	AsOf       calendar.Date
	StartedAt  time.Time
	FinishedAt time.Time
	Evaluated  int      // products evaluated and persisted
	Failed     int      // products left untouched
	Errors     []string // one line per failed product
}

// RunStore persists batch run summaries so a restarted service can report
// the last completed run.
type RunStore interface {
	// Insert records a finished run. Returns ErrDuplicateKey if the run ID exists.
	Insert(ctx context.Context, r *RunRecord) error

	// GetLatest returns the most recently started run.
	// Returns ErrNotFound if no run has been recorded yet.
	GetLatest(ctx context.Context) (*RunRecord, error)
}
