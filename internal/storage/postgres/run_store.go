package postgres

import (
	"context"
	"fmt"
	"time"

	"note-lifecycle-lab/internal/calendar"
	"note-lifecycle-lab/internal/storage"
)

// RunStore implements storage.RunStore using the evaluation_runs table.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// Insert records a finished run. Returns ErrDuplicateKey if the run ID exists.
func (s *RunStore) Insert(ctx context.Context, r *storage.RunRecord) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	errs := r.Errors
	if errs == nil {
		errs = []string{}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO evaluation_runs (run_id, as_of, started_at, finished_at, evaluated, failed, errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.RunID, r.AsOf.Time(), r.StartedAt, r.FinishedAt, r.Evaluated, r.Failed, errs)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetLatest returns the most recently started run.
func (s *RunStore) GetLatest(ctx context.Context) (*storage.RunRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT run_id, as_of, started_at, finished_at, evaluated, failed, errors
		FROM evaluation_runs
		ORDER BY started_at DESC
		LIMIT 1
	`)

	var (
		r                 storage.RunRecord
		asOf              time.Time
		evaluated, failed int32
	)
	err := row.Scan(&r.RunID, &asOf, &r.StartedAt, &r.FinishedAt, &evaluated, &failed, &r.Errors)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest run: %w", err)
	}

	r.AsOf = calendar.FromTime(asOf)
	r.Evaluated = int(evaluated)
	r.Failed = int(failed)
	return &r, nil
}
