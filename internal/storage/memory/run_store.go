package memory

import (
	"context"
	"sync"

	"note-lifecycle-lab/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	runs []*storage.RunRecord // in insertion order
	ids  map[string]struct{}
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		ids: make(map[string]struct{}),
	}
}

// Insert records a finished run.
func (s *RunStore) Insert(_ context.Context, r *storage.RunRecord) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	s.ids[r.RunID] = struct{}{}
	s.runs = append(s.runs, copyRun(r))
	return nil
}

// GetLatest returns the most recently started run.
func (s *RunStore) GetLatest(_ context.Context) (*storage.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *storage.RunRecord
	for _, r := range s.runs {
		if latest == nil || !r.StartedAt.Before(latest.StartedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return copyRun(latest), nil
}

func copyRun(r *storage.RunRecord) *storage.RunRecord {
	c := *r
	c.Errors = append([]string(nil), r.Errors...)
	return &c
}

var _ storage.RunStore = (*RunStore)(nil)
