package memory

import (
	"context"
	"sort"
	"sync"

	"note-lifecycle-lab/internal/domain"
	"note-lifecycle-lab/internal/storage"
)

// EvaluationStore is an in-memory implementation of storage.EvaluationStore.
// Stored results are shared, not copied: an EvaluationResult is never
// mutated once produced.
type EvaluationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.EvaluationRecord // keyed by isin
}

// NewEvaluationStore creates a new in-memory evaluation store.
func NewEvaluationStore() *EvaluationStore {
	return &EvaluationStore{
		data: make(map[string]*domain.EvaluationRecord),
	}
}

// Upsert stores a record, replacing any previous record for the ISIN.
func (s *EvaluationStore) Upsert(_ context.Context, r *domain.EvaluationRecord) error {
	if r == nil || r.ISIN == "" || r.Result == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recordCopy := *r
	s.data[r.ISIN] = &recordCopy
	return nil
}

// GetByISIN retrieves the latest record. Returns ErrNotFound if not exists.
func (s *EvaluationStore) GetByISIN(_ context.Context, isin string) (*domain.EvaluationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[isin]
	if !exists {
		return nil, storage.ErrNotFound
	}
	recordCopy := *r
	return &recordCopy, nil
}

// GetAll retrieves all records ordered by ISIN.
func (s *EvaluationStore) GetAll(_ context.Context) ([]*domain.EvaluationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.EvaluationRecord, 0, len(s.data))
	for _, r := range s.data {
		recordCopy := *r
		result = append(result, &recordCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ISIN < result[j].ISIN
	})
	return result, nil
}

var _ storage.EvaluationStore = (*EvaluationStore)(nil)
