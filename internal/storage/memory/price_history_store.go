package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"note-lifecycle-lab/internal/calendar"
	"note-lifecycle-lab/internal/domain"
	"note-lifecycle-lab/internal/storage"
)

// PriceHistoryStore is an in-memory implementation of storage.PriceHistoryStore.
type PriceHistoryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PricePoint // keyed by (ticker, date)
}

// NewPriceHistoryStore creates a new in-memory price history store.
func NewPriceHistoryStore() *PriceHistoryStore {
	return &PriceHistoryStore{
		data: make(map[string]*domain.PricePoint),
	}
}

func priceKey(ticker string, date calendar.Date) string {
	return fmt.Sprintf("%s|%s", ticker, date)
}

// InsertBulk adds multiple points. Fails entire batch on duplicate.
func (s *PriceHistoryStore) InsertBulk(_ context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(points))

	// First pass: validate and check duplicates (existing + intra-batch)
	for _, p := range points {
		if p == nil || p.Ticker == "" || p.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		key := priceKey(p.Ticker, p.Date)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, p := range points {
		pointCopy := *p
		s.data[priceKey(p.Ticker, p.Date)] = &pointCopy
	}
	return nil
}

// GetByTicker retrieves all points for a ticker, ordered by date ASC.
func (s *PriceHistoryStore) GetByTicker(_ context.Context, ticker string) ([]*domain.PricePoint, error) {
	return s.filter(ticker, calendar.Date{}, calendar.Date{}), nil
}

// GetByDateRange retrieves points for a ticker within [from, to] (inclusive).
// A zero bound is open.
func (s *PriceHistoryStore) GetByDateRange(_ context.Context, ticker string, from, to calendar.Date) ([]*domain.PricePoint, error) {
	return s.filter(ticker, from, to), nil
}

func (s *PriceHistoryStore) filter(ticker string, from, to calendar.Date) []*domain.PricePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PricePoint
	for _, p := range s.data {
		if p.Ticker != ticker {
			continue
		}
		if !from.IsZero() && p.Date.Before(from) {
			continue
		}
		if !to.IsZero() && p.Date.After(to) {
			continue
		}
		pointCopy := *p
		result = append(result, &pointCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result
}

var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)
