package memory

import (
	"context"
	"sort"
	"sync"

	"note-lifecycle-lab/internal/domain"
	"note-lifecycle-lab/internal/storage"
)

// ProductStore is an in-memory implementation of storage.ProductStore.
type ProductStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Product // keyed by isin
}

// NewProductStore creates a new in-memory product store.
func NewProductStore() *ProductStore {
	return &ProductStore{
		data: make(map[string]*domain.Product),
	}
}

// Insert adds a new product. Returns ErrDuplicateKey if the ISIN exists.
func (s *ProductStore) Insert(_ context.Context, p *domain.Product) error {
	if p == nil || p.ISIN == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.ISIN]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[p.ISIN] = p.Clone()
	return nil
}

// GetByISIN retrieves a product. Returns ErrNotFound if not exists.
func (s *ProductStore) GetByISIN(_ context.Context, isin string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[isin]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return p.Clone(), nil
}

// GetAll retrieves all products ordered by ISIN.
func (s *ProductStore) GetAll(_ context.Context) ([]*domain.Product, error) {
	return s.list(func(*domain.Product) bool { return true }), nil
}

// ListActive retrieves products that are not terminal, ordered by ISIN.
func (s *ProductStore) ListActive(_ context.Context) ([]*domain.Product, error) {
	return s.list(func(p *domain.Product) bool { return !p.Status.Terminal() }), nil
}

func (s *ProductStore) list(keep func(*domain.Product) bool) []*domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Product
	for _, p := range s.data {
		if keep(p) {
			result = append(result, p.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ISIN < result[j].ISIN
	})
	return result
}

// UpdateComputed writes back evaluator-owned fields.
func (s *ProductStore) UpdateComputed(_ context.Context, p *domain.Product) error {
	if p == nil || p.ISIN == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.data[p.ISIN]
	if !exists {
		return storage.ErrNotFound
	}

	updated := current.Clone()
	updated.Status = p.Status
	updated.AutocallDate = p.AutocallDate
	computed := p.Clone()
	for i := range updated.Underlyings {
		for _, u := range computed.Underlyings {
			if u.Ticker != updated.Underlyings[i].Ticker {
				continue
			}
			updated.Underlyings[i].AdjustedLevel = u.AdjustedLevel
			updated.Underlyings[i].Unadjusted = u.Unadjusted
			updated.Underlyings[i].LastPriceInfo = u.LastPriceInfo
		}
	}
	s.data[p.ISIN] = updated
	return nil
}

var _ storage.ProductStore = (*ProductStore)(nil)
