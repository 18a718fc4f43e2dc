package storage

import (
	"context"

	"note-lifecycle-lab/internal/calendar"
	"note-lifecycle-lab/internal/domain"
)

// ProductStore provides access to products storage.
type ProductStore interface {
	// Insert adds a new product. Returns ErrDuplicateKey if the ISIN exists.
	Insert(ctx context.Context, p *domain.Product) error

	// GetByISIN retrieves a product. Returns ErrNotFound if not exists.
	GetByISIN(ctx context.Context, isin string) (*domain.Product, error)

	// GetAll retrieves all products ordered by ISIN.
	GetAll(ctx context.Context) ([]*domain.Product, error)

	// ListActive retrieves products not yet autocalled or matured, ordered by ISIN.
	ListActive(ctx context.Context) ([]*domain.Product, error)

	// UpdateComputed writes back evaluator-owned fields (status, autocall
	// date, adjusted levels, last price info). Terms are left untouched.
	// Returns ErrNotFound if the ISIN does not exist.
	UpdateComputed(ctx context.Context, p *domain.Product) error
}

// PriceHistoryStore provides access to daily_prices storage.
type PriceHistoryStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate (ticker, date).
	InsertBulk(ctx context.Context, points []*domain.PricePoint) error

	// GetByTicker retrieves all points for a ticker, ordered by date ASC.
	GetByTicker(ctx context.Context, ticker string) ([]*domain.PricePoint, error)

	// GetByDateRange retrieves points for a ticker within [from, to] (inclusive).
	GetByDateRange(ctx context.Context, ticker string, from, to calendar.Date) ([]*domain.PricePoint, error)
}

// EvaluationStore provides access to evaluation_results storage.
// Holds the latest evaluation per ISIN.
type EvaluationStore interface {
	// Upsert stores a record, replacing any previous record for the ISIN.
	Upsert(ctx context.Context, r *domain.EvaluationRecord) error

	// GetByISIN retrieves the latest record. Returns ErrNotFound if not exists.
	GetByISIN(ctx context.Context, isin string) (*domain.EvaluationRecord, error)

	// GetAll retrieves all records ordered by ISIN.
	GetAll(ctx context.Context) ([]*domain.EvaluationRecord, error)
}
