package memory

import (
	"context"
	"errors"
	"testing"

	"note-lifecycle-lab/internal/calendar"
	"note-lifecycle-lab/internal/domain"
	"note-lifecycle-lab/internal/storage"
)

func point(ticker, date string, level float64) *domain.PricePoint {
	return &domain.PricePoint{Ticker: ticker, Date: calendar.MustParse(date), Close: level, AdjustedClose: level}
}

func TestPriceHistoryStore_InsertBulkAndGet(t *testing.T) {
	store := NewPriceHistoryStore()
	ctx := context.Background()

	points := []*domain.PricePoint{
		point("AAA", "2024-01-03", 101),
		point("AAA", "2024-01-02", 100),
		point("BBB", "2024-01-02", 50),
	}
	if err := store.InsertBulk(ctx, points); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByTicker(ctx, "AAA")
	if err != nil {
		t.Fatalf("GetByTicker failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 points, got %d", len(result))
	}
	if result[0].Date != calendar.MustParse("2024-01-02") {
		t.Errorf("Expected ascending order, first = %s", result[0].Date)
	}
}

func TestPriceHistoryStore_DuplicateKey(t *testing.T) {
	store := NewPriceHistoryStore()
	ctx := context.Background()

	points := []*domain.PricePoint{point("AAA", "2024-01-02", 100)}
	if err := store.InsertBulk(ctx, points); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	if err := store.InsertBulk(ctx, points); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestPriceHistoryStore_IntraBatchDuplicate(t *testing.T) {
	store := NewPriceHistoryStore()
	ctx := context.Background()

	points := []*domain.PricePoint{
		point("AAA", "2024-01-02", 100),
		point("AAA", "2024-01-02", 101),
	}
	if err := store.InsertBulk(ctx, points); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}

	result, _ := store.GetByTicker(ctx, "AAA")
	if len(result) != 0 {
		t.Errorf("Expected 0 points (rollback), got %d", len(result))
	}
}

func TestPriceHistoryStore_GetByDateRange(t *testing.T) {
	store := NewPriceHistoryStore()
	ctx := context.Background()

	points := []*domain.PricePoint{
		point("AAA", "2024-01-02", 100),
		point("AAA", "2024-01-03", 101),
		point("AAA", "2024-01-04", 102),
		point("AAA", "2024-01-05", 103),
	}
	if err := store.InsertBulk(ctx, points); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, _ := store.GetByDateRange(ctx, "AAA", calendar.MustParse("2024-01-03"), calendar.MustParse("2024-01-04"))
	if len(result) != 2 {
		t.Errorf("Expected 2 points in range, got %d", len(result))
	}

	result, _ = store.GetByDateRange(ctx, "AAA", calendar.Date{}, calendar.MustParse("2024-01-03"))
	if len(result) != 2 {
		t.Errorf("Expected 2 points with open lower bound, got %d", len(result))
	}
}

func TestPriceHistoryStore_InvalidInput(t *testing.T) {
	store := NewPriceHistoryStore()
	err := store.InsertBulk(context.Background(), []*domain.PricePoint{{Ticker: "AAA"}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for zero date, got %v", err)
	}
}
