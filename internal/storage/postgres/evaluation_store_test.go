package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"note-lifecycle-lab/internal/calendar"
	"note-lifecycle-lab/internal/domain"
	"note-lifecycle-lab/internal/storage"
)

func testRecord(isin, runID string, status domain.Status) *domain.EvaluationRecord {
	return &domain.EvaluationRecord{
		ISIN:        isin,
		RunID:       runID,
		Fingerprint: "abc123",
		EvaluatedAt: time.Date(2024, 7, 3, 6, 0, 0, 0, time.UTC),
		Result: &domain.EvaluationResult{
			ISIN:             isin,
			AsOf:             calendar.MustParse("2024-07-03"),
			Status:           status,
			CumulativeCoupon: 2,
			Observations: []domain.ObservationResult{
				{Date: calendar.MustParse("2024-07-02"), BasketPerformance: ptr(-4.0), BasketTicker: "BBB", CouponBarrier: 70, CouponCleared: true, CouponPaid: 2},
			},
		},
	}
}

func TestEvaluationStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	createTestProduct(t, ctx, pool, "XS1")
	store := NewEvaluationStore(pool)

	require.NoError(t, store.Upsert(ctx, testRecord("XS1", "run-1", domain.StatusLive)))
	require.NoError(t, store.Upsert(ctx, testRecord("XS1", "run-2", domain.StatusAutocalled)))

	got, err := store.GetByISIN(ctx, "XS1")
	require.NoError(t, err)
	assert.Equal(t, "run-2", got.RunID)
	assert.Equal(t, "abc123", got.Fingerprint)
	assert.True(t, got.EvaluatedAt.Equal(time.Date(2024, 7, 3, 6, 0, 0, 0, time.UTC)))
	assert.Equal(t, domain.StatusAutocalled, got.Result.Status)
	require.Len(t, got.Result.Observations, 1)
	assert.Equal(t, -4.0, *got.Result.Observations[0].BasketPerformance)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEvaluationStore_UnknownProduct(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	err := NewEvaluationStore(pool).Upsert(context.Background(), testRecord("XS404", "run-1", domain.StatusLive))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunStore_InsertAndGetLatest(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(pool)

	_, err := store.GetLatest(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	started := time.Date(2024, 7, 3, 6, 0, 0, 0, time.UTC)
	first := &storage.RunRecord{
		RunID: "run-1", AsOf: calendar.MustParse("2024-07-02"),
		StartedAt: started, FinishedAt: started.Add(time.Minute),
		Evaluated: 10,
	}
	second := &storage.RunRecord{
		RunID: "run-2", AsOf: calendar.MustParse("2024-07-03"),
		StartedAt: started.Add(24 * time.Hour), FinishedAt: started.Add(25 * time.Hour),
		Evaluated: 9, Failed: 1, Errors: []string{"XS9: missing price data"},
	}
	require.NoError(t, store.Insert(ctx, first))
	require.NoError(t, store.Insert(ctx, second))
	assert.ErrorIs(t, store.Insert(ctx, first), storage.ErrDuplicateKey)

	latest, err := store.GetLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-2", latest.RunID)
	assert.Equal(t, calendar.MustParse("2024-07-03"), latest.AsOf)
	assert.Equal(t, 9, latest.Evaluated)
	assert.Equal(t, 1, latest.Failed)
	assert.Equal(t, []string{"XS9: missing price data"}, latest.Errors)
}
