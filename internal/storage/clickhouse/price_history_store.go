package clickhouse

import (
	"context"
	"fmt"
	"time"

	"note-lifecycle-lab/internal/calendar"
	"note-lifecycle-lab/internal/domain"
	"note-lifecycle-lab/internal/storage"
)

// PriceHistoryStore implements storage.PriceHistoryStore using ClickHouse.
type PriceHistoryStore struct {
	conn *Conn
}

// NewPriceHistoryStore creates a new PriceHistoryStore.
func NewPriceHistoryStore(conn *Conn) *PriceHistoryStore {
	return &PriceHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate (ticker, date).
// MergeTree does not enforce uniqueness, so duplicates are checked first.
func (s *PriceHistoryStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	type span struct{ from, to calendar.Date }
	seen := make(map[string]map[calendar.Date]struct{})
	spans := make(map[string]span)
	for _, p := range points {
		if p == nil || p.Ticker == "" || p.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		dates, ok := seen[p.Ticker]
		if !ok {
			dates = make(map[calendar.Date]struct{})
			seen[p.Ticker] = dates
			spans[p.Ticker] = span{p.Date, p.Date}
		}
		if _, dup := dates[p.Date]; dup {
			return storage.ErrDuplicateKey
		}
		dates[p.Date] = struct{}{}

		sp := spans[p.Ticker]
		if p.Date.Before(sp.from) {
			sp.from = p.Date
		}
		if p.Date.After(sp.to) {
			sp.to = p.Date
		}
		spans[p.Ticker] = sp
	}

	// One range query per ticker against existing rows.
	for ticker, sp := range spans {
		existing, err := s.GetByDateRange(ctx, ticker, sp.from, sp.to)
		if err != nil {
			return fmt.Errorf("check existing: %w", err)
		}
		for _, e := range existing {
			if _, dup := seen[ticker][e.Date]; dup {
				return storage.ErrDuplicateKey
			}
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO daily_prices (ticker, date, close, adjusted_close)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(p.Ticker, p.Date.Time(), p.Close, p.AdjustedClose); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTicker retrieves all points for a ticker, ordered by date ASC.
func (s *PriceHistoryStore) GetByTicker(ctx context.Context, ticker string) ([]*domain.PricePoint, error) {
	query := `
		SELECT ticker, date, close, adjusted_close
		FROM daily_prices
		WHERE ticker = ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, ticker)
	if err != nil {
		return nil, fmt.Errorf("query by ticker: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// GetByDateRange retrieves points for a ticker within [from, to] (inclusive).
// A zero bound is open.
func (s *PriceHistoryStore) GetByDateRange(ctx context.Context, ticker string, from, to calendar.Date) ([]*domain.PricePoint, error) {
	if from.IsZero() && to.IsZero() {
		return s.GetByTicker(ctx, ticker)
	}
	lo, hi := calendar.MustParse("1970-01-01"), calendar.MustParse("2149-06-06")
	if !from.IsZero() {
		lo = from
	}
	if !to.IsZero() {
		hi = to
	}

	query := `
		SELECT ticker, date, close, adjusted_close
		FROM daily_prices
		WHERE ticker = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, ticker, lo.Time(), hi.Time())
	if err != nil {
		return nil, fmt.Errorf("query by date range: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

func scanPricePoints(rows chRows) ([]*domain.PricePoint, error) {
	var points []*domain.PricePoint

	for rows.Next() {
		var p domain.PricePoint
		var date time.Time

		if err := rows.Scan(&p.Ticker, &date, &p.Close, &p.AdjustedClose); err != nil {
			return nil, fmt.Errorf("scan daily price row: %w", err)
		}

		p.Date = calendar.FromTime(date)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily price rows: %w", err)
	}

	return points, nil
}
