package lookup

import (
	"errors"
	"sort"

	"note-lifecycle-lab/internal/calendar"
	"note-lifecycle-lab/internal/domain"
)

// Errors returned by lookup functions.
var (
	ErrNoPriceData = errors.New("no price data available")
	ErrStalePrice  = errors.New("last known price is too old")
)

// OnDate returns the point dated exactly target, or nil.
// Series must be ordered by date ascending.
func OnDate(target calendar.Date, series []*domain.PricePoint) *domain.PricePoint {
	i := sort.Search(len(series), func(i int) bool {
		return !series[i].Date.Before(target)
	})
	if i < len(series) && series[i].Date == target {
		return series[i]
	}
	return nil
}

// AtOrBefore returns the last point dated on or before target.
// Unlike a trading-replay lookup it never falls forward to a later point:
// a day before the first print has no known price.
func AtOrBefore(target calendar.Date, series []*domain.PricePoint) (*domain.PricePoint, error) {
	if len(series) == 0 {
		return nil, ErrNoPriceData
	}
	i := sort.Search(len(series), func(i int) bool {
		return series[i].Date.After(target)
	})
	if i == 0 {
		return nil, ErrNoPriceData
	}
	return series[i-1], nil
}

// AtOrBeforeWithin is AtOrBefore restricted to points no more than maxAgeDays
// older than target. maxAgeDays < 0 disables the restriction.
func AtOrBeforeWithin(target calendar.Date, series []*domain.PricePoint, maxAgeDays int) (*domain.PricePoint, error) {
	p, err := AtOrBefore(target, series)
	if err != nil {
		return nil, err
	}
	if maxAgeDays >= 0 && target.DaysSince(p.Date) > maxAgeDays {
		return nil, ErrStalePrice
	}
	return p, nil
}

// Cursor walks an ascending series forward, returning the last point on or
// before each successive target in amortized constant time. Targets must be
// non-decreasing.
type Cursor struct {
	series []*domain.PricePoint
	next   int
	last   *domain.PricePoint
}

// NewCursor creates a cursor over an ascending series.
func NewCursor(series []*domain.PricePoint) *Cursor {
	return &Cursor{series: series}
}

// Advance moves to target and returns the last point on or before it, or nil.
func (c *Cursor) Advance(target calendar.Date) *domain.PricePoint {
	for c.next < len(c.series) && !c.series[c.next].Date.After(target) {
		c.last = c.series[c.next]
		c.next++
	}
	return c.last
}
