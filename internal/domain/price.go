package domain

import "note-lifecycle-lab/internal/calendar"

// PricePoint is one trading day for one ticker.
// Corresponds to the daily_prices table in ClickHouse.
type PricePoint struct {
	Ticker        string        // price-series key
	Date          calendar.Date // trading day
	Close         float64       // raw close
	AdjustedClose float64       // close adjusted for corporate actions
}

// Level returns the adjusted close, falling back to close when the feed
// carries no adjustment.
func (p *PricePoint) Level() float64 {
	if p.AdjustedClose != 0 {
		return p.AdjustedClose
	}
	return p.Close
}
