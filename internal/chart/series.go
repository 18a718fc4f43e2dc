// Package chart builds the daily basis-100 performance series of a note.
package chart

import (
	"note-lifecycle-lab/internal/calendar"
	"note-lifecycle-lab/internal/domain"
	"note-lifecycle-lab/internal/lookup"
)

// Input is what the series builder reads. Series must be ascending by date;
// Bases maps ticker to the level that renders as 100.
type Input struct {
	Product      *domain.Product
	Series       map[string][]*domain.PricePoint
	Bases        map[string]float64
	Today        calendar.Date
	AutocallDate calendar.Date // zero when the note has not autocalled
}

// Build returns one point per calendar day from trade date to final
// observation date, truncated after the autocall date.
//
// Underlying values are forward-filled from the last price on or before the
// day. Days after Today have no values and no worst-of.
func Build(in Input) []domain.ChartPoint {
	p := in.Product
	last := p.FinalObservationDate
	if !in.AutocallDate.IsZero() && in.AutocallDate.Before(last) {
		last = in.AutocallDate
	}
	if last.Before(p.TradeDate) {
		return nil
	}

	cursors := make([]*lookup.Cursor, len(p.Underlyings))
	for i, u := range p.Underlyings {
		cursors[i] = lookup.NewCursor(in.Series[u.Ticker])
	}
	dates := make([]calendar.Date, len(p.Observations))
	for i, o := range p.Observations {
		dates[i] = o.Date
	}

	out := make([]domain.ChartPoint, 0, last.DaysSince(p.TradeDate)+1)
	var autocallBarrier *float64
	nextObs := 0

	calendar.Range(p.TradeDate, last, func(day calendar.Date) {
		for nextObs < len(p.Observations) && !p.Observations[nextObs].Date.After(day) {
			if lvl := p.Observations[nextObs].AutocallLevel; lvl != nil {
				v := *lvl
				autocallBarrier = &v
			}
			nextObs++
		}

		pt := domain.ChartPoint{
			Date:                     day,
			Values:                   make(map[string]*float64, len(p.Underlyings)),
			CouponBarrier:            couponBarrierOn(p, dates, day),
			AutocallBarrier:          autocallBarrier,
			CapitalProtectionBarrier: p.CapitalProtectionBarrier,
		}

		known := !day.After(in.Today)
		for i, u := range p.Underlyings {
			pt.Values[u.Ticker] = nil
			if !known {
				continue
			}
			price := cursors[i].Advance(day)
			base := in.Bases[u.Ticker]
			if price == nil || base == 0 {
				continue
			}
			v := price.Level() / base * 100
			pt.Values[u.Ticker] = &v
			if pt.WorstOf == nil || v < *pt.WorstOf {
				w := v
				pt.WorstOf = &w
			}
		}
		out = append(out, pt)
	})
	return out
}

// couponBarrierOn returns the barrier of the most recent observation on or
// before day, falling back to the product-level barrier.
func couponBarrierOn(p *domain.Product, dates []calendar.Date, day calendar.Date) float64 {
	if i := calendar.LastOnOrBefore(dates, day); i >= 0 {
		return p.CouponBarrierAt(p.Observations[i])
	}
	return p.CouponBarrier
}
