package payoff

import (
	"fmt"

	"note-lifecycle-lab/internal/calendar"
	"note-lifecycle-lab/internal/domain"
	"note-lifecycle-lab/internal/lookup"
)

// Walker runs the observation state machine for one product.
// It is single-use and not safe for concurrent use.
type Walker struct {
	product  *domain.Product
	series   map[string][]*domain.PricePoint
	bases    map[string]float64
	maxStale int
	tracker  *MemoryTracker
	trace    TraceSink

	status       domain.Status
	results      []domain.ObservationResult
	cumulative   float64
	autocallDate calendar.Date
	// per-underlying performances on the last evaluated date
	lastPerfs []UnderlyingPerformance
}

// WalkOutcome is the state after walking all due observation dates.
type WalkOutcome struct {
	Status           domain.Status
	Observations     []domain.ObservationResult
	CumulativeCoupon float64
	AutocallDate     calendar.Date
	// AutocallPerformances are the per-underlying performances on the autocall date.
	AutocallPerformances []UnderlyingPerformance
}

// NewWalker creates a walker. bases maps ticker to the level performances are
// measured against; series must be ascending by date.
func NewWalker(p *domain.Product, series map[string][]*domain.PricePoint, bases map[string]float64, maxStaleDays int, trace TraceSink) *Walker {
	return &Walker{
		product:  p,
		series:   series,
		bases:    bases,
		maxStale: maxStaleDays,
		tracker:  NewMemoryTracker(p.Features, p.Tickers()),
		trace:    trace,
		status:   domain.StatusPending,
	}
}

// PerformancesAt returns each underlying's own performance on date, using the
// last price no more than maxStale days old. Unpriced underlyings get nil.
func PerformancesAt(p *domain.Product, series map[string][]*domain.PricePoint, bases map[string]float64, date calendar.Date, maxStale int) []UnderlyingPerformance {
	out := make([]UnderlyingPerformance, len(p.Underlyings))
	for i, u := range p.Underlyings {
		out[i].Ticker = u.Ticker
		pt, err := lookup.AtOrBeforeWithin(date, series[u.Ticker], maxStale)
		if err != nil {
			continue
		}
		v := Performance(pt.Level(), bases[u.Ticker])
		out[i].Value = &v
	}
	return out
}

// Walk processes every observation dated on or before asOf, halting on
// autocall. Reaching the final observation date without autocall matures
// the product.
func (w *Walker) Walk(asOf calendar.Date) (*WalkOutcome, error) {
	p := w.product
	for _, obs := range p.Observations {
		if obs.Date.After(asOf) {
			break
		}
		w.status = domain.StatusLive
		res, err := w.step(obs)
		if err != nil {
			return nil, err
		}
		w.results = append(w.results, res)
		if res.Autocalled {
			w.status = domain.StatusAutocalled
			w.autocallDate = obs.Date
			break
		}
	}

	if w.status != domain.StatusAutocalled && !asOf.Before(p.FinalObservationDate) {
		w.status = domain.StatusMatured
	}

	out := &WalkOutcome{
		Status:           w.status,
		Observations:     w.results,
		CumulativeCoupon: w.cumulative,
		AutocallDate:     w.autocallDate,
	}
	if w.status == domain.StatusAutocalled {
		out.AutocallPerformances = w.lastPerfs
	}
	return out, nil
}

func (w *Walker) step(obs domain.ObservationDate) (domain.ObservationResult, error) {
	p := w.product
	res := domain.ObservationResult{
		Date:          obs.Date,
		CouponBarrier: p.CouponBarrierAt(obs),
		AutocallLevel: obs.AutocallLevel,
	}

	perfs := PerformancesAt(p, w.series, w.bases, obs.Date, w.maxStale)
	sel, err := Aggregate(p.Rule(), perfs)
	if err != nil {
		return res, fmt.Errorf("aggregate basket at %s: %w", obs.Date, err)
	}
	if sel == nil {
		if obs.Date == p.FinalObservationDate {
			return res, &MissingPriceDataError{ISIN: p.ISIN, Date: obs.Date, Tickers: p.Tickers()}
		}
		res.DataGap = true
		res.MissedCoupons = w.tracker.MissedCoupons()
		res.LockedUnderlyings = w.tracker.Locked()
		w.emit(res, false)
		return res, nil
	}
	w.lastPerfs = perfs

	perf := sel.Performance
	res.BasketPerformance = &perf
	res.BasketTicker = sel.Ticker

	res.CouponCleared = atOrAbove(perf, res.CouponBarrier-100)
	res.CouponPaid = w.tracker.SettleCoupon(res.CouponCleared, p.CouponAt(obs))
	res.MissedCoupons = w.tracker.MissedCoupons()
	w.cumulative += res.CouponPaid

	tested := obs.AutocallLevel != nil
	if tested {
		threshold := *obs.AutocallLevel - 100
		if w.tracker.AutocallMemory() {
			for _, up := range perfs {
				if up.Value != nil && atOrAbove(*up.Value, threshold) {
					w.tracker.Lock(up.Ticker)
				}
			}
			res.Autocalled = w.tracker.FullyLocked()
		} else {
			res.Autocalled = atOrAbove(perf, threshold)
		}
	}
	res.LockedUnderlyings = w.tracker.Locked()

	w.emit(res, tested)
	return res, nil
}

func (w *Walker) emit(res domain.ObservationResult, tested bool) {
	if w.trace == nil {
		return
	}
	w.trace(TraceEvent{
		ISIN:              w.product.ISIN,
		Date:              res.Date,
		BasketTicker:      res.BasketTicker,
		BasketPerformance: res.BasketPerformance,
		CouponCleared:     res.CouponCleared,
		CouponPaid:        res.CouponPaid,
		MissedCoupons:     res.MissedCoupons,
		AutocallTested:    tested,
		Autocalled:        res.Autocalled,
		Locked:            res.LockedUnderlyings,
		DataGap:           res.DataGap,
	})
}
