package payoff

import (
	"math"

	"note-lifecycle-lab/internal/calendar"
	"note-lifecycle-lab/internal/domain"
	"note-lifecycle-lab/internal/lookup"
)

// sameLevelTolerance is the relative tolerance under which a raw reference
// level is considered equal to the trade-date close.
const sameLevelTolerance = 1e-9

// Adjustment is the outcome of adjusting one reference level.
type Adjustment struct {
	Level    float64 // level performances are measured against
	Factor   float64 // adjusted close / close at trade date, 1 when unadjusted
	Adjusted bool
}

// AdjustReferenceLevel converts a raw initial reference level into a
// corporate-action-adjusted one using the trade-date close/adjusted-close
// ratio. When the ratio cannot be determined the raw level is returned with
// Adjusted=false and an *AmbiguousAdjustmentError describing why.
func AdjustReferenceLevel(ticker string, raw float64, tradeDate calendar.Date, series []*domain.PricePoint) (Adjustment, error) {
	unadjusted := Adjustment{Level: raw, Factor: 1}

	p := lookup.OnDate(tradeDate, series)
	if p == nil {
		return unadjusted, &AmbiguousAdjustmentError{Ticker: ticker, Date: tradeDate, Reason: "no price on trade date"}
	}
	if p.AdjustedClose == 0 || p.Close == 0 {
		return unadjusted, &AmbiguousAdjustmentError{Ticker: ticker, Date: tradeDate, Reason: "zero close or adjusted close"}
	}

	factor := p.AdjustedClose / p.Close
	if math.Abs(raw-p.Close) <= sameLevelTolerance*math.Max(1, math.Abs(p.Close)) {
		// Use the adjusted close itself rather than re-deriving it.
		return Adjustment{Level: p.AdjustedClose, Factor: factor, Adjusted: true}, nil
	}
	return Adjustment{Level: raw * factor, Factor: factor, Adjusted: true}, nil
}

// Performance returns the percent change of level from base (0 = unchanged).
func Performance(level, base float64) float64 {
	return (level - base) / base * 100
}
