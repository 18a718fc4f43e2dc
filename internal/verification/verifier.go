// Package verification re-evaluates stored results and reports any field
// that no longer matches, proving that evaluation is deterministic.
package verification

import (
	"context"
	"fmt"
	"math"

	"note-lifecycle-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // field name
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// VerificationResult contains the result of verifying a single product.
type VerificationResult struct {
	ISIN                string            // verified product
	Match               bool              // true if all fields match
	Divergences         []FieldDivergence // list of divergent fields
	StoredFingerprint   string            // fingerprint of the stored result
	ReplayedFingerprint string            // fingerprint of the re-evaluated result
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalProducts     int                  // products verified
	MatchedProducts   int                  // products that matched
	DivergentProducts int                  // products with divergences or errors
	Results           []VerificationResult // individual results
}

// Verifier re-evaluates stored evaluation results.
type Verifier interface {
	// VerifyProduct re-evaluates one product at its stored as-of date and
	// compares the outcome with the stored result.
	VerifyProduct(ctx context.Context, isin string) (*VerificationResult, error)

	// VerifyAll verifies every stored evaluation.
	VerifyAll(ctx context.Context) (*VerificationReport, error)
}

// CompareResults compares two evaluation results and returns divergences.
// Chart series are compared by length only; their values derive from the
// same prices as the observations.
func CompareResults(stored, replayed *domain.EvaluationResult) []FieldDivergence {
	var d []FieldDivergence
	add := func(field string, expected, actual interface{}) {
		d = append(d, FieldDivergence{Field: field, Expected: expected, Actual: actual})
	}

	if stored.ISIN != replayed.ISIN {
		add("ISIN", stored.ISIN, replayed.ISIN)
	}
	if stored.AsOf != replayed.AsOf {
		add("AsOf", stored.AsOf, replayed.AsOf)
	}
	if stored.Status != replayed.Status {
		add("Status", stored.Status, replayed.Status)
	}
	if stored.AutocallDate != replayed.AutocallDate {
		add("AutocallDate", stored.AutocallDate, replayed.AutocallDate)
	}
	if !floatEquals(stored.CumulativeCoupon, replayed.CumulativeCoupon) {
		add("CumulativeCoupon", stored.CumulativeCoupon, replayed.CumulativeCoupon)
	}
	if !floatPtrEquals(stored.CapitalRedemption, replayed.CapitalRedemption) {
		add("CapitalRedemption", stored.CapitalRedemption, replayed.CapitalRedemption)
	}
	if !floatPtrEquals(stored.IndicativeRedemption, replayed.IndicativeRedemption) {
		add("IndicativeRedemption", stored.IndicativeRedemption, replayed.IndicativeRedemption)
	}
	if !floatPtrEquals(stored.PnL, replayed.PnL) {
		add("PnL", stored.PnL, replayed.PnL)
	}
	if len(stored.Chart) != len(replayed.Chart) {
		add("Chart", len(stored.Chart), len(replayed.Chart))
	}

	if len(stored.Observations) != len(replayed.Observations) {
		add("Observations", len(stored.Observations), len(replayed.Observations))
	} else {
		for i := range stored.Observations {
			d = append(d, compareObservation(i, &stored.Observations[i], &replayed.Observations[i])...)
		}
	}

	if len(stored.Underlyings) != len(replayed.Underlyings) {
		add("Underlyings", len(stored.Underlyings), len(replayed.Underlyings))
	} else {
		for i := range stored.Underlyings {
			s, r := stored.Underlyings[i], replayed.Underlyings[i]
			if !floatEquals(s.AdjustedLevel, r.AdjustedLevel) {
				add(fmt.Sprintf("Underlyings[%s].AdjustedLevel", s.Ticker), s.AdjustedLevel, r.AdjustedLevel)
			}
			if s.Unadjusted != r.Unadjusted {
				add(fmt.Sprintf("Underlyings[%s].Unadjusted", s.Ticker), s.Unadjusted, r.Unadjusted)
			}
		}
	}

	return d
}

func compareObservation(i int, s, r *domain.ObservationResult) []FieldDivergence {
	var d []FieldDivergence
	add := func(field string, expected, actual interface{}) {
		d = append(d, FieldDivergence{Field: fmt.Sprintf("Observations[%d].%s", i, field), Expected: expected, Actual: actual})
	}

	if s.Date != r.Date {
		add("Date", s.Date, r.Date)
	}
	if !floatPtrEquals(s.BasketPerformance, r.BasketPerformance) {
		add("BasketPerformance", s.BasketPerformance, r.BasketPerformance)
	}
	if s.BasketTicker != r.BasketTicker {
		add("BasketTicker", s.BasketTicker, r.BasketTicker)
	}
	if s.CouponCleared != r.CouponCleared {
		add("CouponCleared", s.CouponCleared, r.CouponCleared)
	}
	if !floatEquals(s.CouponPaid, r.CouponPaid) {
		add("CouponPaid", s.CouponPaid, r.CouponPaid)
	}
	if s.MissedCoupons != r.MissedCoupons {
		add("MissedCoupons", s.MissedCoupons, r.MissedCoupons)
	}
	if s.Autocalled != r.Autocalled {
		add("Autocalled", s.Autocalled, r.Autocalled)
	}
	if fmt.Sprint(s.LockedUnderlyings) != fmt.Sprint(r.LockedUnderlyings) {
		add("LockedUnderlyings", s.LockedUnderlyings, r.LockedUnderlyings)
	}
	if s.DataGap != r.DataGap {
		add("DataGap", s.DataGap, r.DataGap)
	}
	return d
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}

// floatPtrEquals compares two *float64 values within FloatTolerance.
// Returns true if both are nil, or both are non-nil and equal.
func floatPtrEquals(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return floatEquals(*a, *b)
}
