package payoff

import (
	"errors"
	"fmt"

	"note-lifecycle-lab/internal/calendar"
)

// Sentinel errors the typed errors below unwrap to.
var (
	ErrMissingPriceData    = errors.New("missing price data")
	ErrInvalidSchedule     = errors.New("invalid schedule")
	ErrAmbiguousAdjustment = errors.New("ambiguous corporate action adjustment")
)

// MissingPriceDataError reports that no underlying could be priced on a date
// the evaluation cannot do without.
type MissingPriceDataError struct {
	ISIN    string
	Date    calendar.Date
	Tickers []string
}

func (e *MissingPriceDataError) Error() string {
	return fmt.Sprintf("%s: no price for any of %v on or near %s", e.ISIN, e.Tickers, e.Date)
}

func (e *MissingPriceDataError) Unwrap() error { return ErrMissingPriceData }

// InvalidScheduleError reports malformed product dates. It is a hard failure.
type InvalidScheduleError struct {
	ISIN   string
	Reason string
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("%s: invalid schedule: %s", e.ISIN, e.Reason)
}

func (e *InvalidScheduleError) Unwrap() error { return ErrInvalidSchedule }

// AmbiguousAdjustmentError reports that the corporate-action ratio of an
// underlying could not be determined. It is never fatal: the raw reference
// level is used and the underlying is flagged for review.
type AmbiguousAdjustmentError struct {
	Ticker string
	Date   calendar.Date
	Reason string
}

func (e *AmbiguousAdjustmentError) Error() string {
	return fmt.Sprintf("%s: reference level left unadjusted at %s: %s", e.Ticker, e.Date, e.Reason)
}

func (e *AmbiguousAdjustmentError) Unwrap() error { return ErrAmbiguousAdjustment }
