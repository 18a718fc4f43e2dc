package domain

import (
	"time"

	"note-lifecycle-lab/internal/calendar"
)

// LastPriceInfo is the per-underlying snapshot written back after evaluation.
type LastPriceInfo struct {
	Price             float64       `json:"price"`
	Performance       float64       `json:"performance"`
	DistanceToBarrier float64       `json:"distance_to_barrier"`
	AsOf              calendar.Date `json:"as_of"`
	IsWorstOf         bool          `json:"is_worst_of"`
}

// UnderlyingSnapshot is the evaluator's view of one underlying.
type UnderlyingSnapshot struct {
	Ticker        string         `json:"ticker"`
	AdjustedLevel float64        `json:"adjusted_level"`
	Unadjusted    bool           `json:"unadjusted"`
	LastPriceInfo *LastPriceInfo `json:"last_price_info,omitempty"`
}

// ObservationResult is the outcome of one observation date.
type ObservationResult struct {
	Date              calendar.Date `json:"date"`
	BasketPerformance *float64      `json:"basket_performance"`
	BasketTicker      string        `json:"basket_ticker,omitempty"`
	CouponBarrier     float64       `json:"coupon_barrier"`
	CouponCleared     bool          `json:"coupon_cleared"`
	CouponPaid        float64       `json:"coupon_paid"`
	MissedCoupons     int           `json:"missed_coupons"`
	AutocallLevel     *float64      `json:"autocall_level,omitempty"`
	Autocalled        bool          `json:"autocalled"`
	LockedUnderlyings []string      `json:"locked_underlyings,omitempty"`
	DataGap           bool          `json:"data_gap,omitempty"`
}

// ChartPoint is one calendar day of the basis-100 chart.
type ChartPoint struct {
	Date                     calendar.Date       `json:"date"`
	Values                   map[string]*float64 `json:"values"`
	WorstOf                  *float64            `json:"worst_of"`
	CouponBarrier            float64             `json:"coupon_barrier"`
	AutocallBarrier          *float64            `json:"autocall_barrier,omitempty"`
	CapitalProtectionBarrier float64             `json:"capital_protection_barrier"`
}

// EvaluationResult is the outcome of one full observation walk.
type EvaluationResult struct {
	ISIN                 string               `json:"isin"`
	AsOf                 calendar.Date        `json:"as_of"`
	Status               Status               `json:"status"`
	Observations         []ObservationResult  `json:"observations"`
	AutocallDate         calendar.Date        `json:"autocall_date,omitempty"`
	CumulativeCoupon     float64              `json:"cumulative_coupon"`
	CapitalRedemption    *float64             `json:"capital_redemption,omitempty"`
	IndicativeRedemption *float64             `json:"indicative_redemption,omitempty"`
	PnL                  *float64             `json:"pnl,omitempty"`
	Underlyings          []UnderlyingSnapshot `json:"underlyings"`
	Chart                []ChartPoint         `json:"chart,omitempty"`
	Warnings             []string             `json:"warnings,omitempty"`
}

// EvaluationRecord is a persisted evaluation result.
// Corresponds to the evaluation_results table in PostgreSQL.
type EvaluationRecord struct {
	ISIN        string
	RunID       string
	Fingerprint string
	EvaluatedAt time.Time
	Result      *EvaluationResult
}
