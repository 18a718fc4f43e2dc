package reporting

import (
	"time"

	"note-lifecycle-lab/internal/calendar"
	"note-lifecycle-lab/internal/domain"
)

// Report is the portfolio summary of stored evaluations.
type Report struct {
	// Metadata
	GeneratedAt  time.Time
	ProductCount int

	// Last batch run, nil if none recorded
	LastRun *RunSummary

	// Counts per lifecycle status
	StatusCounts []StatusCountRow

	// One row per product (sorted by ISIN)
	Products []ProductRow

	// Evaluation warnings (data gaps, unadjusted references)
	Warnings []WarningRow
}

// RunSummary describes the most recent batch run.
type RunSummary struct {
	RunID      string
	AsOf       calendar.Date
	StartedAt  time.Time
	FinishedAt time.Time
	Evaluated  int
	Failed     int
	Errors     []string
}

// StatusCountRow counts products in one status.
type StatusCountRow struct {
	Status domain.Status
	Count  int
}

// ProductRow summarizes one product's latest evaluation.
type ProductRow struct {
	ISIN                 string
	Name                 string
	Template             domain.Template
	Status               domain.Status
	AsOf                 calendar.Date
	AutocallDate         calendar.Date
	CumulativeCoupon     float64
	IndicativeRedemption *float64
	CapitalRedemption    *float64
	PnL                  *float64
	WorstTicker          string
	WorstPerformance     *float64
	DistanceToBarrier    *float64
	Fingerprint          string
}

// WarningRow is one evaluation warning.
type WarningRow struct {
	ISIN    string
	Message string
}
