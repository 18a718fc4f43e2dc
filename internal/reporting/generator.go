package reporting

import (
	"context"
	"errors"
	"sort"
	"time"

	"note-lifecycle-lab/internal/domain"
	"note-lifecycle-lab/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	productStore    storage.ProductStore
	evaluationStore storage.EvaluationStore
	runStore        storage.RunStore // optional
	now             func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. runStore may be nil.
func NewGenerator(
	productStore storage.ProductStore,
	evaluationStore storage.EvaluationStore,
	runStore storage.RunStore,
) *Generator {
	return &Generator{
		productStore:    productStore,
		evaluationStore: evaluationStore,
		runStore:        runStore,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a complete report.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	records, err := g.evaluationStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	lastRun, err := g.lastRun(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]ProductRow, 0, len(records))
	var warnings []WarningRow
	counts := make(map[domain.Status]int)

	for _, rec := range records {
		product, err := g.productStore.GetByISIN(ctx, rec.ISIN)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		rows = append(rows, productRow(product, rec))
		counts[rec.Result.Status]++
		for _, w := range rec.Result.Warnings {
			warnings = append(warnings, WarningRow{ISIN: rec.ISIN, Message: w})
		}
	}

	return &Report{
		GeneratedAt:  g.now(),
		ProductCount: len(rows),
		LastRun:      lastRun,
		StatusCounts: statusCounts(counts),
		Products:     rows,
		Warnings:     warnings,
	}, nil
}

func (g *Generator) lastRun(ctx context.Context) (*RunSummary, error) {
	if g.runStore == nil {
		return nil, nil
	}
	run, err := g.runStore.GetLatest(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &RunSummary{
		RunID:      run.RunID,
		AsOf:       run.AsOf,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Evaluated:  run.Evaluated,
		Failed:     run.Failed,
		Errors:     run.Errors,
	}, nil
}

// productRow builds a summary row. product may be nil when it was removed
// after evaluation.
func productRow(product *domain.Product, rec *domain.EvaluationRecord) ProductRow {
	res := rec.Result
	row := ProductRow{
		ISIN:                 rec.ISIN,
		Status:               res.Status,
		AsOf:                 res.AsOf,
		AutocallDate:         res.AutocallDate,
		CumulativeCoupon:     res.CumulativeCoupon,
		IndicativeRedemption: res.IndicativeRedemption,
		CapitalRedemption:    res.CapitalRedemption,
		PnL:                  res.PnL,
		Fingerprint:          rec.Fingerprint,
	}
	if product != nil {
		row.Name = product.Name
		row.Template = product.Template
	}
	for _, u := range res.Underlyings {
		if u.LastPriceInfo == nil || !u.LastPriceInfo.IsWorstOf {
			continue
		}
		perf := u.LastPriceInfo.Performance
		dist := u.LastPriceInfo.DistanceToBarrier
		row.WorstTicker = u.Ticker
		row.WorstPerformance = &perf
		row.DistanceToBarrier = &dist
		break
	}
	return row
}

// statusCounts returns counts in lifecycle order, omitting empty statuses.
func statusCounts(counts map[domain.Status]int) []StatusCountRow {
	order := []domain.Status{
		domain.StatusPending, domain.StatusLive, domain.StatusAutocalled, domain.StatusMatured,
	}
	var out []StatusCountRow
	for _, s := range order {
		if n := counts[s]; n > 0 {
			out = append(out, StatusCountRow{Status: s, Count: n})
			delete(counts, s)
		}
	}
	// Unknown statuses from older records sort after the known ones.
	var rest []domain.Status
	for s := range counts {
		rest = append(rest, s)
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	for _, s := range rest {
		out = append(out, StatusCountRow{Status: s, Count: counts[s]})
	}
	return out
}
