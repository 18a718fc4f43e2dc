package payoff

import (
	"errors"
	"fmt"
	"sort"

	"note-lifecycle-lab/internal/calendar"
	"note-lifecycle-lab/internal/chart"
	"note-lifecycle-lab/internal/domain"
	"note-lifecycle-lab/internal/lookup"
)

// DefaultMaxStaleDays is how old an observation price may be before the
// underlying counts as unpriced on that date.
const DefaultMaxStaleDays = 5

// PriceSource provides ascending daily series per ticker.
type PriceSource interface {
	Series(ticker string) []*domain.PricePoint
}

// Snapshot is an in-memory PriceSource.
type Snapshot map[string][]*domain.PricePoint

// Series implements PriceSource.
func (s Snapshot) Series(ticker string) []*domain.PricePoint { return s[ticker] }

// Options configures an Evaluator.
type Options struct {
	// MaxStaleDays bounds forward-fill on observation dates.
	// 0 selects DefaultMaxStaleDays; negative disables the bound.
	MaxStaleDays int
	Trace        TraceSink
	SkipChart    bool
}

// Evaluator evaluates products. It holds no per-product state and is safe
// for concurrent use.
type Evaluator struct {
	maxStale  int
	trace     TraceSink
	skipChart bool
}

// NewEvaluator creates an evaluator.
func NewEvaluator(opts Options) *Evaluator {
	maxStale := opts.MaxStaleDays
	if maxStale == 0 {
		maxStale = DefaultMaxStaleDays
	}
	return &Evaluator{maxStale: maxStale, trace: opts.Trace, skipChart: opts.SkipChart}
}

// Evaluate walks a product with default options.
func Evaluate(p *domain.Product, prices PriceSource, asOf calendar.Date) (*domain.EvaluationResult, error) {
	return NewEvaluator(Options{}).Evaluate(p, prices, asOf)
}

// Evaluate walks p's observation schedule against prices as of asOf (zero
// means today). It does not modify p; use ApplyResult to write back.
// Prices dated after asOf are ignored.
func (e *Evaluator) Evaluate(p *domain.Product, prices PriceSource, asOf calendar.Date) (*domain.EvaluationResult, error) {
	if asOf.IsZero() {
		asOf = calendar.Today()
	}
	if err := p.ValidateTerms(); err != nil {
		return nil, err
	}
	if err := ValidateSchedule(p); err != nil {
		return nil, err
	}

	result := &domain.EvaluationResult{
		ISIN:   p.ISIN,
		AsOf:   asOf,
		Status: domain.StatusPending,
	}

	series := snapshotSeries(p, prices, asOf)
	bases := make(map[string]float64, len(p.Underlyings))
	unadjusted := make(map[string]bool, len(p.Underlyings))
	for _, u := range p.Underlyings {
		if len(series[u.Ticker]) == 0 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: no price history", u.Ticker))
		}
		if u.AdjustedLevel > 0 && !u.Unadjusted {
			bases[u.Ticker] = u.AdjustedLevel
			continue
		}
		adj, err := AdjustReferenceLevel(u.Ticker, u.InitialLevel, p.TradeDate, series[u.Ticker])
		if err != nil {
			result.Warnings = append(result.Warnings, err.Error())
		}
		bases[u.Ticker] = adj.Level
		unadjusted[u.Ticker] = !adj.Adjusted
	}

	walker := NewWalker(p, series, bases, e.maxStale, e.trace)
	outcome, err := walker.Walk(asOf)
	if err != nil {
		return nil, err
	}
	result.Status = outcome.Status
	result.Observations = outcome.Observations
	result.CumulativeCoupon = outcome.CumulativeCoupon
	result.AutocallDate = outcome.AutocallDate
	for _, o := range outcome.Observations {
		if o.DataGap {
			result.Warnings = append(result.Warnings, fmt.Sprintf("data gap on %s", o.Date))
		}
	}

	// Snapshot date: the terminal date once terminal, else asOf.
	snapshotDate := asOf
	in := RedemptionInput{
		Template:                 p.Template,
		Features:                 p.Features,
		CapitalProtectionBarrier: p.CapitalProtectionBarrier,
		Participation:            p.Participation(),
	}
	switch outcome.Status {
	case domain.StatusAutocalled:
		snapshotDate = outcome.AutocallDate
		in.Mode, in.Autocalled, in.Performances = ModeFinal, true, outcome.AutocallPerformances
	case domain.StatusMatured:
		snapshotDate = p.FinalObservationDate
		in.Mode = ModeFinal
		in.Performances = PerformancesAt(p, series, bases, snapshotDate, e.maxStale)
	default:
		in.Mode = ModeIndicative
		in.Performances = PerformancesAt(p, series, bases, snapshotDate, -1)
	}

	var red *Redemption
	if outcome.Status != domain.StatusPending {
		red = Redeem(in)
	}
	if red == nil && in.Mode == ModeFinal {
		return nil, &MissingPriceDataError{ISIN: p.ISIN, Date: snapshotDate, Tickers: p.Tickers()}
	}
	if red != nil {
		pct := red.Percent
		result.IndicativeRedemption = &pct
		if in.Mode == ModeFinal {
			final := red.Percent
			result.CapitalRedemption = &final
			pnl := final - 100 + result.CumulativeCoupon
			result.PnL = &pnl
		}
	}

	result.Underlyings = snapshotUnderlyings(p, series, bases, unadjusted, snapshotDate)

	if !e.skipChart {
		result.Chart = chart.Build(chart.Input{
			Product:      p,
			Series:       series,
			Bases:        bases,
			Today:        asOf,
			AutocallDate: outcome.AutocallDate,
		})
	}
	return result, nil
}

// ValidateSchedule checks date ordering. Violations are *InvalidScheduleError.
func ValidateSchedule(p *domain.Product) error {
	fail := func(format string, args ...any) error {
		return &InvalidScheduleError{ISIN: p.ISIN, Reason: fmt.Sprintf(format, args...)}
	}
	if p.TradeDate.IsZero() {
		return fail("missing trade date")
	}
	if p.FinalObservationDate.IsZero() {
		return fail("missing final observation date")
	}
	if !p.FinalObservationDate.After(p.TradeDate) {
		return fail("final observation %s not after trade date %s", p.FinalObservationDate, p.TradeDate)
	}
	if !p.MaturityDate.IsZero() && p.MaturityDate.Before(p.FinalObservationDate) {
		return fail("maturity %s before final observation %s", p.MaturityDate, p.FinalObservationDate)
	}
	if len(p.Observations) == 0 {
		return fail("empty observation schedule")
	}
	dates := make([]calendar.Date, len(p.Observations))
	for i, o := range p.Observations {
		dates[i] = o.Date
		if o.AutocallLevel != nil && *o.AutocallLevel <= 0 {
			return fail("autocall level on %s must be positive", o.Date)
		}
	}
	if _, err := calendar.CheckStrictlyIncreasing(dates); err != nil {
		return fail("observations: %v", err)
	}
	if !dates[0].After(p.TradeDate) {
		return fail("observation %s not after trade date %s", dates[0], p.TradeDate)
	}
	if dates[len(dates)-1].After(p.FinalObservationDate) {
		return fail("observation %s after final observation %s", dates[len(dates)-1], p.FinalObservationDate)
	}
	if !p.AutocallDate.IsZero() && p.AutocallDate.Before(p.TradeDate) {
		return fail("autocall date %s before trade date %s", p.AutocallDate, p.TradeDate)
	}
	return nil
}

// snapshotSeries reads each ticker once, drops points after asOf and
// returns ascending copies.
func snapshotSeries(p *domain.Product, prices PriceSource, asOf calendar.Date) map[string][]*domain.PricePoint {
	out := make(map[string][]*domain.PricePoint, len(p.Underlyings))
	for _, u := range p.Underlyings {
		raw := prices.Series(u.Ticker)
		s := make([]*domain.PricePoint, 0, len(raw))
		for _, pt := range raw {
			if pt != nil && !pt.Date.After(asOf) {
				s = append(s, pt)
			}
		}
		sort.SliceStable(s, func(i, j int) bool { return s[i].Date.Before(s[j].Date) })
		out[u.Ticker] = s
	}
	return out
}

func snapshotUnderlyings(p *domain.Product, series map[string][]*domain.PricePoint, bases map[string]float64, unadjusted map[string]bool, date calendar.Date) []domain.UnderlyingSnapshot {
	out := make([]domain.UnderlyingSnapshot, len(p.Underlyings))
	worstIdx := -1
	var worst float64
	for i, u := range p.Underlyings {
		base := bases[u.Ticker]
		out[i] = domain.UnderlyingSnapshot{
			Ticker:        u.Ticker,
			AdjustedLevel: base,
			Unadjusted:    unadjusted[u.Ticker],
		}
		pt, err := lookup.AtOrBefore(date, series[u.Ticker])
		if errors.Is(err, lookup.ErrNoPriceData) {
			continue
		}
		perf := Performance(pt.Level(), base)
		out[i].LastPriceInfo = &domain.LastPriceInfo{
			Price:             pt.Level(),
			Performance:       perf,
			DistanceToBarrier: perf - (p.CapitalProtectionBarrier - 100),
			AsOf:              pt.Date,
		}
		if worstIdx < 0 || perf < worst {
			worstIdx, worst = i, perf
		}
	}
	if worstIdx >= 0 {
		out[worstIdx].LastPriceInfo.IsWorstOf = true
	}
	return out
}

// ApplyResult writes the computed fields of r back onto p. Terminal states
// are never overwritten by a non-terminal result.
func ApplyResult(p *domain.Product, r *domain.EvaluationResult) {
	if !p.Status.Terminal() || r.Status.Terminal() {
		p.Status = r.Status
		p.AutocallDate = r.AutocallDate
	}
	byTicker := make(map[string]domain.UnderlyingSnapshot, len(r.Underlyings))
	for _, s := range r.Underlyings {
		byTicker[s.Ticker] = s
	}
	for i := range p.Underlyings {
		s, ok := byTicker[p.Underlyings[i].Ticker]
		if !ok {
			continue
		}
		p.Underlyings[i].AdjustedLevel = s.AdjustedLevel
		p.Underlyings[i].Unadjusted = s.Unadjusted
		if s.LastPriceInfo != nil {
			info := *s.LastPriceInfo
			p.Underlyings[i].LastPriceInfo = &info
		}
	}
}
