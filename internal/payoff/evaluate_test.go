package payoff

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"note-lifecycle-lab/internal/calendar"
	"note-lifecycle-lab/internal/domain"
)

func TestEvaluate_CouponMemoryPaysMissedCoupons(t *testing.T) {
	p := quarterlyNote()
	p.Features.CouponMemory = true
	// BBB at -40, -35, then -10: two misses then a triple coupon.
	src := path([4]float64{100, 100, 100, 100}, [4]float64{30, 32.5, 45, 45})

	r, err := Evaluate(p, src, d("2024-10-15"))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusLive, r.Status)
	require.Len(t, r.Observations, 3)
	assert.Equal(t, []float64{0, 0, 6}, couponsPaid(r))
	assert.Equal(t, []int{1, 2, 0}, missed(r))
	assert.InDelta(t, 6, r.CumulativeCoupon, 1e-9)
	assert.Equal(t, "BBB", r.Observations[2].BasketTicker)
	assert.Nil(t, r.CapitalRedemption)
	assert.Nil(t, r.PnL)
	require.NotNil(t, r.IndicativeRedemption)
	assert.InDelta(t, 100, *r.IndicativeRedemption, 1e-9)
}

func TestEvaluate_WithoutCouponMemoryMissesAreLost(t *testing.T) {
	p := quarterlyNote()
	src := path([4]float64{100, 100, 100, 100}, [4]float64{30, 32.5, 45, 45})

	r, err := Evaluate(p, src, d("2024-10-15"))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 2}, couponsPaid(r))
	assert.InDelta(t, 2, r.CumulativeCoupon, 1e-9)
}

func TestEvaluate_BarrierEqualityClears(t *testing.T) {
	p := quarterlyNote()
	// BBB exactly at 70% of initial.
	src := path([4]float64{100, 100, 100, 100}, [4]float64{35, 35, 35, 35})

	r, err := Evaluate(p, src, d("2024-04-02"))
	require.NoError(t, err)
	require.Len(t, r.Observations, 1)
	assert.True(t, r.Observations[0].CouponCleared)
	assert.InDelta(t, 2, r.Observations[0].CouponPaid, 1e-9)
}

func TestEvaluate_AutocallHaltsWalk(t *testing.T) {
	p := quarterlyNote()
	p.Observations[1].AutocallLevel = ptr(100)
	p.Observations[2].AutocallLevel = ptr(100)
	src := path([4]float64{105, 104, 90, 90}, [4]float64{55, 52, 40, 40})

	rec := &TraceRecorder{}
	r, err := NewEvaluator(Options{Trace: rec.Record}).Evaluate(p, src, d("2025-06-01"))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusAutocalled, r.Status)
	assert.Equal(t, d("2024-07-02"), r.AutocallDate)
	require.Len(t, r.Observations, 2)
	assert.True(t, r.Observations[1].Autocalled)
	require.NotNil(t, r.CapitalRedemption)
	assert.InDelta(t, 100, *r.CapitalRedemption, 1e-9)
	require.NotNil(t, r.PnL)
	assert.InDelta(t, 4, *r.PnL, 1e-9)

	events := rec.Events()
	require.Len(t, events, 2)
	assert.False(t, events[0].AutocallTested)
	assert.True(t, events[1].AutocallTested)
	assert.True(t, events[1].Autocalled)

	// Chart stops at the autocall date.
	require.NotEmpty(t, r.Chart)
	assert.Equal(t, d("2024-07-02"), r.Chart[len(r.Chart)-1].Date)
	assert.Equal(t, d("2024-07-02"), r.Underlyings[0].LastPriceInfo.AsOf)
}

func TestEvaluate_MemoryAutocallLocksPerName(t *testing.T) {
	build := func(memory bool) *domain.Product {
		p := quarterlyNote()
		p.Features.AutocallMemory = memory
		for i := range p.Observations {
			p.Observations[i].AutocallLevel = ptr(100)
		}
		return p
	}
	// AAA clears on obs 1 only, BBB on obs 2 only: basket never clears.
	src := path([4]float64{110, 95, 95, 95}, [4]float64{45, 55, 45, 45})

	r, err := Evaluate(build(true), src, d("2024-12-01"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAutocalled, r.Status)
	assert.Equal(t, d("2024-07-02"), r.AutocallDate)
	assert.Equal(t, []string{"AAA"}, r.Observations[0].LockedUnderlyings)
	assert.Equal(t, []string{"AAA", "BBB"}, r.Observations[1].LockedUnderlyings)

	r, err = Evaluate(build(false), src, d("2024-12-01"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLive, r.Status)
	assert.Len(t, r.Observations, 3)
	for _, o := range r.Observations {
		assert.False(t, o.Autocalled)
		assert.Empty(t, o.LockedUnderlyings)
	}
}

func TestEvaluate_MaturedBelowBarrier(t *testing.T) {
	src := path([4]float64{100, 100, 100, 60}, [4]float64{50, 50, 50, 50})

	t.Run("classic", func(t *testing.T) {
		r, err := Evaluate(quarterlyNote(), src, d("2025-02-01"))
		require.NoError(t, err)
		assert.Equal(t, domain.StatusMatured, r.Status)
		assert.Len(t, r.Observations, 4)
		require.NotNil(t, r.CapitalRedemption)
		assert.InDelta(t, 60, *r.CapitalRedemption, 1e-9)
		// Three coupons before the final miss.
		assert.InDelta(t, 6, r.CumulativeCoupon, 1e-9)
		assert.InDelta(t, -34, *r.PnL, 1e-9)
		assert.True(t, r.Underlyings[0].LastPriceInfo.IsWorstOf)
		assert.False(t, r.Underlyings[1].LastPriceInfo.IsWorstOf)
	})

	t.Run("low strike", func(t *testing.T) {
		p := quarterlyNote()
		p.Features.LowStrike = true
		r, err := Evaluate(p, src, d("2025-02-01"))
		require.NoError(t, err)
		assert.InDelta(t, 100-10/0.7, *r.CapitalRedemption, 1e-9)
	})

	t.Run("one star", func(t *testing.T) {
		p := quarterlyNote()
		p.Features.OneStar = true
		r, err := Evaluate(p, src, d("2025-02-01"))
		require.NoError(t, err)
		assert.InDelta(t, 100, *r.CapitalRedemption, 1e-9)
	})
}

func TestEvaluate_MissingFinalPrices(t *testing.T) {
	src := prices(map[string]map[string]float64{
		"AAA": {"2024-01-02": 100, "2024-04-02": 100},
		"BBB": {"2024-01-02": 50, "2024-04-02": 50},
	})

	_, err := Evaluate(quarterlyNote(), src, d("2025-02-01"))
	require.Error(t, err)
	var missing *MissingPriceDataError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, d("2025-01-02"), missing.Date)
	assert.ErrorIs(t, err, ErrMissingPriceData)
}

func TestEvaluate_IntermediateDataGap(t *testing.T) {
	p := quarterlyNote()
	p.Features.CouponMemory = true
	// Nothing within the staleness window around the first observation.
	src := prices(map[string]map[string]float64{
		"AAA": {"2024-01-02": 100, "2024-07-02": 100},
		"BBB": {"2024-01-02": 50, "2024-07-02": 50},
	})

	r, err := Evaluate(p, src, d("2024-08-01"))
	require.NoError(t, err)
	require.Len(t, r.Observations, 2)

	gap := r.Observations[0]
	assert.True(t, gap.DataGap)
	assert.Nil(t, gap.BasketPerformance)
	assert.Zero(t, gap.CouponPaid)
	assert.Zero(t, gap.MissedCoupons)
	assert.InDelta(t, 2, r.Observations[1].CouponPaid, 1e-9)
	assert.Contains(t, r.Warnings, "data gap on 2024-04-02")
}

func TestEvaluate_StalePriceWithinWindow(t *testing.T) {
	p := quarterlyNote()
	// Last print three days before the observation still counts.
	src := prices(map[string]map[string]float64{
		"AAA": {"2024-01-02": 100, "2024-03-30": 100},
		"BBB": {"2024-01-02": 50, "2024-03-30": 50},
	})
	r, err := Evaluate(p, src, d("2024-04-10"))
	require.NoError(t, err)
	assert.False(t, r.Observations[0].DataGap)

	r, err = NewEvaluator(Options{MaxStaleDays: 2}).Evaluate(p, src, d("2024-04-10"))
	require.NoError(t, err)
	assert.True(t, r.Observations[0].DataGap)
}

func TestEvaluate_Pending(t *testing.T) {
	src := path([4]float64{100, 100, 100, 100}, [4]float64{50, 50, 50, 50})
	r, err := Evaluate(quarterlyNote(), src, d("2024-02-01"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, r.Status)
	assert.Empty(t, r.Observations)
	assert.Nil(t, r.CapitalRedemption)
	assert.Nil(t, r.IndicativeRedemption)
}

func TestEvaluate_InvalidSchedule(t *testing.T) {
	tests := map[string]func(p *domain.Product){
		"unordered": func(p *domain.Product) {
			p.Observations[1].Date, p.Observations[2].Date = p.Observations[2].Date, p.Observations[1].Date
		},
		"duplicate": func(p *domain.Product) { p.Observations[1].Date = p.Observations[0].Date },
		"before trade date": func(p *domain.Product) {
			p.Observations[0].Date = d("2023-12-01")
		},
		"after final observation": func(p *domain.Product) {
			p.Observations[3].Date = d("2025-02-01")
		},
		"maturity before final": func(p *domain.Product) { p.MaturityDate = d("2024-12-01") },
		"missing trade date":    func(p *domain.Product) { p.TradeDate = calendar.Date{} },
		"empty schedule":        func(p *domain.Product) { p.Observations = nil },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			p := quarterlyNote()
			mutate(p)
			_, err := Evaluate(p, Snapshot{}, d("2024-06-01"))
			var invalid *InvalidScheduleError
			require.True(t, errors.As(err, &invalid), "got %v", err)
			assert.ErrorIs(t, err, ErrInvalidSchedule)
		})
	}
}

func TestEvaluate_InvalidTerms(t *testing.T) {
	p := quarterlyNote()
	p.Template = domain.TemplateTwinBarrier
	p.Features.CouponMemory = true
	_, err := Evaluate(p, Snapshot{}, d("2024-06-01"))
	assert.ErrorIs(t, err, domain.ErrIncompatibleFeature)
}

func TestEvaluate_TemplateAliasIsNotEvaluated(t *testing.T) {
	src := path([4]float64{100, 100, 100, 90}, [4]float64{50, 50, 50, 50})

	p := quarterlyNote()
	p.Template = domain.Template("twinwin")
	_, err := Evaluate(p, src, d("2025-02-01"))
	assert.ErrorIs(t, err, domain.ErrUnknownTemplate)

	p.Template, err = domain.ParseTemplate("twinwin")
	require.NoError(t, err)
	r, err := Evaluate(p, src, d("2025-02-01"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusMatured, r.Status)
	require.NotNil(t, r.CapitalRedemption)
	assert.InDelta(t, 110, *r.CapitalRedemption, 1e-9)
}

func TestEvaluate_ReferenceAdjustment(t *testing.T) {
	p := quarterlyNote()
	// AAA split 2:1 after trade; the feed back-adjusts history.
	src := path([4]float64{50, 50, 50, 50}, [4]float64{50, 50, 50, 50})
	for _, pt := range src["AAA"] {
		if pt.Date == d("2024-01-02") {
			pt.AdjustedClose = 50
		}
	}

	r, err := Evaluate(p, src, d("2024-04-02"))
	require.NoError(t, err)
	assert.InDelta(t, 50, r.Underlyings[0].AdjustedLevel, 1e-9)
	assert.False(t, r.Underlyings[0].Unadjusted)
	assert.InDelta(t, 0, *r.Observations[0].BasketPerformance, 1e-9)
}

func TestEvaluate_UnadjustedWarning(t *testing.T) {
	src := prices(map[string]map[string]float64{
		"AAA": {"2024-04-02": 100},
		"BBB": {"2024-01-02": 50, "2024-04-02": 50},
	})
	r, err := Evaluate(quarterlyNote(), src, d("2024-04-02"))
	require.NoError(t, err)
	assert.True(t, r.Underlyings[0].Unadjusted)
	assert.False(t, r.Underlyings[1].Unadjusted)
	assert.NotEmpty(t, r.Warnings)
}

func TestEvaluate_IgnoresFuturePrices(t *testing.T) {
	p := quarterlyNote()
	src := path([4]float64{100, 100, 100, 100}, [4]float64{50, 50, 50, 50})
	base, err := Evaluate(p, src, d("2024-05-01"))
	require.NoError(t, err)

	src["AAA"] = append(src["AAA"], &domain.PricePoint{Ticker: "AAA", Date: d("2024-05-02"), Close: 10, AdjustedClose: 10})
	again, err := Evaluate(p, src, d("2024-05-01"))
	require.NoError(t, err)
	assert.Equal(t, base, again)
}

func TestEvaluate_DeterministicAndPure(t *testing.T) {
	p := quarterlyNote()
	p.Features.CouponMemory = true
	p.Observations[1].AutocallLevel = ptr(100)
	src := path([4]float64{90, 99, 110, 110}, [4]float64{30, 49, 56, 56})
	before := p.Clone()

	first, err := Evaluate(p, src, d("2025-03-01"))
	require.NoError(t, err)
	second, err := Evaluate(p, src, d("2025-03-01"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, before, p)
}

func TestEvaluate_StatusIsMonotone(t *testing.T) {
	p := quarterlyNote()
	p.Observations[2].AutocallLevel = ptr(100)
	src := path([4]float64{90, 95, 101, 80}, [4]float64{40, 45, 51, 30})

	var (
		prev      domain.Status
		prevObs   int
		terminal  *domain.EvaluationResult
		evaluator = NewEvaluator(Options{SkipChart: true})
	)
	calendar.Range(d("2024-01-02"), d("2025-03-01"), func(asOf calendar.Date) {
		r, err := evaluator.Evaluate(p, src, asOf)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(r.Observations), prevObs)
		if prev.Terminal() {
			assert.Equal(t, prev, r.Status, "status regressed on %s", asOf)
			assert.Equal(t, terminal.AutocallDate, r.AutocallDate)
			assert.Equal(t, terminal.CapitalRedemption, r.CapitalRedemption)
			assert.Equal(t, terminal.Observations, r.Observations)
		} else if r.Status.Terminal() {
			terminal = r
		}
		prev, prevObs = r.Status, len(r.Observations)
	})
	assert.Equal(t, domain.StatusAutocalled, prev)
	assert.Equal(t, d("2024-10-02"), terminal.AutocallDate)
}

func TestApplyResult(t *testing.T) {
	p := quarterlyNote()
	p.Observations[0].AutocallLevel = ptr(100)
	src := path([4]float64{105, 100, 100, 100}, [4]float64{55, 50, 50, 50})

	r, err := Evaluate(p, src, d("2024-05-01"))
	require.NoError(t, err)
	ApplyResult(p, r)

	assert.Equal(t, domain.StatusAutocalled, p.Status)
	assert.Equal(t, d("2024-04-02"), p.AutocallDate)
	assert.InDelta(t, 100, p.Underlyings[0].AdjustedLevel, 1e-9)
	require.NotNil(t, p.Underlyings[1].LastPriceInfo)
	assert.InDelta(t, 10, p.Underlyings[1].LastPriceInfo.Performance, 1e-9)

	// A later non-terminal result cannot undo the terminal state.
	ApplyResult(p, &domain.EvaluationResult{Status: domain.StatusLive})
	assert.Equal(t, domain.StatusAutocalled, p.Status)
}

func couponsPaid(r *domain.EvaluationResult) []float64 {
	out := make([]float64, len(r.Observations))
	for i, o := range r.Observations {
		out[i] = o.CouponPaid
	}
	return out
}

func missed(r *domain.EvaluationResult) []int {
	out := make([]int, len(r.Observations))
	for i, o := range r.Observations {
		out[i] = o.MissedCoupons
	}
	return out
}
