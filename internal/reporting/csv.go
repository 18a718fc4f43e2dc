package reporting

import (
	"encoding/csv"
	"sort"
	"strconv"
	"strings"

	"note-lifecycle-lab/internal/domain"
)

// RenderObservationsCSV renders the observation table of one evaluation.
func RenderObservationsCSV(r *domain.EvaluationResult) string {
	rows := [][]string{{
		"isin", "date", "basket_ticker", "basket_performance", "coupon_barrier",
		"coupon_cleared", "coupon_paid", "missed_coupons", "autocall_level",
		"autocalled", "locked_underlyings", "data_gap",
	}}
	for _, o := range r.Observations {
		rows = append(rows, []string{
			r.ISIN,
			o.Date.String(),
			o.BasketTicker,
			formatPercentPtr(o.BasketPerformance),
			formatPercent(o.CouponBarrier),
			strconv.FormatBool(o.CouponCleared),
			formatPercent(o.CouponPaid),
			strconv.Itoa(o.MissedCoupons),
			formatPercentPtr(o.AutocallLevel),
			strconv.FormatBool(o.Autocalled),
			strings.Join(o.LockedUnderlyings, ";"),
			strconv.FormatBool(o.DataGap),
		})
	}
	return writeCSV(rows)
}

// RenderChartCSV renders the chart series, one column per ticker in the
// order given. Empty cells mark days without a value.
func RenderChartCSV(points []domain.ChartPoint, tickers []string) string {
	if tickers == nil && len(points) > 0 {
		for t := range points[0].Values {
			tickers = append(tickers, t)
		}
		sort.Strings(tickers)
	}

	header := append([]string{"date"}, tickers...)
	header = append(header, "worst_of", "coupon_barrier", "autocall_barrier", "capital_protection_barrier")
	rows := [][]string{header}

	for _, p := range points {
		row := []string{p.Date.String()}
		for _, t := range tickers {
			row = append(row, formatPercentPtr(p.Values[t]))
		}
		row = append(row,
			formatPercentPtr(p.WorstOf),
			formatPercent(p.CouponBarrier),
			formatPercentPtr(p.AutocallBarrier),
			formatPercent(p.CapitalProtectionBarrier),
		)
		rows = append(rows, row)
	}
	return writeCSV(rows)
}

// RenderProductsCSV renders the per-product summary rows.
func RenderProductsCSV(products []ProductRow) string {
	rows := [][]string{{
		"isin", "template", "status", "as_of", "autocall_date", "cumulative_coupon",
		"indicative_redemption", "capital_redemption", "pnl", "worst_ticker",
		"worst_performance", "distance_to_barrier",
	}}
	for _, p := range products {
		rows = append(rows, []string{
			p.ISIN,
			string(p.Template),
			string(p.Status),
			p.AsOf.String(),
			p.AutocallDate.String(),
			formatPercent(p.CumulativeCoupon),
			formatPercentPtr(p.IndicativeRedemption),
			formatPercentPtr(p.CapitalRedemption),
			formatPercentPtr(p.PnL),
			p.WorstTicker,
			formatPercentPtr(p.WorstPerformance),
			formatPercentPtr(p.DistanceToBarrier),
		})
	}
	return writeCSV(rows)
}

func writeCSV(rows [][]string) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	// strings.Builder never fails; WriteAll only reports writer errors.
	_ = w.WriteAll(rows)
	return sb.String()
}
