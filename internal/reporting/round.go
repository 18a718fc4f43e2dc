package reporting

import "github.com/shopspring/decimal"

// percentPlaces is the number of decimals used for every percentage.
const percentPlaces = 2

// formatPercent rounds half away from zero to two decimals.
func formatPercent(v float64) string {
	return decimal.NewFromFloat(v).Round(percentPlaces).StringFixed(percentPlaces)
}

// formatPercentPtr formats an optional percentage; nil renders as empty.
func formatPercentPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatPercent(*v)
}

// orDash replaces an empty cell with "-" for Markdown tables.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
