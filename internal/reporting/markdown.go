package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Note Lifecycle Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Products: %d\n\n", r.ProductCount))

	// Last run
	sb.WriteString("## Last Run\n\n")
	if r.LastRun != nil {
		run := r.LastRun
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Run ID | %s |\n", run.RunID))
		sb.WriteString(fmt.Sprintf("| As Of | %s |\n", run.AsOf))
		sb.WriteString(fmt.Sprintf("| Started | %s |\n", run.StartedAt.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("| Duration | %s |\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond)))
		sb.WriteString(fmt.Sprintf("| Evaluated | %d |\n", run.Evaluated))
		sb.WriteString(fmt.Sprintf("| Failed | %d |\n", run.Failed))
		sb.WriteString("\n")

		if len(run.Errors) > 0 {
			sb.WriteString("### Failed Products\n\n")
			for _, e := range run.Errors {
				sb.WriteString(fmt.Sprintf("- %s\n", e))
			}
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString("No batch run recorded.\n\n")
	}

	// Status breakdown
	sb.WriteString("## Status\n\n")
	if len(r.StatusCounts) > 0 {
		sb.WriteString("| Status | Products |\n")
		sb.WriteString("|--------|----------|\n")
		for _, s := range r.StatusCounts {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", s.Status, s.Count))
		}
	} else {
		sb.WriteString("No evaluations available.\n")
	}
	sb.WriteString("\n")

	// Products
	sb.WriteString("## Products\n\n")
	if len(r.Products) > 0 {
		sb.WriteString("| ISIN | Template | Status | As Of | Autocall | Coupon | Indicative | Capital | PnL | Worst | Worst Perf | Distance |\n")
		sb.WriteString("|------|----------|--------|-------|----------|--------|------------|---------|-----|-------|------------|----------|\n")
		for _, p := range r.Products {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
				p.ISIN, p.Template, p.Status, p.AsOf, orDash(p.AutocallDate.String()),
				formatPercent(p.CumulativeCoupon),
				orDash(formatPercentPtr(p.IndicativeRedemption)),
				orDash(formatPercentPtr(p.CapitalRedemption)),
				orDash(formatPercentPtr(p.PnL)),
				orDash(p.WorstTicker),
				orDash(formatPercentPtr(p.WorstPerformance)),
				orDash(formatPercentPtr(p.DistanceToBarrier))))
		}
	} else {
		sb.WriteString("No products evaluated.\n")
	}
	sb.WriteString("\n")

	// Warnings
	if len(r.Warnings) > 0 {
		sb.WriteString("## Warnings\n\n")
		for _, w := range r.Warnings {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", w.ISIN, w.Message))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
