package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"note-lifecycle-lab/internal/app"
	"note-lifecycle-lab/internal/calendar"
	"note-lifecycle-lab/internal/reporting"
)

func newEvaluateCmd(c *cli) *cobra.Command {
	var (
		asOf   string
		format string
	)

	cmd := &cobra.Command{
		Use:   "evaluate <isin>",
		Short: "Evaluate one product and persist the result",
		Long: `Evaluate one product as of a date, persist the evaluation and print it.

Formats:
  json          full evaluation result (default)
  observations  observation table as CSV
  chart         daily basis-100 chart series as CSV

Examples:
  notectl evaluate XS0000000001 --as-of 2024-08-01
  notectl --use-memory --fixtures ./fixtures evaluate XS0000000001 -f chart`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseAsOf(asOf)
			if err != nil {
				return err
			}
			if err := c.setup(cmd); err != nil {
				return err
			}

			orch := app.NewOrchestrator(c.cfg, c.stores, app.NewPriceLoader(c.cfg, c.stores), nil, c.logger)
			result, err := orch.EvaluateOne(cmd.Context(), args[0], date)
			if err != nil {
				return fmt.Errorf("evaluate %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			case "observations":
				_, err = fmt.Fprint(out, reporting.RenderObservationsCSV(result))
				return err
			case "chart":
				_, err = fmt.Fprint(out, reporting.RenderChartCSV(result.Chart, nil))
				return err
			default:
				return fmt.Errorf("unknown format %q", format)
			}
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "evaluation date YYYY-MM-DD (default today)")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json, observations, chart")
	return cmd
}

// parseAsOf returns the zero Date for empty input, which callers read as today.
func parseAsOf(s string) (calendar.Date, error) {
	if s == "" {
		return calendar.Date{}, nil
	}
	d, err := calendar.Parse(s)
	if err != nil {
		return calendar.Date{}, fmt.Errorf("--as-of: %w", err)
	}
	return d, nil
}
