package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"note-lifecycle-lab/internal/app"
)

func newBatchCmd(c *cli) *cobra.Command {
	var (
		asOf        string
		failOnError bool
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Re-evaluate every active product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseAsOf(asOf)
			if err != nil {
				return err
			}
			if err := c.setup(cmd); err != nil {
				return err
			}

			orch := app.NewOrchestrator(c.cfg, c.stores, app.NewPriceLoader(c.cfg, c.stores), nil, c.logger)
			result, err := orch.Run(cmd.Context(), date)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s as of %s\n", result.RunID, result.AsOf)
			fmt.Fprintf(out, "  Active:    %d\n", result.Products)
			fmt.Fprintf(out, "  Evaluated: %d\n", result.Evaluated)
			fmt.Fprintf(out, "  Failed:    %d\n", result.Failed())
			for _, pe := range result.Errors {
				fmt.Fprintf(out, "    %s [%s] %v\n", pe.ISIN, pe.Kind(), pe.Err)
			}

			if failOnError && result.Failed() > 0 {
				return fmt.Errorf("%d of %d products failed", result.Failed(), result.Products)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "evaluation date YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&failOnError, "fail-on-error", false, "exit non-zero when any product fails")
	return cmd
}
