package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLoadCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "load <dir>",
		Short: "Load products.yaml and price CSVs into the stores",
		Long: `Load dir/products.yaml, dir/prices.csv and dir/prices/*.csv.
Products whose ISIN is already stored and price points already present are
skipped, so loading the same directory twice is harmless.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup(cmd); err != nil {
				return err
			}
			stats, err := c.loadFixtures(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Products: %d inserted, %d skipped\n", stats.ProductsInserted, stats.ProductsSkipped)
			fmt.Fprintf(out, "Prices:   %d inserted, %d skipped\n", stats.PricesInserted, stats.PricesSkipped)
			return nil
		},
	}
}
