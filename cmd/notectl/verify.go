package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"note-lifecycle-lab/internal/app"
	"note-lifecycle-lab/internal/verification"
)

func newVerifyCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [isin]",
		Short: "Re-evaluate stored results and report divergences",
		Long: `Re-evaluate stored evaluations at their recorded as-of date and compare
them field by field, plus fingerprint, with what is persisted. With no ISIN
every stored evaluation is checked. Exits non-zero on any divergence.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup(cmd); err != nil {
				return err
			}
			v := app.NewVerifier(c.cfg, c.stores, app.NewPriceLoader(c.cfg, c.stores))
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				result, err := v.VerifyProduct(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printVerification(out, result)
				if !result.Match {
					return fmt.Errorf("%s diverges from its stored evaluation", args[0])
				}
				return nil
			}

			report, err := v.VerifyAll(cmd.Context())
			if err != nil {
				return err
			}
			for i := range report.Results {
				printVerification(out, &report.Results[i])
			}
			fmt.Fprintf(out, "\n%d products, %d matched, %d divergent\n",
				report.TotalProducts, report.MatchedProducts, report.DivergentProducts)
			if report.DivergentProducts > 0 {
				return fmt.Errorf("%d products diverge", report.DivergentProducts)
			}
			return nil
		},
	}
	return cmd
}

func printVerification(w io.Writer, r *verification.VerificationResult) {
	if r.Match {
		fmt.Fprintf(w, "OK    %s %s\n", r.ISIN, r.StoredFingerprint)
		return
	}
	fmt.Fprintf(w, "DIFF  %s\n", r.ISIN)
	for _, d := range r.Divergences {
		fmt.Fprintf(w, "      %s: stored=%v replayed=%v\n", d.Field, d.Expected, d.Actual)
	}
}
