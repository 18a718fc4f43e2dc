package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"note-lifecycle-lab/internal/reporting"
)

// Report file names written by the report command.
const (
	reportMarkdownFile = "NOTE_REPORT.md"
	reportProductsFile = "PRODUCTS.csv"
)

func newReportCmd(c *cli) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize stored evaluations as Markdown and CSV",
		Long: `Build a report from stored products, evaluations and the last run.
Without --output-dir the Markdown summary is printed to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup(cmd); err != nil {
				return err
			}

			report, err := reporting.NewGenerator(c.stores.Products, c.stores.Evaluations, c.stores.Runs).
				Generate(cmd.Context())
			if err != nil {
				return fmt.Errorf("generate report: %w", err)
			}

			md := reporting.RenderMarkdown(report)
			if outputDir == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), md)
				return err
			}

			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			files := map[string]string{
				reportMarkdownFile: md,
				reportProductsFile: reporting.RenderProductsCSV(report.Products),
			}
			for name, content := range files {
				if err := os.WriteFile(filepath.Join(outputDir, name), []byte(content), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", name, err)
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Report generated:")
			fmt.Fprintf(out, "  - %s\n", filepath.Join(outputDir, reportMarkdownFile))
			fmt.Fprintf(out, "  - %s\n", filepath.Join(outputDir, reportProductsFile))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "directory for report files")
	return cmd
}
