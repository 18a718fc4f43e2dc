package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"note-lifecycle-lab/internal/app"
	"note-lifecycle-lab/internal/config"
	"note-lifecycle-lab/internal/fixtures"
	"note-lifecycle-lab/internal/logging"
)

// cli holds state shared by every subcommand.
type cli struct {
	envFile     string
	useMemory   bool
	fixturesDir string
	logLevel    string
	migrate     bool

	cfg     *config.Config
	logger  *slog.Logger
	stores  *app.Stores
	cleanup func()
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "notectl",
		Short:         "Evaluate structured notes against daily price history",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.envFile, "env-file", ".env", "dotenv file read before the environment")
	flags.BoolVar(&c.useMemory, "use-memory", false, "use in-memory stores (overrides USE_MEMORY)")
	flags.StringVar(&c.fixturesDir, "fixtures", "", "load products.yaml and price CSVs from this directory first")
	flags.StringVar(&c.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	root.AddCommand(
		newEvaluateCmd(c),
		newBatchCmd(c),
		newVerifyCmd(c),
		newReportCmd(c),
		newLoadCmd(c),
		newMigrateCmd(c),
	)
	return root
}

// setup reads configuration, builds the logger and opens the stores.
// Every subcommand that touches storage calls it first.
func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Read(c.envFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("use-memory") {
		cfg.UseMemory = c.useMemory
	}
	if c.fixturesDir != "" {
		cfg.FixturesDir = c.fixturesDir
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	stores, cleanup, err := app.OpenStores(ctx, cfg, c.migrate)
	if err != nil {
		return err
	}
	c.cfg, c.logger, c.stores, c.cleanup = cfg, logger, stores, cleanup

	if cfg.FixturesDir != "" {
		if _, err := c.loadFixtures(ctx, cfg.FixturesDir); err != nil {
			return err
		}
	}
	return nil
}

// close releases the stores opened by setup. It is safe to call more than once.
func (c *cli) close() {
	if c.cleanup == nil {
		return
	}
	c.cleanup()
	c.cleanup = nil
	c.logger.Debug("stores closed")
}

func (c *cli) loadFixtures(ctx context.Context, dir string) (*fixtures.LoadStats, error) {
	stats, err := fixtures.LoadDir(ctx, dir, c.stores.Products, c.stores.Prices)
	if err != nil {
		return nil, fmt.Errorf("load fixtures from %s: %w", dir, err)
	}
	c.logger.Info("fixtures loaded",
		"dir", dir,
		"products", stats.ProductsInserted,
		"products_skipped", stats.ProductsSkipped,
		"prices", stats.PricesInserted,
		"prices_skipped", stats.PricesSkipped,
	)
	return stats, nil
}
