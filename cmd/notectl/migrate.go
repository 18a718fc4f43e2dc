package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded Postgres and ClickHouse schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.migrate = true
			if err := c.setup(cmd); err != nil {
				return err
			}
			if c.cfg.UseMemory {
				fmt.Fprintln(cmd.OutOrStdout(), "In-memory stores need no migration")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}
}
