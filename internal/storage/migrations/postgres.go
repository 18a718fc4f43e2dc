package migrations

import (
	"context"
	"fmt"

	"note-lifecycle-lab/internal/storage/postgres"
)

// RunPostgresMigrations applies the products, evaluation_results and
// evaluation_runs schema. Every file is idempotent, so reruns are safe.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	migs, err := Postgres()
	if err != nil {
		return err
	}
	for _, m := range migs {
		if _, err := pool.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
	}
	return nil
}
