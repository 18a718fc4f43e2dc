// Package app wires configuration into stores and services shared by the
// server and the CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"note-lifecycle-lab/internal/config"
	"note-lifecycle-lab/internal/storage"
	chstore "note-lifecycle-lab/internal/storage/clickhouse"
	"note-lifecycle-lab/internal/storage/memory"
	"note-lifecycle-lab/internal/storage/migrations"
	pgstore "note-lifecycle-lab/internal/storage/postgres"
)

// Stores groups every store the evaluator uses.
type Stores struct {
	Products    storage.ProductStore
	Prices      storage.PriceHistoryStore
	Evaluations storage.EvaluationStore
	Runs        storage.RunStore
}

// OpenStores returns memory stores when cfg.UseMemory is set, otherwise
// Postgres stores for products, evaluations and runs plus a ClickHouse price
// history store. With migrate set, the embedded schema is applied first.
// The returned cleanup closes every connection.
func OpenStores(ctx context.Context, cfg *config.Config, migrate bool) (*Stores, func(), error) {
	if cfg.UseMemory {
		stores := &Stores{
			Products:    memory.NewProductStore(),
			Prices:      memory.NewPriceHistoryStore(),
			Evaluations: memory.NewEvaluationStore(),
			Runs:        memory.NewRunStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
	}

	var chConn *chstore.Conn
	if migrate {
		chConn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
	} else {
		chConn, err = chstore.NewConn(ctx, cfg.ClickHouseDSN)
	}
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	stores := &Stores{
		Products:    pgstore.NewProductStore(pool),
		Evaluations: pgstore.NewEvaluationStore(pool),
		Runs:        pgstore.NewRunStore(pool),
		Prices:      chstore.NewPriceHistoryStore(chConn),
	}
	cleanup := func() {
		if err := chConn.Close(); err != nil {
			slog.Warn("close clickhouse", "error", err)
		}
		pool.Close()
	}
	return stores, cleanup, nil
}
