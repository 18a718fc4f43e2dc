// Package migrations holds the embedded schema for the Postgres product and
// evaluation tables and the ClickHouse daily price table.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed postgres/*.sql
var PostgresFS embed.FS

//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS

// Migration is one embedded SQL file.
type Migration struct {
	Name string // file name, e.g. 001_products.sql
	SQL  string
}

// Postgres returns the Postgres migrations in apply order.
func Postgres() ([]Migration, error) { return load(PostgresFS, "postgres") }

// ClickHouse returns the ClickHouse migrations in apply order.
func ClickHouse() ([]Migration, error) { return load(ClickhouseFS, "clickhouse") }

// load reads dir/*.sql in lexical order, skipping blank files.
func load(fsys fs.FS, dir string) ([]Migration, error) {
	names, err := fs.Glob(fsys, path.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("list %s migrations: %w", dir, err)
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		out = append(out, Migration{Name: path.Base(name), SQL: string(data)})
	}
	return out, nil
}
