// Package fixtures loads product definitions from YAML and daily prices from
// CSV into the stores.
package fixtures

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"note-lifecycle-lab/internal/calendar"
	"note-lifecycle-lab/internal/domain"
	"note-lifecycle-lab/internal/payoff"
	"note-lifecycle-lab/internal/storage"
)

// File names looked up by LoadDir.
const (
	ProductsFile = "products.yaml"
	PricesFile   = "prices.csv"
	PricesDir    = "prices"
)

// productFile is the YAML document layout.
type productFile struct {
	Products []*domain.Product `yaml:"products"`
}

// ParseProducts decodes a YAML product list and validates every product.
func ParseProducts(data []byte) ([]*domain.Product, error) {
	var f productFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode products: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Products))
	for i, p := range f.Products {
		if p == nil {
			return nil, fmt.Errorf("products[%d]: empty entry", i)
		}
		if _, dup := seen[p.ISIN]; dup {
			return nil, fmt.Errorf("products[%d]: duplicate isin %s", i, p.ISIN)
		}
		seen[p.ISIN] = struct{}{}
		if err := p.ValidateTerms(); err != nil {
			return nil, fmt.Errorf("products[%d]: %w", i, err)
		}
		if err := payoff.ValidateSchedule(p); err != nil {
			return nil, fmt.Errorf("products[%d]: %w", i, err)
		}
	}
	return f.Products, nil
}

// ParsePrices reads CSV rows of ticker,date,close[,adj_close]. A header row
// is optional. An empty adj_close leaves the adjusted close unset.
func ParsePrices(r io.Reader) ([]*domain.PricePoint, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var points []*domain.PricePoint
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read prices: %w", err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "ticker") {
			continue
		}
		p, err := parsePriceRow(rec)
		if err != nil {
			return nil, fmt.Errorf("prices line %d: %w", line, err)
		}
		points = append(points, p)
	}
	return points, nil
}

func parsePriceRow(rec []string) (*domain.PricePoint, error) {
	if len(rec) < 3 || len(rec) > 4 {
		return nil, fmt.Errorf("expected 3 or 4 fields, got %d", len(rec))
	}
	ticker := strings.TrimSpace(rec[0])
	if ticker == "" {
		return nil, errors.New("empty ticker")
	}
	date, err := calendar.Parse(strings.TrimSpace(rec[1]))
	if err != nil {
		return nil, err
	}
	closeLevel, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
	if err != nil {
		return nil, fmt.Errorf("close: %w", err)
	}
	p := &domain.PricePoint{Ticker: ticker, Date: date, Close: closeLevel}
	if len(rec) == 4 && strings.TrimSpace(rec[3]) != "" {
		adj, err := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
		if err != nil {
			return nil, fmt.Errorf("adj_close: %w", err)
		}
		p.AdjustedClose = adj
	}
	return p, nil
}

// LoadStats counts what LoadDir wrote.
type LoadStats struct {
	ProductsInserted int
	ProductsSkipped  int // ISIN already stored
	PricesInserted   int
	PricesSkipped    int // (ticker, date) already stored
}

// LoadDir loads dir/products.yaml, dir/prices.csv and dir/prices/*.csv.
// Missing files are skipped. Existing products and price points are left
// as they are, so loading the same directory twice is a no-op.
func LoadDir(ctx context.Context, dir string, products storage.ProductStore, prices storage.PriceHistoryStore) (*LoadStats, error) {
	stats := &LoadStats{}

	data, err := os.ReadFile(filepath.Join(dir, ProductsFile))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		parsed, err := ParseProducts(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ProductsFile, err)
		}
		if err := insertProducts(ctx, products, parsed, stats); err != nil {
			return nil, err
		}
	}

	files, err := filepath.Glob(filepath.Join(dir, PricesDir, "*.csv"))
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(dir, PricesFile)); err == nil {
		files = append([]string{filepath.Join(dir, PricesFile)}, files...)
	}

	var points []*domain.PricePoint
	for _, path := range files {
		parsed, err := readPricesFile(path)
		if err != nil {
			return nil, err
		}
		points = append(points, parsed...)
	}
	if err := insertPrices(ctx, prices, points, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func readPricesFile(path string) ([]*domain.PricePoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	points, err := ParsePrices(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return points, nil
}

func insertProducts(ctx context.Context, store storage.ProductStore, products []*domain.Product, stats *LoadStats) error {
	for _, p := range products {
		err := store.Insert(ctx, p)
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			stats.ProductsSkipped++
		case err != nil:
			return fmt.Errorf("insert product %s: %w", p.ISIN, err)
		default:
			stats.ProductsInserted++
		}
	}
	return nil
}

// insertPrices writes only points whose (ticker, date) is not stored yet,
// one batch per ticker.
func insertPrices(ctx context.Context, store storage.PriceHistoryStore, points []*domain.PricePoint, stats *LoadStats) error {
	byTicker := make(map[string][]*domain.PricePoint)
	for _, p := range points {
		byTicker[p.Ticker] = append(byTicker[p.Ticker], p)
	}
	tickers := make([]string, 0, len(byTicker))
	for t := range byTicker {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	for _, ticker := range tickers {
		existing, err := store.GetByTicker(ctx, ticker)
		if err != nil {
			return fmt.Errorf("read prices for %s: %w", ticker, err)
		}
		have := make(map[calendar.Date]struct{}, len(existing))
		for _, p := range existing {
			have[p.Date] = struct{}{}
		}

		var batch []*domain.PricePoint
		for _, p := range byTicker[ticker] {
			if _, ok := have[p.Date]; ok {
				stats.PricesSkipped++
				continue
			}
			have[p.Date] = struct{}{}
			batch = append(batch, p)
		}
		if len(batch) == 0 {
			continue
		}
		if err := store.InsertBulk(ctx, batch); err != nil {
			return fmt.Errorf("insert prices for %s: %w", ticker, err)
		}
		stats.PricesInserted += len(batch)
	}
	return nil
}
