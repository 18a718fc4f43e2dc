package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"note-lifecycle-lab/internal/domain"
	"note-lifecycle-lab/internal/storage"
)

// ProductStore implements storage.ProductStore using PostgreSQL.
// The schedule, basket and feature set are stored as JSONB.
type ProductStore struct {
	pool *Pool
}

// NewProductStore creates a new ProductStore.
func NewProductStore(pool *Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ProductStore = (*ProductStore)(nil)

const productColumns = `
	isin, name, currency, trade_date, final_observation_date, maturity_date,
	template, basket_rule, features, capital_protection_barrier, coupon_barrier,
	coupon_per_period, upside_participation, observations, underlyings,
	status, autocall_date
`

// Insert adds a new product. Returns ErrDuplicateKey if the ISIN exists.
func (s *ProductStore) Insert(ctx context.Context, p *domain.Product) error {
	if p == nil || p.ISIN == "" {
		return storage.ErrInvalidInput
	}

	features, err := json.Marshal(p.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}
	observations, err := json.Marshal(p.Observations)
	if err != nil {
		return fmt.Errorf("marshal observations: %w", err)
	}
	underlyings, err := json.Marshal(p.Underlyings)
	if err != nil {
		return fmt.Errorf("marshal underlyings: %w", err)
	}

	status := p.Status
	if status == "" {
		status = domain.StatusPending
	}

	query := `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err = s.pool.Exec(ctx, query,
		p.ISIN,
		p.Name,
		p.Currency,
		p.TradeDate.Time(),
		p.FinalObservationDate.Time(),
		dateArg(p.MaturityDate),
		string(p.Template),
		string(p.Rule()),
		features,
		p.CapitalProtectionBarrier,
		p.CouponBarrier,
		p.CouponPerPeriod,
		p.UpsideParticipation,
		observations,
		underlyings,
		string(status),
		dateArg(p.AutocallDate),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// GetByISIN retrieves a product. Returns ErrNotFound if not exists.
func (s *ProductStore) GetByISIN(ctx context.Context, isin string) (*domain.Product, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE isin = $1`, isin)
	p, err := scanProduct(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get product by isin: %w", err)
	}
	return p, nil
}

// GetAll retrieves all products ordered by ISIN.
func (s *ProductStore) GetAll(ctx context.Context) ([]*domain.Product, error) {
	return s.query(ctx, `SELECT `+productColumns+` FROM products ORDER BY isin`)
}

// ListActive retrieves products not yet autocalled or matured, ordered by ISIN.
func (s *ProductStore) ListActive(ctx context.Context) ([]*domain.Product, error) {
	return s.query(ctx, `SELECT `+productColumns+` FROM products
		WHERE status NOT IN ($1, $2)
		ORDER BY isin`,
		string(domain.StatusAutocalled), string(domain.StatusMatured))
}

func (s *ProductStore) query(ctx context.Context, sql string, args ...any) ([]*domain.Product, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// UpdateComputed writes back evaluator-owned fields. The underlyings JSON is
// merged under a row lock so term fields are never overwritten.
func (s *ProductStore) UpdateComputed(ctx context.Context, p *domain.Product) error {
	if p == nil || p.ISIN == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var raw []byte
	err = tx.QueryRow(ctx, `SELECT underlyings FROM products WHERE isin = $1 FOR UPDATE`, p.ISIN).Scan(&raw)
	if err != nil {
		if isNotFoundError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("lock product: %w", err)
	}

	var stored []domain.Underlying
	if err := json.Unmarshal(raw, &stored); err != nil {
		return fmt.Errorf("unmarshal underlyings: %w", err)
	}
	for i := range stored {
		for _, u := range p.Underlyings {
			if u.Ticker == stored[i].Ticker {
				stored[i].AdjustedLevel = u.AdjustedLevel
				stored[i].Unadjusted = u.Unadjusted
				stored[i].LastPriceInfo = u.LastPriceInfo
			}
		}
	}
	merged, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal underlyings: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE products
		SET status = $2, autocall_date = $3, underlyings = $4, updated_at = $5
		WHERE isin = $1
	`, p.ISIN, string(p.Status), dateArg(p.AutocallDate), merged, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	return tx.Commit(ctx)
}

// scanProduct scans a single row into Product.
func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p                                       domain.Product
		tradeDate, finalDate                    time.Time
		maturity, autocall                      *time.Time
		template, rule, status                  string
		features, observations, underlyingsJSON []byte
	)

	err := row.Scan(
		&p.ISIN,
		&p.Name,
		&p.Currency,
		&tradeDate,
		&finalDate,
		&maturity,
		&template,
		&rule,
		&features,
		&p.CapitalProtectionBarrier,
		&p.CouponBarrier,
		&p.CouponPerPeriod,
		&p.UpsideParticipation,
		&observations,
		&underlyingsJSON,
		&status,
		&autocall,
	)
	if err != nil {
		return nil, err
	}

	p.TradeDate = dateFrom(&tradeDate)
	p.FinalObservationDate = dateFrom(&finalDate)
	p.MaturityDate = dateFrom(maturity)
	p.AutocallDate = dateFrom(autocall)
	// Rows written before aliases were rejected may hold a legacy tag.
	p.Template = domain.Template(template)
	if t, err := domain.ParseTemplate(template); err == nil {
		p.Template = t
	}
	p.BasketRule = domain.BasketRule(rule)
	if rule != "" {
		if r, err := domain.ParseBasketRule(rule); err == nil {
			p.BasketRule = r
		}
	}
	p.Status = domain.Status(status)

	if err := json.Unmarshal(features, &p.Features); err != nil {
		return nil, fmt.Errorf("unmarshal features: %w", err)
	}
	if err := json.Unmarshal(observations, &p.Observations); err != nil {
		return nil, fmt.Errorf("unmarshal observations: %w", err)
	}
	if err := json.Unmarshal(underlyingsJSON, &p.Underlyings); err != nil {
		return nil, fmt.Errorf("unmarshal underlyings: %w", err)
	}

	return &p, nil
}
