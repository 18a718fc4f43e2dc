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

// EvaluationStore implements storage.EvaluationStore using PostgreSQL.
type EvaluationStore struct {
	pool *Pool
}

// NewEvaluationStore creates a new EvaluationStore.
func NewEvaluationStore(pool *Pool) *EvaluationStore {
	return &EvaluationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EvaluationStore = (*EvaluationStore)(nil)

// Upsert stores a record, replacing any previous record for the ISIN.
// Returns ErrNotFound if the product does not exist.
func (s *EvaluationStore) Upsert(ctx context.Context, r *domain.EvaluationRecord) error {
	if r == nil || r.ISIN == "" || r.Result == nil {
		return storage.ErrInvalidInput
	}

	result, err := json.Marshal(r.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO evaluation_results (isin, run_id, fingerprint, as_of, status, evaluated_at, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (isin) DO UPDATE
		SET run_id = EXCLUDED.run_id,
		    fingerprint = EXCLUDED.fingerprint,
		    as_of = EXCLUDED.as_of,
		    status = EXCLUDED.status,
		    evaluated_at = EXCLUDED.evaluated_at,
		    result = EXCLUDED.result
	`,
		r.ISIN,
		r.RunID,
		r.Fingerprint,
		r.Result.AsOf.Time(),
		string(r.Result.Status),
		r.EvaluatedAt,
		result,
	)
	if err != nil {
		if isForeignKeyError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("upsert evaluation: %w", err)
	}
	return nil
}

// GetByISIN retrieves the latest record. Returns ErrNotFound if not exists.
func (s *EvaluationStore) GetByISIN(ctx context.Context, isin string) (*domain.EvaluationRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT isin, run_id, fingerprint, evaluated_at, result
		FROM evaluation_results
		WHERE isin = $1
	`, isin)

	r, err := scanEvaluation(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get evaluation by isin: %w", err)
	}
	return r, nil
}

// GetAll retrieves all records ordered by ISIN.
func (s *EvaluationStore) GetAll(ctx context.Context) ([]*domain.EvaluationRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT isin, run_id, fingerprint, evaluated_at, result
		FROM evaluation_results
		ORDER BY isin
	`)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	var records []*domain.EvaluationRecord
	for rows.Next() {
		r, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func scanEvaluation(row pgx.Row) (*domain.EvaluationRecord, error) {
	var (
		r          domain.EvaluationRecord
		evaluated  time.Time
		resultJSON []byte
	)
	if err := row.Scan(&r.ISIN, &r.RunID, &r.Fingerprint, &evaluated, &resultJSON); err != nil {
		return nil, err
	}
	r.EvaluatedAt = evaluated.UTC()

	var result domain.EvaluationResult
	if err := json.Unmarshal(resultJSON, &result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	r.Result = &result
	return &r, nil
}
