package verification

import (
	"context"
	"errors"
	"fmt"

	"note-lifecycle-lab/internal/domain"
	"note-lifecycle-lab/internal/idhash"
	"note-lifecycle-lab/internal/payoff"
	"note-lifecycle-lab/internal/storage"
)

var (
	// ErrEvaluationNotFound is returned when no stored evaluation exists.
	ErrEvaluationNotFound = errors.New("evaluation not found")

	// ErrProductNotFound is returned when the evaluated product is gone.
	ErrProductNotFound = errors.New("product not found")
)

// PriceLoader provides price snapshots for a basket.
type PriceLoader interface {
	Snapshot(ctx context.Context, tickers []string) (payoff.Snapshot, error)
}

// EvaluationVerifierOptions contains configuration for creating an EvaluationVerifier.
type EvaluationVerifierOptions struct {
	Products    storage.ProductStore
	Evaluations storage.EvaluationStore
	Prices      PriceLoader
	Evaluator   *payoff.Evaluator // nil selects default options
}

// EvaluationVerifier implements Verifier.
type EvaluationVerifier struct {
	products    storage.ProductStore
	evaluations storage.EvaluationStore
	prices      PriceLoader
	evaluator   *payoff.Evaluator
}

// NewEvaluationVerifier creates a new EvaluationVerifier.
func NewEvaluationVerifier(opts EvaluationVerifierOptions) *EvaluationVerifier {
	ev := opts.Evaluator
	if ev == nil {
		ev = payoff.NewEvaluator(payoff.Options{})
	}
	return &EvaluationVerifier{
		products:    opts.Products,
		evaluations: opts.Evaluations,
		prices:      opts.Prices,
		evaluator:   ev,
	}
}

var _ Verifier = (*EvaluationVerifier)(nil)

// VerifyProduct re-evaluates one product at its stored as-of date.
func (v *EvaluationVerifier) VerifyProduct(ctx context.Context, isin string) (*VerificationResult, error) {
	stored, err := v.evaluations.GetByISIN(ctx, isin)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrEvaluationNotFound
		}
		return nil, err
	}

	replayed, err := v.replay(ctx, stored)
	if err != nil {
		return nil, err
	}

	fingerprint, err := idhash.ComputeResultFingerprint(replayed)
	if err != nil {
		return nil, err
	}

	divergences := CompareResults(stored.Result, replayed)
	return &VerificationResult{
		ISIN:                isin,
		Match:               len(divergences) == 0,
		Divergences:         divergences,
		StoredFingerprint:   stored.Fingerprint,
		ReplayedFingerprint: fingerprint,
	}, nil
}

// VerifyAll verifies every stored evaluation. Per-product errors are
// recorded as divergences rather than aborting the report.
func (v *EvaluationVerifier) VerifyAll(ctx context.Context) (*VerificationReport, error) {
	records, err := v.evaluations.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &VerificationReport{
		TotalProducts: len(records),
		Results:       make([]VerificationResult, 0, len(records)),
	}

	for _, rec := range records {
		result, err := v.VerifyProduct(ctx, rec.ISIN)
		if err != nil {
			report.Results = append(report.Results, VerificationResult{
				ISIN:              rec.ISIN,
				StoredFingerprint: rec.Fingerprint,
				Divergences: []FieldDivergence{
					{Field: "Error", Expected: nil, Actual: err.Error()},
				},
			})
			report.DivergentProducts++
			continue
		}

		report.Results = append(report.Results, *result)
		if result.Match {
			report.MatchedProducts++
		} else {
			report.DivergentProducts++
		}
	}

	return report, nil
}

func (v *EvaluationVerifier) replay(ctx context.Context, stored *domain.EvaluationRecord) (*domain.EvaluationResult, error) {
	product, err := v.products.GetByISIN(ctx, stored.ISIN)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	snap, err := v.prices.Snapshot(ctx, product.Tickers())
	if err != nil {
		return nil, err
	}

	replayed, err := v.evaluator.Evaluate(product, snap, stored.Result.AsOf)
	if err != nil {
		return nil, fmt.Errorf("re-evaluate %s: %w", stored.ISIN, err)
	}
	return replayed, nil
}
