package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"note-lifecycle-lab/internal/domain"
	"note-lifecycle-lab/internal/payoff"
)

// ErrPanic wraps a recovered panic from one product's evaluation.
var ErrPanic = errors.New("evaluation panicked")

// Stage names the step of a product evaluation that failed.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageEvaluate Stage = "evaluate"
	StagePersist  Stage = "persist"
)

// ProductError records why one product was left untouched by a run.
type ProductError struct {
	ISIN  string
	Stage Stage
	Err   error
}

func (e *ProductError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.ISIN, e.Stage, e.Err)
}

func (e *ProductError) Unwrap() error { return e.Err }

// Kind classifies the failure for metrics.
func (e *ProductError) Kind() string {
	switch {
	case errors.Is(e.Err, ErrPanic):
		return "panic"
	case errors.Is(e.Err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(e.Err, context.Canceled):
		return "canceled"
	case errors.Is(e.Err, payoff.ErrMissingPriceData):
		return "missing_price_data"
	case errors.Is(e.Err, payoff.ErrInvalidSchedule):
		return "invalid_schedule"
	case errors.Is(e.Err, domain.ErrInvalidProduct),
		errors.Is(e.Err, domain.ErrUnknownTemplate),
		errors.Is(e.Err, domain.ErrUnknownBasketRule),
		errors.Is(e.Err, domain.ErrIncompatibleFeature):
		return "invalid_product"
	default:
		return string(e.Stage)
	}
}
