// Package orchestrator drives batch re-evaluation of active products.
// Per product: snapshot prices → evaluate → persist → notify.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"note-lifecycle-lab/internal/calendar"
	"note-lifecycle-lab/internal/domain"
	"note-lifecycle-lab/internal/idhash"
	"note-lifecycle-lab/internal/observability"
	"note-lifecycle-lab/internal/payoff"
	"note-lifecycle-lab/internal/storage"
)

// Defaults applied when Options leaves a field zero.
const (
	DefaultConcurrency    = 8
	DefaultFetchTimeout   = 10 * time.Second
	DefaultPersistTimeout = 10 * time.Second
)

// PriceLoader provides a read-only snapshot of price series for a basket.
type PriceLoader interface {
	Snapshot(ctx context.Context, tickers []string) (payoff.Snapshot, error)
}

// Outcome is published after a product evaluation has been persisted.
type Outcome struct {
	RunID                string        `json:"run_id"`
	ISIN                 string        `json:"isin"`
	AsOf                 calendar.Date `json:"as_of"`
	Status               domain.Status `json:"status"`
	AutocallDate         calendar.Date `json:"autocall_date,omitempty"`
	CumulativeCoupon     float64       `json:"cumulative_coupon"`
	IndicativeRedemption *float64      `json:"indicative_redemption,omitempty"`
	CapitalRedemption    *float64      `json:"capital_redemption,omitempty"`
	PnL                  *float64      `json:"pnl,omitempty"`
}

// Notifier receives persisted outcomes. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, o Outcome)
}

// Options for creating Orchestrator.
type Options struct {
	// Required
	ProductStore    storage.ProductStore
	EvaluationStore storage.EvaluationStore
	Prices          PriceLoader

	// Optional
	RunStore  storage.RunStore
	Notifier  Notifier
	Evaluator *payoff.Evaluator // nil builds one with MaxStaleDays and a debug trace logger
	Logger    *slog.Logger

	MaxStaleDays   int
	Concurrency    int           // 0 selects DefaultConcurrency
	FetchTimeout   time.Duration // 0 selects DefaultFetchTimeout
	PersistTimeout time.Duration // 0 selects DefaultPersistTimeout

	// Injectable for tests
	NewRunID func() string
	Now      func() time.Time
}

// Orchestrator runs batch evaluations. Run may be called concurrently;
// each call is an independent run.
type Orchestrator struct {
	products    storage.ProductStore
	evaluations storage.EvaluationStore
	runs        storage.RunStore
	prices      PriceLoader
	notifier    Notifier
	evaluator   *payoff.Evaluator
	logger      *slog.Logger

	concurrency    int
	fetchTimeout   time.Duration
	persistTimeout time.Duration
	newRunID       func() string
	now            func() time.Time

	mu      sync.RWMutex
	lastRun *RunResult
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		products:       opts.ProductStore,
		evaluations:    opts.EvaluationStore,
		runs:           opts.RunStore,
		prices:         opts.Prices,
		notifier:       opts.Notifier,
		evaluator:      opts.Evaluator,
		logger:         opts.Logger,
		concurrency:    opts.Concurrency,
		fetchTimeout:   opts.FetchTimeout,
		persistTimeout: opts.PersistTimeout,
		newRunID:       opts.NewRunID,
		now:            opts.Now,
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.concurrency <= 0 {
		o.concurrency = DefaultConcurrency
	}
	if o.fetchTimeout <= 0 {
		o.fetchTimeout = DefaultFetchTimeout
	}
	if o.persistTimeout <= 0 {
		o.persistTimeout = DefaultPersistTimeout
	}
	if o.newRunID == nil {
		o.newRunID = uuid.NewString
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}
	if o.evaluator == nil {
		o.evaluator = payoff.NewEvaluator(payoff.Options{
			MaxStaleDays: opts.MaxStaleDays,
			Trace:        o.logTrace,
		})
	}
	return o
}

// RunResult contains results from one batch run.
type RunResult struct {
	RunID      string
	AsOf       calendar.Date
	StartedAt  time.Time
	FinishedAt time.Time
	Products   int // active products picked up
	Evaluated  int // evaluated and persisted
	Errors     []*ProductError
}

// Failed returns the number of products left untouched.
func (r *RunResult) Failed() int { return len(r.Errors) }

// Run evaluates every active product as of asOf (zero means today).
// Per-product failures are collected in the result; the returned error is
// non-nil only when the product list cannot be read.
func (o *Orchestrator) Run(ctx context.Context, asOf calendar.Date) (*RunResult, error) {
	if asOf.IsZero() {
		asOf = calendar.Today()
	}
	result := &RunResult{
		RunID:     o.newRunID(),
		AsOf:      asOf,
		StartedAt: o.now(),
	}
	logger := o.logger.With("run_id", result.RunID, "as_of", asOf.String())

	products, err := o.products.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active products: %w", err)
	}
	result.Products = len(products)
	logger.Info("batch run started", "products", len(products), "concurrency", o.concurrency)

	var (
		mu        sync.Mutex
		evaluated int
		failures  []*ProductError
	)

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for _, p := range products {
		g.Go(func() error {
			if err := o.evaluateProduct(ctx, result.RunID, asOf, p); err != nil {
				var pe *ProductError
				if !errors.As(err, &pe) {
					pe = &ProductError{ISIN: p.ISIN, Stage: StageEvaluate, Err: err}
				}
				observability.RecordEvaluationError(pe.Kind())
				logger.Warn("product evaluation failed", "isin", p.ISIN, "stage", pe.Stage, "kind", pe.Kind(), "error", pe.Err)
				mu.Lock()
				failures = append(failures, pe)
				mu.Unlock()
				return nil
			}
			mu.Lock()
			evaluated++
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; failures are collected above.
	_ = g.Wait()

	sort.Slice(failures, func(i, j int) bool { return failures[i].ISIN < failures[j].ISIN })
	result.Evaluated = evaluated
	result.Errors = failures
	result.FinishedAt = o.now()

	o.recordRun(ctx, logger, result)
	return result, nil
}

// EvaluateOne evaluates and persists a single product regardless of status.
func (o *Orchestrator) EvaluateOne(ctx context.Context, isin string, asOf calendar.Date) (*domain.EvaluationResult, error) {
	if asOf.IsZero() {
		asOf = calendar.Today()
	}
	p, err := o.products.GetByISIN(ctx, isin)
	if err != nil {
		return nil, err
	}
	result, err := o.evaluate(ctx, p, asOf)
	if err != nil {
		return nil, err
	}
	if err := o.persist(ctx, o.newRunID(), p, result); err != nil {
		return nil, err
	}
	return result, nil
}

// LastRun returns the most recent run finished by this orchestrator, or nil.
func (o *Orchestrator) LastRun() *RunResult {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastRun
}

// evaluateProduct is one isolated unit of work. Panics are converted into
// errors so one product cannot abort the batch.
func (o *Orchestrator) evaluateProduct(ctx context.Context, runID string, asOf calendar.Date, p *domain.Product) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ProductError{ISIN: p.ISIN, Stage: StageEvaluate, Err: fmt.Errorf("%w: %v", ErrPanic, r)}
		}
	}()

	start := time.Now()
	result, err := o.evaluate(ctx, p, asOf)
	if err != nil {
		return err
	}
	if err := o.persist(ctx, runID, p, result); err != nil {
		return err
	}
	observability.RecordEvaluation(string(result.Status), time.Since(start).Seconds(), countUnadjusted(result), countDataGaps(result))

	if o.notifier != nil {
		o.notifier.Notify(ctx, outcomeOf(runID, result))
	}
	return nil
}

// evaluate reads one price snapshot and runs the pure evaluation on it.
func (o *Orchestrator) evaluate(ctx context.Context, p *domain.Product, asOf calendar.Date) (*domain.EvaluationResult, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, o.fetchTimeout)
	snap, err := o.prices.Snapshot(fetchCtx, p.Tickers())
	cancel()
	if err != nil {
		return nil, &ProductError{ISIN: p.ISIN, Stage: StageFetch, Err: err}
	}

	result, err := o.evaluator.Evaluate(p, snap, asOf)
	if err != nil {
		return nil, &ProductError{ISIN: p.ISIN, Stage: StageEvaluate, Err: err}
	}
	return result, nil
}

// persist writes computed fields back onto the product, then stores the
// evaluation record. If the record cannot be stored the product row is
// restored from p, so a failed product keeps both its previous row and its
// previous record.
func (o *Orchestrator) persist(ctx context.Context, runID string, p *domain.Product, result *domain.EvaluationResult) error {
	fingerprint, err := idhash.ComputeResultFingerprint(result)
	if err != nil {
		return &ProductError{ISIN: p.ISIN, Stage: StagePersist, Err: err}
	}

	persistCtx, cancel := context.WithTimeout(ctx, o.persistTimeout)
	defer cancel()

	updated := p.Clone()
	payoff.ApplyResult(updated, result)
	if err := o.products.UpdateComputed(persistCtx, updated); err != nil {
		return &ProductError{ISIN: p.ISIN, Stage: StagePersist, Err: err}
	}

	record := &domain.EvaluationRecord{
		ISIN:        p.ISIN,
		RunID:       runID,
		Fingerprint: fingerprint,
		EvaluatedAt: o.now(),
		Result:      result,
	}
	if err := o.evaluations.Upsert(persistCtx, record); err != nil {
		return &ProductError{ISIN: p.ISIN, Stage: StagePersist, Err: o.restoreProduct(ctx, p, err)}
	}
	return nil
}

// restoreProduct rewrites the computed fields of p as they were before this
// evaluation. It runs even when ctx is done, since the row is already changed.
func (o *Orchestrator) restoreProduct(ctx context.Context, p *domain.Product, cause error) error {
	restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.persistTimeout)
	defer cancel()
	if err := o.products.UpdateComputed(restoreCtx, p); err != nil {
		o.logger.Error("restore product after failed persist", "isin", p.ISIN, "error", err, "cause", cause)
		return errors.Join(cause, fmt.Errorf("restore product: %w", err))
	}
	return cause
}

func (o *Orchestrator) recordRun(ctx context.Context, logger *slog.Logger, result *RunResult) {
	o.mu.Lock()
	o.lastRun = result
	o.mu.Unlock()

	duration := result.FinishedAt.Sub(result.StartedAt)
	observability.RecordRun(result.Products, result.Failed(), duration.Seconds(), result.FinishedAt.Unix())
	logger.Info("batch run finished",
		"evaluated", result.Evaluated, "failed", result.Failed(), "duration", duration)

	if o.runs == nil {
		return
	}
	record := &storage.RunRecord{
		RunID:      result.RunID,
		AsOf:       result.AsOf,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		Evaluated:  result.Evaluated,
		Failed:     result.Failed(),
	}
	for _, e := range result.Errors {
		record.Errors = append(record.Errors, e.Error())
	}

	// The summary is written even when the run was cancelled.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.persistTimeout)
	defer cancel()
	if err := o.runs.Insert(persistCtx, record); err != nil {
		logger.Error("failed to record run", "error", err)
	}
}

func (o *Orchestrator) logTrace(e payoff.TraceEvent) {
	if !o.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	attrs := []any{
		"isin", e.ISIN,
		"date", e.Date.String(),
		"basket_ticker", e.BasketTicker,
		"coupon_cleared", e.CouponCleared,
		"coupon_paid", e.CouponPaid,
		"missed_coupons", e.MissedCoupons,
		"autocall_tested", e.AutocallTested,
		"autocalled", e.Autocalled,
		"data_gap", e.DataGap,
	}
	if e.BasketPerformance != nil {
		attrs = append(attrs, "basket_performance", *e.BasketPerformance)
	}
	if len(e.Locked) > 0 {
		attrs = append(attrs, "locked", e.Locked)
	}
	o.logger.Debug("observation", attrs...)
}

func outcomeOf(runID string, r *domain.EvaluationResult) Outcome {
	return Outcome{
		RunID:                runID,
		ISIN:                 r.ISIN,
		AsOf:                 r.AsOf,
		Status:               r.Status,
		AutocallDate:         r.AutocallDate,
		CumulativeCoupon:     r.CumulativeCoupon,
		IndicativeRedemption: r.IndicativeRedemption,
		CapitalRedemption:    r.CapitalRedemption,
		PnL:                  r.PnL,
	}
}

func countUnadjusted(r *domain.EvaluationResult) int {
	n := 0
	for _, u := range r.Underlyings {
		if u.Unadjusted {
			n++
		}
	}
	return n
}

func countDataGaps(r *domain.EvaluationResult) int {
	n := 0
	for _, o := range r.Observations {
		if o.DataGap {
			n++
		}
	}
	return n
}
