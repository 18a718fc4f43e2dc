// Package pricecache loads daily price series for evaluation runs, caching
// them per ticker and throttling reads from the price history store.
package pricecache

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"note-lifecycle-lab/internal/domain"
	"note-lifecycle-lab/internal/observability"
	"note-lifecycle-lab/internal/payoff"
	"note-lifecycle-lab/internal/storage"
)

const (
	DefaultTTL             = 10 * time.Minute
	DefaultCleanupInterval = 30 * time.Minute
	DefaultReadTimeout     = 30 * time.Second
)

// Options configures a Loader.
type Options struct {
	Store storage.PriceHistoryStore
	TTL   time.Duration // 0 selects DefaultTTL
	// ReadTimeout bounds one shared store read; 0 selects DefaultReadTimeout.
	ReadTimeout time.Duration
	// RatePerSecond caps store reads; 0 disables throttling.
	RatePerSecond float64
	Burst         int
}

// Loader reads price series through a TTL cache. Concurrent misses for the
// same ticker share one store read. Cached series are shared between
// callers and must be treated as read-only.
type Loader struct {
	store   storage.PriceHistoryStore
	cache   *cache.Cache
	limiter *rate.Limiter
	group   singleflight.Group
	timeout time.Duration
}

// New creates a Loader.
func New(opts Options) *Loader {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	timeout := opts.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}

	l := &Loader{
		store:   opts.Store,
		cache:   cache.New(ttl, DefaultCleanupInterval),
		timeout: timeout,
	}
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return l
}

// Series returns the ascending series for ticker. A caller whose ctx ends
// stops waiting, but the shared read keeps running for the other callers
// until it completes or ReadTimeout expires.
func (l *Loader) Series(ctx context.Context, ticker string) ([]*domain.PricePoint, error) {
	if cached, ok := l.cache.Get(ticker); ok {
		observability.RecordPriceCache(true)
		return cached.([]*domain.PricePoint), nil
	}
	observability.RecordPriceCache(false)

	ch := l.group.DoChan(ticker, func() (interface{}, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()
		return l.read(readCtx, ticker)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load prices for %s: %w", ticker, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("load prices for %s: %w", ticker, res.Err)
		}
		return res.Val.([]*domain.PricePoint), nil
	}
}

func (l *Loader) read(ctx context.Context, ticker string) ([]*domain.PricePoint, error) {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	start := time.Now()
	series, err := l.store.GetByTicker(ctx, ticker)
	observability.RecordDBQuery("price_history", "get_by_ticker", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, err
	}
	l.cache.SetDefault(ticker, series)
	return series, nil
}

// Snapshot loads every ticker into a PriceSource for one evaluation.
func (l *Loader) Snapshot(ctx context.Context, tickers []string) (payoff.Snapshot, error) {
	snap := make(payoff.Snapshot, len(tickers))
	for _, t := range tickers {
		series, err := l.Series(ctx, t)
		if err != nil {
			return nil, err
		}
		snap[t] = series
	}
	return snap, nil
}

// Invalidate drops cached series, e.g. after new prices were loaded.
func (l *Loader) Invalidate(tickers ...string) {
	for _, t := range tickers {
		l.cache.Delete(t)
	}
}

// Flush drops every cached series.
func (l *Loader) Flush() {
	l.cache.Flush()
}

// Len returns the number of cached tickers.
func (l *Loader) Len() int {
	return l.cache.ItemCount()
}
