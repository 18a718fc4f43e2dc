package app

import (
	"log/slog"

	"note-lifecycle-lab/internal/config"
	"note-lifecycle-lab/internal/orchestrator"
	"note-lifecycle-lab/internal/payoff"
	"note-lifecycle-lab/internal/pricecache"
	"note-lifecycle-lab/internal/verification"
)

// NewPriceLoader returns a cached, rate-limited view of the price store.
func NewPriceLoader(cfg *config.Config, stores *Stores) *pricecache.Loader {
	return pricecache.New(pricecache.Options{
		Store:         stores.Prices,
		TTL:           cfg.PriceCacheTTL,
		RatePerSecond: cfg.PriceRateLimit,
		Burst:         cfg.Concurrency,
		ReadTimeout:   cfg.FetchTimeout,
	})
}

// NewOrchestrator builds a batch driver over stores. notifier may be nil.
func NewOrchestrator(cfg *config.Config, stores *Stores, prices *pricecache.Loader, notifier orchestrator.Notifier, logger *slog.Logger) *orchestrator.Orchestrator {
	return orchestrator.New(orchestrator.Options{
		ProductStore:    stores.Products,
		EvaluationStore: stores.Evaluations,
		Prices:          prices,
		RunStore:        stores.Runs,
		Notifier:        notifier,
		Logger:          logger,
		MaxStaleDays:    cfg.MaxStaleDays,
		Concurrency:     cfg.Concurrency,
		FetchTimeout:    cfg.FetchTimeout,
		PersistTimeout:  cfg.PersistTimeout,
	})
}

// NewVerifier builds a verifier that replays stored evaluations.
func NewVerifier(cfg *config.Config, stores *Stores, prices *pricecache.Loader) *verification.EvaluationVerifier {
	return verification.NewEvaluationVerifier(verification.EvaluationVerifierOptions{
		Products:    stores.Products,
		Evaluations: stores.Evaluations,
		Prices:      prices,
		Evaluator:   payoff.NewEvaluator(payoff.Options{MaxStaleDays: cfg.MaxStaleDays}),
	})
}
