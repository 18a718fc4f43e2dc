package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"note-lifecycle-lab/internal/app"
	"note-lifecycle-lab/internal/calendar"
	"note-lifecycle-lab/internal/config"
	"note-lifecycle-lab/internal/fixtures"
	"note-lifecycle-lab/internal/logging"
	"note-lifecycle-lab/internal/observability"
	"note-lifecycle-lab/internal/orchestrator"
	"note-lifecycle-lab/internal/stream"
)

// Server re-evaluates active notes on a schedule and serves status,
// metrics and the outcome stream over HTTP.
type Server struct {
	cfg    *config.Config
	orch   *orchestrator.Orchestrator
	hub    *stream.Hub
	logger *slog.Logger

	// State
	mu         sync.Mutex
	startedAt  time.Time
	running    bool
	lastRunAt  time.Time
	runs       int
	lastErrMsg string
}

func main() {
	cfg, err := config.Read()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Flags override the environment
	flag.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	flag.StringVar(&cfg.ClickHouseDSN, "clickhouse-dsn", cfg.ClickHouseDSN, "ClickHouse connection string")
	flag.BoolVar(&cfg.UseMemory, "use-memory", cfg.UseMemory, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	flag.StringVar(&cfg.FixturesDir, "fixtures", cfg.FixturesDir, "Directory with products.yaml and price CSVs to load on start")
	flag.DurationVar(&cfg.Interval, "interval", cfg.Interval, "Re-evaluation interval")
	flag.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Products evaluated in parallel")
	flag.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP address for health, metrics, status and websocket")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.Parse()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := app.OpenStores(ctx, cfg, true)
	if err != nil {
		logger.Error("failed to create stores", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	if cfg.FixturesDir != "" {
		stats, err := fixtures.LoadDir(ctx, cfg.FixturesDir, stores.Products, stores.Prices)
		if err != nil {
			logger.Error("failed to load fixtures", "dir", cfg.FixturesDir, "error", err)
			os.Exit(1)
		}
		logger.Info("fixtures loaded",
			"dir", cfg.FixturesDir,
			"products", stats.ProductsInserted,
			"products_skipped", stats.ProductsSkipped,
			"prices", stats.PricesInserted,
			"prices_skipped", stats.PricesSkipped,
		)
	}

	hub := stream.NewHub(nil, logger.With("component", "stream"))
	prices := app.NewPriceLoader(cfg, stores)

	server := &Server{
		cfg:       cfg,
		orch:      app.NewOrchestrator(cfg, stores, prices, hub, logger.With("component", "orchestrator")),
		hub:       hub,
		logger:    logger,
		startedAt: time.Now().UTC(),
	}

	done := make(chan struct{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, initiating graceful shutdown", "signal", sig.String())
		cancel()

		// A second signal forces exit
		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing immediate shutdown", "signal", sig.String())
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Error("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	httpServer := server.newHTTPServer()
	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	err = server.runScheduler(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", "error", err)
	}
	shutdownCancel()
	if err := hub.Close(); err != nil {
		logger.Warn("stream hub close", "error", err)
	}
	close(done)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// runScheduler evaluates immediately and then once per interval.
func (s *Server) runScheduler(ctx context.Context) error {
	s.logger.Info("starting evaluation scheduler", "interval", s.cfg.Interval.String())

	s.runEvaluation(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runEvaluation(ctx)
		}
	}
}

// runEvaluation runs one batch as of today. Overlapping ticks are skipped.
func (s *Server) runEvaluation(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("evaluation already running, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()

	var errMsg string
	defer func() {
		s.mu.Lock()
		s.running = false
		s.lastRunAt = time.Now().UTC()
		s.runs++
		s.lastErrMsg = errMsg
		s.mu.Unlock()
	}()

	if _, err := s.orch.Run(ctx, calendar.Today()); err != nil {
		errMsg = err.Error()
		if !errors.Is(err, context.Canceled) {
			s.logger.Error("evaluation run failed", "error", err)
		}
	}
}

func (s *Server) newHTTPServer() *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/ws", s.hub)

	return &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status        string         `json:"status"`
	Uptime        string         `json:"uptime"`
	StartedAt     time.Time      `json:"started_at"`
	Running       bool           `json:"running"`
	Runs          int            `json:"runs"`
	LastRunAt     *time.Time     `json:"last_run_at,omitempty"`
	LastRunError  string         `json:"last_run_error,omitempty"`
	LastRun       *RunStatus     `json:"last_run,omitempty"`
	StreamClients int            `json:"stream_clients"`
	Failures      []FailedStatus `json:"failures,omitempty"`
}

// RunStatus summarizes the last completed batch.
type RunStatus struct {
	RunID      string        `json:"run_id"`
	AsOf       calendar.Date `json:"as_of"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Products   int           `json:"products"`
	Evaluated  int           `json:"evaluated"`
	Failed     int           `json:"failed"`
}

// FailedStatus is one product the last batch left untouched.
type FailedStatus struct {
	ISIN  string `json:"isin"`
	Stage string `json:"stage"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:        "running",
		Uptime:        time.Since(s.startedAt).Round(time.Second).String(),
		StartedAt:     s.startedAt,
		Running:       s.running,
		Runs:          s.runs,
		LastRunError:  s.lastErrMsg,
		StreamClients: s.hub.ClientCount(),
	}
	if !s.lastRunAt.IsZero() {
		at := s.lastRunAt
		resp.LastRunAt = &at
	}
	s.mu.Unlock()

	if last := s.orch.LastRun(); last != nil {
		resp.LastRun = &RunStatus{
			RunID:      last.RunID,
			AsOf:       last.AsOf,
			StartedAt:  last.StartedAt,
			FinishedAt: last.FinishedAt,
			Products:   last.Products,
			Evaluated:  last.Evaluated,
			Failed:     last.Failed(),
		}
		for _, pe := range last.Errors {
			resp.Failures = append(resp.Failures, FailedStatus{
				ISIN:  pe.ISIN,
				Stage: string(pe.Stage),
				Kind:  pe.Kind(),
				Error: pe.Err.Error(),
			})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("encode status", "error", err)
	}
}
