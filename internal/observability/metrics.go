// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Evaluation metrics
	ProductsEvaluated    *prometheus.CounterVec
	EvaluationErrors     *prometheus.CounterVec
	EvaluationDuration   prometheus.Histogram
	AmbiguousAdjustments prometheus.Counter
	DataGaps             prometheus.Counter

	// Run metrics
	RunsTotal     *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	ProductsInRun prometheus.Gauge

	// Price cache metrics
	PriceCacheRequests *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Stream metrics
	StreamClients      prometheus.Gauge
	StreamMessagesSent prometheus.Counter
	StreamDropped      prometheus.Counter

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "note_lifecycle"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Evaluation metrics
		ProductsEvaluated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "products_evaluated_total",
			Help:      "Total number of products evaluated and persisted by resulting status",
		}, []string{"status"}),
		EvaluationErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "errors_total",
			Help:      "Total number of failed product evaluations by kind",
		}, []string{"kind"}),
		EvaluationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "duration_seconds",
			Help:      "Single product evaluation duration in seconds, fetch and persist included",
			Buckets:   prometheus.DefBuckets,
		}),
		AmbiguousAdjustments: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "unadjusted_references_total",
			Help:      "Total number of underlyings evaluated against an unadjusted reference level",
		}),
		DataGaps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "data_gaps_total",
			Help:      "Total number of observation dates skipped for lack of prices",
		}),

		// Run metrics
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "total",
			Help:      "Total number of batch runs by outcome",
		}, []string{"outcome"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Batch run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		ProductsInRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "products",
			Help:      "Number of active products in the last batch run",
		}),

		// Price cache metrics
		PriceCacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricecache",
			Name:      "requests_total",
			Help:      "Price series requests by cache result",
		}, []string{"result"}),

		// Database metrics
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Stream metrics
		StreamClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Connected WebSocket clients",
		}),
		StreamMessagesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "messages_sent_total",
			Help:      "Total number of outcome messages written to clients",
		}),
		StreamDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "messages_dropped_total",
			Help:      "Total number of outcome messages dropped for slow clients",
		}),

		// Health metrics
		LastSuccessfulRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last batch run without failures",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordEvaluation records one evaluated and persisted product.
func RecordEvaluation(status string, seconds float64, unadjusted, dataGaps int) {
	DefaultMetrics.ProductsEvaluated.WithLabelValues(status).Inc()
	DefaultMetrics.EvaluationDuration.Observe(seconds)
	DefaultMetrics.AmbiguousAdjustments.Add(float64(unadjusted))
	DefaultMetrics.DataGaps.Add(float64(dataGaps))
}

// RecordEvaluationError records a failed product evaluation.
func RecordEvaluationError(kind string) {
	DefaultMetrics.EvaluationErrors.WithLabelValues(kind).Inc()
}

// RecordRun records a finished batch run. A run with no failures updates
// the last-success timestamp.
func RecordRun(products, failed int, durationSeconds float64, finishedUnix int64) {
	outcome := "success"
	if failed > 0 {
		outcome = "partial"
	}
	DefaultMetrics.RunsTotal.WithLabelValues(outcome).Inc()
	DefaultMetrics.RunDuration.Observe(durationSeconds)
	DefaultMetrics.ProductsInRun.Set(float64(products))
	if failed == 0 {
		DefaultMetrics.LastSuccessfulRun.Set(float64(finishedUnix))
	}
}

// RecordPriceCache records a price series request served from cache or store.
func RecordPriceCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DefaultMetrics.PriceCacheRequests.WithLabelValues(result).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// UpdateStreamClients sets the connected client gauge.
func UpdateStreamClients(n int) {
	DefaultMetrics.StreamClients.Set(float64(n))
}

// RecordStreamMessage records a message sent to, or dropped for, one client.
func RecordStreamMessage(delivered bool) {
	if delivered {
		DefaultMetrics.StreamMessagesSent.Inc()
		return
	}
	DefaultMetrics.StreamDropped.Inc()
}
