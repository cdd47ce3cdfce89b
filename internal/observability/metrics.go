package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks operational metrics for batch scraping runs.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ItemsTotal     *prometheus.CounterVec
	RecordsTotal   *prometheus.CounterVec
	BatchesTotal   *prometheus.CounterVec
	BatchDuration  *prometheus.HistogramVec
	ItemsInFlight  *prometheus.GaugeVec
	CleanupErrors  *prometheus.CounterVec
	HTTPResponses  *prometheus.CounterVec
	RecordsDropped *prometheus.CounterVec

	registry *prometheus.Registry
	logger   *slog.Logger
}

// NewMetrics creates a Metrics instance backed by its own registry.
func NewMetrics(logger *slog.Logger) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		ItemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookgoat_items_total",
			Help: "Work items processed, by stage and outcome",
		}, []string{"stage", "outcome"}),
		RecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookgoat_records_total",
			Help: "Result records produced, by stage",
		}, []string{"stage"}),
		BatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookgoat_batches_total",
			Help: "Batches completed, by stage",
		}, []string{"stage"}),
		BatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bookgoat_batch_duration_seconds",
			Help:    "Wall time from batch launch to barrier",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"stage"}),
		ItemsInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bookgoat_items_in_flight",
			Help: "Work items currently executing",
		}, []string{"stage"}),
		CleanupErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookgoat_cleanup_errors_total",
			Help: "Failures releasing per-item resources",
		}, []string{"resource"}),
		HTTPResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookgoat_http_responses_total",
			Help: "HTTP responses received, by status class",
		}, []string{"class"}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookgoat_records_dropped_total",
			Help: "Records dropped by the record pipeline, by middleware",
		}, []string{"middleware"}),
		registry: reg,
		logger:   logger.With("component", "metrics"),
	}

	reg.MustRegister(
		m.ItemsTotal, m.RecordsTotal, m.BatchesTotal, m.BatchDuration,
		m.ItemsInFlight, m.CleanupErrors, m.HTTPResponses, m.RecordsDropped,
	)
	return m
}

// Registry exposes the underlying registry (mainly for tests).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ItemStarted marks a work item as in flight.
func (m *Metrics) ItemStarted(stage string) {
	if m == nil {
		return
	}
	m.ItemsInFlight.WithLabelValues(stage).Inc()
}

// ItemFinished records the outcome of a work item.
func (m *Metrics) ItemFinished(stage string, records int, err error) {
	if m == nil {
		return
	}
	m.ItemsInFlight.WithLabelValues(stage).Dec()
	outcome := "success"
	if err != nil {
		outcome = "failed"
	}
	m.ItemsTotal.WithLabelValues(stage, outcome).Inc()
	m.RecordsTotal.WithLabelValues(stage).Add(float64(records))
}

// BatchFinished records a completed batch barrier.
func (m *Metrics) BatchFinished(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.BatchesTotal.WithLabelValues(stage).Inc()
	m.BatchDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// CleanupFailed counts a resource release failure.
func (m *Metrics) CleanupFailed(resource string) {
	if m == nil {
		return
	}
	m.CleanupErrors.WithLabelValues(resource).Inc()
}

// HTTPResponse counts an HTTP response by status class.
func (m *Metrics) HTTPResponse(status int) {
	if m == nil {
		return
	}
	m.HTTPResponses.WithLabelValues(fmt.Sprintf("%dxx", status/100)).Inc()
}

// RecordDropped counts a record dropped by a pipeline middleware.
func (m *Metrics) RecordDropped(middleware string) {
	if m == nil {
		return
	}
	m.RecordsDropped.WithLabelValues(middleware).Inc()
}

// Handler returns the Prometheus exposition handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer starts the metrics HTTP server.
func (m *Metrics) StartServer(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}
