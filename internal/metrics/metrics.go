// Package metrics exposes Prometheus metrics for scans, reindex and report
// batches, and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nao1215/backlinkscan/internal/model"
)

const namespace = "backlinkscan"

// Metrics holds all Prometheus metrics of the service.
//
// Design decision: metrics live in their own registry instead of the global
// one, so tests and the CLI can create as many instances as they like
// without duplicate registration panics.
type Metrics struct {
	registry *prometheus.Registry

	// Scan metrics
	ScansTotal   *prometheus.CounterVec
	ScanDuration *prometheus.HistogramVec

	// Batch metrics
	ReindexTotal *prometheus.CounterVec
	IndexedRows  prometheus.Counter
	ReportsTotal *prometheus.CounterVec

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RateLimited     prometheus.Counter
}

// New creates the metrics and registers them, plus the Go runtime and
// process collectors, in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{registry: reg}
	factory := promauto.With(reg)
	initScanMetrics(m, factory)
	initBatchMetrics(m, factory)
	initHTTPMetrics(m, factory)
	return m
}

func initScanMetrics(m *Metrics, f promauto.Factory) {
	m.ScansTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scans_total",
		Help:      "On-demand scans by mode and outcome",
	}, []string{"mode", "outcome"})

	m.ScanDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "scan_duration_seconds",
		Help:      "Wall-clock time of an on-demand scan",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
	}, []string{"mode"})
}

func initBatchMetrics(m *Metrics, f promauto.Factory) {
	m.ReindexTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reindex_targets_total",
		Help:      "Targets reindexed by outcome",
	}, []string{"outcome"})

	m.IndexedRows = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "indexed_rows_written_total",
		Help:      "Indexed link rows written by reindex passes",
	})

	m.ReportsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reports_total",
		Help:      "Report deliveries by outcome",
	}, []string{"outcome"})
}

func initHTTPMetrics(m *Metrics, f promauto.Factory) {
	m.RequestsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP API requests by route, method and status code",
	}, []string{"route", "method", "code"})

	m.RequestDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP API request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	m.RateLimited = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_rate_limited_total",
		Help:      "Requests rejected by the rate limiter",
	})
}

// Registry returns the registry holding every metric.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveScan records one scan.
func (m *Metrics) ObserveScan(mode model.ScanMode, outcome string, elapsed time.Duration) {
	m.ScansTotal.WithLabelValues(string(mode), outcome).Inc()
	m.ScanDuration.WithLabelValues(string(mode)).Observe(elapsed.Seconds())
}

// ObserveReindex records one reindexed target.
func (m *Metrics) ObserveReindex(outcome string, rows int) {
	m.ReindexTotal.WithLabelValues(outcome).Inc()
	if rows > 0 {
		m.IndexedRows.Add(float64(rows))
	}
}

// ObserveReport records one report delivery.
func (m *Metrics) ObserveReport(outcome string) {
	m.ReportsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route, method string, code int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveRateLimited records one rejected request.
func (m *Metrics) ObserveRateLimited() {
	m.RateLimited.Inc()
}
