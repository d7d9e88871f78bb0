// Package telemetry provides Prometheus metrics and OpenTelemetry tracing
// for the companion runtime.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "utsuwa"

// ServiceName is the name under which Metrics is registered in the
// application context.
const ServiceName = "telemetry.metrics"

// Embed outcomes.
const (
	EmbedOK       = "ok"
	EmbedNotReady = "not_ready"
	EmbedError    = "error"
)

// Metrics groups the runtime's Prometheus collectors. All methods are safe
// to call on a nil *Metrics, which records nothing.
type Metrics struct {
	registry *prometheus.Registry

	embedCalls     *prometheus.CounterVec
	embedDuration  prometheus.Histogram
	modelState     *prometheus.GaugeVec
	importEntities *prometheus.CounterVec
	exports        prometheus.Counter
	backfilled     prometheus.Counter
	jobRuns        *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// NewMetrics creates the collectors on a dedicated registry, together with
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		embedCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "calls_total",
			Help:      "Embedding requests by outcome.",
		}, []string{"outcome"}),
		embedDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "duration_seconds",
			Help:      "Latency of successful model embedding calls.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		modelState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "model_state",
			Help:      "1 for the current embedding model state, 0 otherwise.",
		}, []string{"state"}),
		importEntities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "savefile",
			Name:      "import_entities_total",
			Help:      "Entities processed by save-file imports.",
		}, []string{"result"}),
		exports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "savefile",
			Name:      "exports_total",
			Help:      "Save files exported.",
		}),
		backfilled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "facts_backfilled_total",
			Help:      "Facts embedded by the backfill job.",
		}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_runs_total",
			Help:      "Scheduled job executions by job and result.",
		}, []string{"job", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Gateway requests by route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Gateway request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.embedCalls, m.embedDuration, m.modelState,
		m.importEntities, m.exports, m.backfilled, m.jobRuns,
		m.httpRequests, m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// ObserveEmbed records one embedding request.
func (m *Metrics) ObserveEmbed(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.embedCalls.WithLabelValues(outcome).Inc()
	if outcome == EmbedOK {
		m.embedDuration.Observe(d.Seconds())
	}
}

// SetModelState marks state as the current model state among states.
func (m *Metrics) SetModelState(state string, states ...string) {
	if m == nil {
		return
	}
	for _, s := range states {
		m.modelState.WithLabelValues(s).Set(0)
	}
	m.modelState.WithLabelValues(state).Set(1)
}

// AddImport records the outcome of one import.
func (m *Metrics) AddImport(imported, skipped int) {
	if m == nil {
		return
	}
	m.importEntities.WithLabelValues("imported").Add(float64(imported))
	m.importEntities.WithLabelValues("skipped").Add(float64(skipped))
}

// IncExport records one export.
func (m *Metrics) IncExport() {
	if m == nil {
		return
	}
	m.exports.Inc()
}

// AddBackfilled records facts embedded by the backfill job.
func (m *Metrics) AddBackfilled(n int) {
	if m == nil {
		return
	}
	m.backfilled.Add(float64(n))
}

// ObserveJob records one scheduled job run.
func (m *Metrics) ObserveJob(job string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.jobRuns.WithLabelValues(job, result).Inc()
}

// ObserveHTTP records one served request. route is the matched route
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
