// Package metrics exposes Prometheus collectors for upstream fetches,
// aggregations and HTTP requests.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/vaughan-dsouza/postagg/internal/errors"
	"github.com/vaughan-dsouza/postagg/internal/worker"
)

const namespace = "postagg"

// Metrics owns a private registry so several instances can coexist in tests.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	fetchDuration       *prometheus.HistogramVec
	aggregations        *prometheus.CounterVec
	aggregationDuration *prometheus.HistogramVec
	requests            *prometheus.CounterVec
	activeRequests      prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of upstream collection fetches.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source", "outcome"}),
		aggregations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregations_total",
			Help:      "Aggregations by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		aggregationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregation_duration_seconds",
			Help:      "End-to-end duration of fetch and join.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"strategy"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "HTTP requests by method and status.",
		}, []string{"method", "status"}),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_requests",
			Help:      "HTTP requests currently being served.",
		}),
	}

	m.registry.MustRegister(
		m.fetchDuration,
		m.aggregations,
		m.aggregationDuration,
		m.requests,
		m.activeRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePool exports the worker pool counters, read from stats at scrape
// time. Call it once per pool.
func (m *Metrics) ObservePool(stats func() worker.Stats) {
	if m == nil {
		return
	}
	gauge := func(name, help string, value func(worker.Stats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return value(stats()) })
	}
	counter := func(name, help string, value func(worker.Stats) float64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return value(stats()) })
	}

	m.registry.MustRegister(
		gauge("workers", "Configured worker goroutines.",
			func(s worker.Stats) float64 { return float64(s.Workers) }),
		gauge("active_tasks", "Tasks currently running.",
			func(s worker.Stats) float64 { return float64(s.Active) }),
		gauge("pending_tasks", "Tasks queued but not yet started.",
			func(s worker.Stats) float64 { return float64(s.Pending) }),
		counter("completed_tasks_total", "Tasks that returned normally.",
			func(s worker.Stats) float64 { return float64(s.Completed) }),
		counter("panicked_tasks_total", "Tasks that panicked.",
			func(s worker.Stats) float64 { return float64(s.Panicked) }),
	)
}

func (m *Metrics) ObserveFetch(source string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(source, Outcome(err)).Observe(took.Seconds())
}

func (m *Metrics) ObserveAggregation(strategy string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.aggregations.WithLabelValues(strategy, Outcome(err)).Inc()
	m.aggregationDuration.WithLabelValues(strategy).Observe(took.Seconds())
}

func (m *Metrics) ObserveRequest(method string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

func (m *Metrics) IncrementActiveRequests() {
	if m != nil {
		m.activeRequests.Inc()
	}
}

func (m *Metrics) DecrementActiveRequests() {
	if m != nil {
		m.activeRequests.Dec()
	}
}

// Outcome classifies err into a low-cardinality label value.
func Outcome(err error) string {
	var (
		transportErr apperrors.TransportError
		decodeErr    apperrors.DecodeError
		joinErr      apperrors.JoinIntegrityError
	)
	switch {
	case err == nil:
		return "ok"
	case apperrors.IsContextError(err):
		return "timeout"
	case errors.As(err, &transportErr):
		return "transport"
	case errors.As(err, &decodeErr):
		return "decode"
	case errors.As(err, &joinErr):
		return "join"
	default:
		return "error"
	}
}
