// Package metrics exposes Prometheus collectors for the feed server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "express"

// Verification outcomes.
const (
	OutcomeValid     = "valid"
	OutcomeInvalid   = "invalid"
	OutcomeMalformed = "malformed"
)

// Metrics owns a private registry so several servers can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	cycles         *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	lastCycle      prometheus.Gauge
	currentValue   prometheus.Gauge
	averageValue   prometheus.Gauge
	archiveAppends prometheus.Counter
	verifications  *prometheus.CounterVec
}

// New creates and registers all collectors, including Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_cycles_total",
			Help:      "Feed cycles by result.",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_cycle_duration_seconds",
			Help:      "Time spent building and publishing one cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_last_cycle_timestamp_seconds",
			Help:      "Unix time of the most recent cycle.",
		}),
		currentValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_current_value",
			Help:      "Most recent sample.",
		}),
		averageValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_average_value",
			Help:      "Rolling mean of recent samples.",
		}),
		archiveAppends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_appends_total",
			Help:      "Records appended to the archive.",
		}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verify_requests_total",
			Help:      "Signature verification requests by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cycles,
		m.cycleDuration,
		m.lastCycle,
		m.currentValue,
		m.averageValue,
		m.archiveAppends,
		m.verifications,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CycleResult records one finished feed cycle.
type CycleResult struct {
	Unix     int64
	Seconds  float64
	Current  float64
	Average  float64
	Archived int
	Failed   bool
}

// ObserveCycle updates the feed collectors.
func (m *Metrics) ObserveCycle(r CycleResult) {
	result := "ok"
	if r.Failed {
		result = "error"
	}
	m.cycles.WithLabelValues(result).Inc()
	m.cycleDuration.Observe(r.Seconds)
	m.lastCycle.Set(float64(r.Unix))
	m.currentValue.Set(r.Current)
	m.averageValue.Set(r.Average)
	m.archiveAppends.Add(float64(r.Archived))
}

// ObserveVerify counts one verification request.
func (m *Metrics) ObserveVerify(outcome string) {
	m.verifications.WithLabelValues(outcome).Inc()
}
