// Package metrics exposes Prometheus collectors for the BAC engine
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "promille"

// Computation outcomes
const (
	OutcomeComputed = "computed"
	OutcomeCached   = "cached"
	OutcomeFailed   = "failed"
)

// Metrics holds all engine collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions prometheus.Counter
	CacheEntries   prometheus.Gauge

	Computations        *prometheus.CounterVec
	ComputationDuration prometheus.Histogram
	ModelFailures       *prometheus.CounterVec
	Validations         *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Recomputations answered from the cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Recomputations that ran the models.",
		}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Entries evicted in insertion order.",
		}),
		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Current number of cached results.",
		}),
		Computations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "computations_total",
			Help:      "Recomputations by outcome.",
		}, []string{"outcome"}),
		ComputationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "computation_duration_seconds",
			Help:      "Time spent running all selected models.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		ModelFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_failures_total",
			Help:      "Models dropped from a result.",
		}, []string{"model"}),
		Validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_rows_total",
			Help:      "Forensic validation rows by classification.",
		}, []string{"classification"}),
	}

	m.registry.MustRegister(
		m.CacheHits,
		m.CacheMisses,
		m.CacheEvictions,
		m.CacheEntries,
		m.Computations,
		m.ComputationDuration,
		m.ModelFailures,
		m.Validations,
	)

	return m
}

// Registry returns the registry holding the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the collectors in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}

func (m *Metrics) CacheEvicted() {
	if m == nil {
		return
	}
	m.CacheEvictions.Inc()
}

func (m *Metrics) CacheSize(n int) {
	if m == nil {
		return
	}
	m.CacheEntries.Set(float64(n))
}

// ComputationDone records one recomputation
func (m *Metrics) ComputationDone(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Computations.WithLabelValues(outcome).Inc()
	if outcome == OutcomeComputed {
		m.ComputationDuration.Observe(elapsed.Seconds())
	}
}

// ModelFailed counts a model dropped from a result
func (m *Metrics) ModelFailed(model string) {
	if m == nil {
		return
	}
	m.ModelFailures.WithLabelValues(model).Inc()
}

// ValidationRow counts one classified validation row
func (m *Metrics) ValidationRow(classification string) {
	if m == nil {
		return
	}
	m.Validations.WithLabelValues(classification).Inc()
}
