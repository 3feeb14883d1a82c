// Package metrics exposes Prometheus collectors for frame analysis.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "repcoach"

// Metrics holds the analysis collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	Frames         *prometheus.CounterVec
	Reps           *prometheus.CounterVec
	Violations     *prometheus.CounterVec
	FrameErrors    *prometheus.CounterVec
	ActiveSessions prometheus.Gauge
	FrameDuration  prometheus.Histogram
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Frames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames analyzed, by exercise.",
		}, []string{"exercise"}),
		Reps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reps_total",
			Help:      "Repetitions registered, by exercise.",
		}, []string{"exercise"}),
		Violations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "form_violations_total",
			Help:      "Form violations reported, by exercise and kind.",
		}, []string{"exercise", "kind"}),
		FrameErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_errors_total",
			Help:      "Frames rejected before analysis, by reason.",
		}, []string{"reason"}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Analysis sessions currently open.",
		}),
		FrameDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_duration_seconds",
			Help:      "Time spent analyzing a single frame.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
	}
}

// Observe records the outcome of one analyzed frame.
func (m *Metrics) Observe(exercise string, repCompleted bool, violationKinds []string, took time.Duration) {
	m.Frames.WithLabelValues(exercise).Inc()
	if repCompleted {
		m.Reps.WithLabelValues(exercise).Inc()
	}
	for _, kind := range violationKinds {
		m.Violations.WithLabelValues(exercise, kind).Inc()
	}
	m.FrameDuration.Observe(took.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
