// Package metrics exposes Prometheus instrumentation for the tardiness
// pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the pipeline metrics. Each instance carries its own
// registry so tests can construct one without collisions.
type Metrics struct {
	registry *prometheus.Registry

	EventsTotal        *prometheus.CounterVec
	ReplaysTotal       prometheus.Counter
	FailuresTotal      *prometheus.CounterVec
	RecordsTotal       *prometheus.CounterVec
	ProcessingDuration prometheus.Histogram
}

// New constructs and registers metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discipline_tardiness_events_total",
				Help: "Processed attendance events by classification",
			},
			[]string{"classification"},
		),
		ReplaysTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "discipline_tardiness_replays_total",
			Help: "Duplicate attendance events answered from the event log",
		}),
		FailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discipline_tardiness_failures_total",
				Help: "Failed pipeline runs by reason",
			},
			[]string{"reason"},
		),
		RecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discipline_records_created_total",
				Help: "Disciplinary records created by action type",
			},
			[]string{"action_type"},
		),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "discipline_tardiness_processing_seconds",
			Help:    "End-to-end pipeline duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(
		m.EventsTotal,
		m.ReplaysTotal,
		m.FailuresTotal,
		m.RecordsTotal,
		m.ProcessingDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
