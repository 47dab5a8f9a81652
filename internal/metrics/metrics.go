// Package metrics exposes conversation counters for Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	Intents            *prometheus.CounterVec
	Effects            *prometheus.CounterVec
	ExtractionFailures prometheus.Counter
	StorageFailures    *prometheus.CounterVec
	Duplicates         prometheus.Counter
	TurnDuration       prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sportsreport",
			Name:      "intents_total",
			Help:      "Inbound messages by extracted intent kind.",
		}, []string{"kind"}),
		Effects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sportsreport",
			Name:      "effects_total",
			Help:      "Storage effects applied by the conversation service.",
		}, []string{"effect"}),
		ExtractionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sportsreport",
			Name:      "extraction_failures_total",
			Help:      "Messages whose intent could not be extracted.",
		}),
		StorageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sportsreport",
			Name:      "storage_failures_total",
			Help:      "Storage operations that failed after retries.",
		}, []string{"op"}),
		Duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sportsreport",
			Name:      "duplicate_messages_total",
			Help:      "Redelivered messages that were skipped.",
		}),
		TurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sportsreport",
			Name:      "turn_duration_seconds",
			Help:      "Time to handle one inbound message.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(
		m.Intents,
		m.Effects,
		m.ExtractionFailures,
		m.StorageFailures,
		m.Duplicates,
		m.TurnDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
