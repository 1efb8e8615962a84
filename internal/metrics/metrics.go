// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors the subsystems report into.
type Metrics struct {
	registry *prometheus.Registry

	MessagesAppended prometheus.Counter
	Joins            *prometheus.CounterVec
	RequestsResolved *prometheus.CounterVec
	FanoutEvents     *prometheus.CounterVec
	Interruptions    prometheus.Counter
	ActiveSessions   prometheus.Gauge
}

// New creates a Metrics set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		MessagesAppended: factory.NewCounter(prometheus.CounterOpts{
			Name: "studycircle_messages_appended_total",
			Help: "Messages appended to the chat log.",
		}),
		Joins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "studycircle_joins_total",
			Help: "Successful group joins by group kind.",
		}, []string{"kind"}),
		RequestsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "studycircle_requests_resolved_total",
			Help: "Join requests resolved by decision.",
		}, []string{"decision"}),
		FanoutEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "studycircle_fanout_events_total",
			Help: "Fan-out events consumed by sessions, by event kind.",
		}, []string{"kind"}),
		Interruptions: factory.NewCounter(prometheus.CounterOpts{
			Name: "studycircle_fanout_interruptions_total",
			Help: "Realtime channel interruptions observed by sessions.",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "studycircle_sessions_active",
			Help: "Currently open group sessions.",
		}),
	}
}

// Handler returns the scrape endpoint for this metrics set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
