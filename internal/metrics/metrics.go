// Package metrics exposes Prometheus collectors for the collaboration and
// streaming subsystems.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all collectors. Construct with a fresh registry in tests
// to avoid duplicate registration panics.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	MessagesRouted    *prometheus.CounterVec
	BroadcastFailures prometheus.Counter
	EventsEmitted     *prometheus.CounterVec
	RunsActive        prometheus.Gauge
}

// MustNew constructs a Metrics instance using the provided registerer.
// Registration errors panic, mirroring promauto semantics.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collabboard_active_connections",
			Help: "Number of live WebSocket sessions.",
		}),
		MessagesRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collabboard_messages_routed_total",
			Help: "Inbound collaboration messages dispatched, by type.",
		}, []string{"type"}),
		BroadcastFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collabboard_broadcast_failures_total",
			Help: "Per-recipient broadcast delivery failures.",
		}),
		EventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collabboard_agui_events_emitted_total",
			Help: "AG-UI events written to SSE streams, by event type.",
		}, []string{"event"}),
		RunsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collabboard_agent_runs_active",
			Help: "Agent runs currently streaming.",
		}),
	}

	reg.MustRegister(
		m.ActiveConnections,
		m.MessagesRouted,
		m.BroadcastFailures,
		m.EventsEmitted,
		m.RunsActive,
	)
	return m
}
