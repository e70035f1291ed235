package satori

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for a client. Each client gets its
// own registry so several clients can coexist in one process.
type Metrics struct {
	ConnectionState *prometheus.GaugeVec
	EventsReceived  *prometheus.CounterVec
	EventsDropped   *prometheus.CounterVec
	EventsHandled   *prometheus.CounterVec
	Reconnects      *prometheus.CounterVec
	Heartbeats      *prometheus.CounterVec
	ActionsTotal    *prometheus.CounterVec
	ActionDuration  *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		ConnectionState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "satori_connection_state",
				Help: "Session state per endpoint (0=idle 1=connecting 2=identifying 3=active 4=closing 5=failed).",
			},
			[]string{"endpoint"},
		),
		EventsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "satori_events_received_total",
				Help: "Total event envelopes received per endpoint.",
			},
			[]string{"endpoint"},
		),
		EventsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "satori_events_dropped_total",
				Help: "Total events dropped before dispatch by reason.",
			},
			[]string{"endpoint", "reason"},
		),
		EventsHandled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "satori_events_handled_total",
				Help: "Total events delivered to the handler per endpoint.",
			},
			[]string{"endpoint"},
		),
		Reconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "satori_reconnects_total",
				Help: "Total reconnect attempts per endpoint.",
			},
			[]string{"endpoint"},
		),
		Heartbeats: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "satori_heartbeats_total",
				Help: "Total PING frames sent per endpoint.",
			},
			[]string{"endpoint"},
		),
		ActionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "satori_actions_total",
				Help: "Total HTTP action calls by action and outcome.",
			},
			[]string{"action", "status"},
		),
		ActionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "satori_action_duration_seconds",
				Help:    "HTTP action call duration by action.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action"},
		),
		registry: reg,
	}

	reg.MustRegister(m.ConnectionState)
	reg.MustRegister(m.EventsReceived)
	reg.MustRegister(m.EventsDropped)
	reg.MustRegister(m.EventsHandled)
	reg.MustRegister(m.Reconnects)
	reg.MustRegister(m.Heartbeats)
	reg.MustRegister(m.ActionsTotal)
	reg.MustRegister(m.ActionDuration)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) setState(endpoint string, s SessionState) {
	m.ConnectionState.WithLabelValues(endpoint).Set(float64(s))
}

func (m *Metrics) recordEvent(endpoint string) {
	m.EventsReceived.WithLabelValues(endpoint).Inc()
}

func (m *Metrics) recordDrop(endpoint, reason string) {
	m.EventsDropped.WithLabelValues(endpoint, reason).Inc()
}

func (m *Metrics) recordHandled(endpoint string) {
	m.EventsHandled.WithLabelValues(endpoint).Inc()
}

func (m *Metrics) recordReconnect(endpoint string) {
	m.Reconnects.WithLabelValues(endpoint).Inc()
}

func (m *Metrics) recordHeartbeat(endpoint string) {
	m.Heartbeats.WithLabelValues(endpoint).Inc()
}

func (m *Metrics) recordAction(action, status string) {
	m.ActionsTotal.WithLabelValues(action, status).Inc()
}

func (m *Metrics) observeAction(action string, seconds float64) {
	m.ActionDuration.WithLabelValues(action).Observe(seconds)
}
