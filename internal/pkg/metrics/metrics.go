/*
Package metrics defines the Prometheus collectors the client exports.

Collectors are registered on a private registry so several engines (and tests) can
coexist in one process; the bridge serves that registry on /metrics.
*/
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "xalvion"

// Metrics groups every collector of one client instance.
type Metrics struct {
	registry *prometheus.Registry

	EventsApplied     *prometheus.CounterVec
	DuplicateMessages prometheus.Counter
	ReconnectAttempts prometheus.Counter
	ConnectionState   prometheus.Gauge
	RESTDuration      *prometheus.HistogramVec
	OutboundDropped   *prometheus.CounterVec
}

// New creates and registers the client's collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		EventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_applied_total",
			Help:      "Events applied to the local state, by event type.",
		}, []string{"type"}),
		DuplicateMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_messages_total",
			Help:      "Message deliveries ignored because the message id was already present.",
		}),
		ReconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Realtime reconnection attempts.",
		}),
		ConnectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Realtime connection state (0 disconnected, 1 connecting, 2 connected, 3 closed).",
		}),
		RESTDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rest_request_duration_seconds",
			Help:      "Latency of backend REST calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		OutboundDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_dropped_total",
			Help:      "Outbound realtime frames dropped because the connection was not open.",
		}, []string{"type"}),
	}

	m.registry.MustRegister(
		m.EventsApplied,
		m.DuplicateMessages,
		m.ReconnectAttempts,
		m.ConnectionState,
		m.RESTDuration,
		m.OutboundDropped,
		prometheus.NewGoCollector(),
	)

	return m
}

// Registry exposes the private registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveREST records the latency of one REST call. status 0 means the request never got a response.
func (m *Metrics) ObserveREST(op string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.RESTDuration.WithLabelValues(op, strconv.Itoa(status)).Observe(took.Seconds())
}

// EventApplied counts one applied event.
func (m *Metrics) EventApplied(eventType string) {
	if m == nil {
		return
	}
	m.EventsApplied.WithLabelValues(eventType).Inc()
}

// DuplicateMessage counts one ignored duplicate delivery.
func (m *Metrics) DuplicateMessage() {
	if m == nil {
		return
	}
	m.DuplicateMessages.Inc()
}

// ReconnectAttempt counts one reconnection attempt.
func (m *Metrics) ReconnectAttempt() {
	if m == nil {
		return
	}
	m.ReconnectAttempts.Inc()
}

// SetConnectionState records the current realtime state.
func (m *Metrics) SetConnectionState(state int) {
	if m == nil {
		return
	}
	m.ConnectionState.Set(float64(state))
}

// Dropped counts one dropped outbound frame.
func (m *Metrics) Dropped(frameType string) {
	if m == nil {
		return
	}
	m.OutboundDropped.WithLabelValues(frameType).Inc()
}
