// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// WSConnectionsActive tracks live gateway connections.
	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	// WSConnectionAttempts tracks gateway handshakes by result.
	WSConnectionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_connection_attempts_total",
			Help: "WebSocket connection attempts by result",
		},
		[]string{"result"},
	)

	// PresenceUsers tracks users with at least one live connection.
	PresenceUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "presence_users",
			Help: "Users with at least one live connection",
		},
	)

	// EventsTotal tracks inbound gateway events.
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_events_total",
			Help: "Inbound gateway events by event and status",
		},
		[]string{"event", "status"},
	)

	// EventDuration tracks inbound event handling time.
	EventDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ws_event_duration_seconds",
			Help:    "Inbound gateway event handling duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"event"},
	)

	// MessagesTotal tracks persisted chat messages.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Total chat messages persisted",
		},
		[]string{"kind"},
	)

	// DeliveriesTotal tracks outbound pushes to live connections.
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_deliveries_total",
			Help: "Outbound pushes to live connections by result",
		},
		[]string{"event", "result"},
	)

	// SSEConnectionsActive tracks open conversation streams.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE conversation streams",
		},
	)

	// UserCacheRequests tracks user cache lookups.
	UserCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "user_cache_requests_total",
			Help: "User cache lookups by result",
		},
		[]string{"result"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordEvent records metrics for one inbound gateway event.
func RecordEvent(event, status string, duration float64) {
	EventsTotal.WithLabelValues(event, status).Inc()
	EventDuration.WithLabelValues(event).Observe(duration)
}

// RecordDelivery records one outbound push.
func RecordDelivery(event string, delivered bool) {
	result := "delivered"
	if !delivered {
		result = "dropped"
	}
	DeliveriesTotal.WithLabelValues(event, result).Inc()
}

// IncrementWSConnections increments the active connection count.
func IncrementWSConnections() {
	WSConnectionsActive.Inc()
}

// DecrementWSConnections decrements the active connection count.
func DecrementWSConnections() {
	WSConnectionsActive.Dec()
}

// IncrementSSEConnections increments the active SSE stream count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE stream count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
