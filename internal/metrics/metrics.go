// Package metrics provides Prometheus metrics for the chat relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks registered relay connections by role.
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chat_relay_active_connections",
			Help: "Number of connections currently joined to the relay",
		},
		[]string{"role"},
	)

	// MessagesRelayed counts persisted messages by sender type.
	MessagesRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_relay_messages_total",
			Help: "Total number of chat messages persisted and fanned out",
		},
		[]string{"sender_type"},
	)

	// PersistenceFailures counts conversation store errors by operation.
	PersistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_relay_persistence_failures_total",
			Help: "Total number of conversation store failures",
		},
		[]string{"operation"},
	)

	// PresenceEvents counts presence broadcasts by event name.
	PresenceEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_relay_presence_events_total",
			Help: "Total number of presence transitions broadcast",
		},
		[]string{"event"},
	)

	// ReadReceipts counts messages moved to read.
	ReadReceipts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_relay_read_receipts_total",
			Help: "Total number of messages marked read",
		},
	)

	// NotificationsDropped counts offline notifications skipped while the notifier was saturated.
	NotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_relay_notifications_dropped_total",
			Help: "Total number of offline notifications dropped because the notifier was busy",
		},
	)

	// PersistDuration tracks conversation store append latency.
	PersistDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_relay_persist_duration_seconds",
			Help:    "Duration of conversation store appends",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)
)

func RecordConnectionJoined(role string) {
	ActiveConnections.WithLabelValues(role).Inc()
}

func RecordConnectionLeft(role string) {
	ActiveConnections.WithLabelValues(role).Dec()
}

func RecordPresence(event string) {
	PresenceEvents.WithLabelValues(event).Inc()
}
