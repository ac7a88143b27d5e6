package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Realtime metrics for monitoring the coordination layer
var (
	// Presence metrics
	PresenceOnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "presence_online_users",
		Help: "Current number of users with a live connection",
	})

	PresenceSnapshotBroadcastTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presence_snapshot_broadcast_total",
		Help: "Total number of online-users snapshot broadcasts",
	})

	PresenceReplacedConnectionTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presence_replaced_connection_total",
		Help: "Total number of connections replaced by a newer one for the same user",
	})

	// Typing metrics
	TypingEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "typing_events_total",
		Help: "Total number of typing indicator events forwarded",
	}, []string{"kind"}) // "typing", "stop", "auto_stop"

	// Delivery metrics
	DeliveryPushTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_push_total",
		Help: "Total number of realtime message delivery pushes",
	}, []string{"status"}) // "delivered", "offline", "send_failed"

	// Signaling metrics
	SignalRelayTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_relay_total",
		Help: "Total number of relayed signaling payloads",
	}, []string{"kind", "status"}) // kind: offer/answer/ice, status: relayed/dropped/stale

	// Call session metrics
	CallSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "call_sessions_active",
		Help: "Current number of live call sessions",
	})

	CallsFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calls_finished_total",
		Help: "Total number of finished calls by type and final status",
	}, []string{"call_type", "status"})

	CallDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "call_duration_seconds",
		Help:    "Distribution of accepted call durations",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	}, []string{"call_type"})

	CallStaleEventTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "call_stale_event_total",
		Help: "Total number of call events swallowed because the session was gone",
	}, []string{"event"})

	CallSessionConflictTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "call_session_conflict_total",
		Help: "Total number of call initiations rejected due to an existing session",
	})

	// Message metrics
	MessagesCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "messages_created_total",
		Help: "Total number of persisted chat messages by content type",
	}, []string{"message_type"}) // "text", "image"

	// Dispatch metrics
	DispatchPanicTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_panic_total",
		Help: "Total number of panics recovered during inbound event dispatch",
	})
)
