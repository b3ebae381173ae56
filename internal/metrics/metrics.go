// Package metrics exposes the fleet simulator's Prometheus instrumentation,
// grounded in the teacher's promauto usage (internal/metrics/metrics.go).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks the number of sessions currently holding a
	// live WebSocket connection to the CSMS.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fleetsim_active_connections",
		Help: "The total number of sessions with a live CSMS connection.",
	})

	// SessionsByState is registered for the session count per lifecycle
	// state; no code in this module sets it.
	SessionsByState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fleetsim_sessions_by_state",
		Help: "Number of sessions currently in each lifecycle state.",
	}, []string{"state"})

	// MessagesReceived counts inbound OCPP text frames, labeled by OCPP
	// version and message type. The transport counts each frame before
	// decoding it, always with message_type "frame", so Call, CallResult and
	// CallError are not told apart.
	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetsim_messages_received_total",
		Help: "Total number of OCPP frames received from the CSMS.",
	}, []string{"ocpp_version", "message_type"})

	// MessagesSent counts outbound CALLs written to the socket, labeled by
	// OCPP action.
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetsim_messages_sent_total",
		Help: "Total number of outbound CALLs sent to the CSMS.",
	}, []string{"action"})

	// EventsPublished counts TNR events forwarded to the recorder sink,
	// labeled by event kind.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetsim_events_published_total",
		Help: "Total number of TNR events published to the recorder sink.",
	}, []string{"event_type"})

	// PendingCallBacklog is registered for the per-session outstanding CALL
	// count; no code in this module sets it.
	PendingCallBacklog = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fleetsim_pending_call_backlog",
		Help: "Number of outbound CALLs awaiting a response, per session.",
	}, []string{"session_id"})

	// MessageProcessingDuration is registered for dispatch handler latency,
	// labeled by OCPP action; no code in this module observes into it.
	MessageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleetsim_message_processing_duration_seconds",
		Help:    "Histogram of inbound CALL handling times.",
		Buckets: prometheus.LinearBuckets(0.001, 0.005, 10),
	}, []string{"action"})
)