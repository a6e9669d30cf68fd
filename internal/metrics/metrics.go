package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Relay metrics
	MessagesRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devrelay_messages_relayed_total",
			Help: "Total messages persisted and broadcast",
		},
		[]string{"sender_type"}, // "user", "ai" or "system"
	)

	BroadcastFanout = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "devrelay_broadcast_fanout",
			Help:    "Connections reached per broadcast",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)

	RoomJoins = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "devrelay_room_joins_total",
			Help: "Total successful room joins",
		},
	)

	// AI pipeline metrics
	AIInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devrelay_ai_invocations_total",
			Help: "Total AI invocations by outcome",
		},
		[]string{"outcome"}, // "succeeded" or "failed"
	)

	AIGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "devrelay_ai_generation_duration_seconds",
			Help:    "Generation service call latency",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 90},
		},
	)

	// Infrastructure metrics
	HistoryFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "devrelay_history_fetch_duration_seconds",
			Help:    "Join-time history fetch latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		},
	)
)
