// Package metrics defines the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Room / broadcast metrics
var (
	// RoomConnectedClients tracks WebSocket sessions across all rooms.
	RoomConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "room_connected_clients",
			Help: "Currently connected WebSocket sessions across all rooms",
		},
	)

	// RoomResumesTotal counts room actor starts (cold starts and resumes).
	RoomResumesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "room_actor_resumes_total",
			Help: "Room actor starts, both first references and resumes after suspension",
		},
	)

	// RoomSuspendsTotal counts idle room actor suspensions.
	RoomSuspendsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "room_actor_suspends_total",
			Help: "Room actors suspended after their idle timeout",
		},
	)

	// BroadcastsTotal counts broadcast events by event type.
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "room_broadcasts_total",
			Help: "Broadcast events fanned out, by event type",
		},
		[]string{"type"},
	)

	// BroadcastSendFailuresTotal counts per-session delivery failures.
	BroadcastSendFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "room_broadcast_send_failures_total",
			Help: "Per-session broadcast sends that failed (slow or departed peers)",
		},
	)
)

// Vote ledger metrics
var (
	// VoteTogglesTotal counts toggle outcomes ("added", "removed", "error").
	VoteTogglesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vote_toggles_total",
			Help: "Vote toggles applied, by resulting state",
		},
		[]string{"result"},
	)

	// VoteToggleConflictsTotal counts toggles retried after losing a race.
	VoteToggleConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vote_toggle_conflicts_total",
			Help: "Vote toggle transactions retried after a uniqueness conflict",
		},
	)
)

// Redis metrics
var (
	// RedisOpsTotal tracks Redis operations by command and status.
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total Redis operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// RedisOpDuration tracks Redis operation latency in seconds.
	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// RedisConnectionErrors tracks Redis connection errors.
	RedisConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_connection_errors_total",
			Help: "Total Redis connection errors",
		},
	)
)

// Image store metrics
var (
	// ImagesStoredTotal counts accepted image uploads.
	ImagesStoredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "images_stored_total",
			Help: "Images accepted and written to the store",
		},
	)
)
