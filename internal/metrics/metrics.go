// Package metrics provides Prometheus metrics for feedwatch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "feedwatch"
)

// Engine metrics
var (
	// CheckPassesTotal counts monitoring passes over feed item batches.
	CheckPassesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "check_passes_total",
			Help:      "Total number of feed item check passes",
		},
	)

	// ItemsEvaluated counts feed items evaluated against alert rules.
	ItemsEvaluated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "items_evaluated_total",
			Help:      "Total number of feed items evaluated",
		},
	)

	// TriggersTotal counts created alert triggers by priority.
	TriggersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "triggers_total",
			Help:      "Total number of alert triggers created",
		},
		[]string{"priority"},
	)

	// SubscriberPanics counts recovered panics in subscriber callbacks.
	SubscriberPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "subscriber_panics_total",
			Help:      "Total number of recovered subscriber callback panics",
		},
	)
)

// Notifier metrics
var (
	// NotificationsSent counts notifications delivered by channel.
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "notifications_sent_total",
			Help:      "Total number of notifications sent",
		},
		[]string{"channel"},
	)

	// NotificationsDropped counts notifications dropped by the rate limiter.
	NotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "notifications_dropped_total",
			Help:      "Total number of notifications dropped due to rate limiting",
		},
	)

	// DispatchErrors counts failed channel deliveries by channel.
	DispatchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "dispatch_errors_total",
			Help:      "Total number of failed notification deliveries",
		},
		[]string{"channel"},
	)
)

// HTTP metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, path and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// HTTPRequestsInFlight tracks currently executing HTTP requests.
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served",
		},
	)
)

// Storage metrics
var (
	// HistoryEvictions counts trigger history rows evicted by rotation.
	HistoryEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "history_evictions_total",
			Help:      "Total number of trigger history entries evicted by rotation",
		},
	)
)
