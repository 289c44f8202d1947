// Package metrics exposes Prometheus self-monitoring for the alerting engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_alerting_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirador_alerting_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Alert lifecycle metrics
	AlertsFiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_alerting_alerts_fired_total",
			Help: "Total number of alerts created by rule evaluation",
		},
		[]string{"rule", "severity"},
	)

	AlertsDeduplicatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_alerting_alerts_deduplicated_total",
			Help: "Metric triggers folded into an existing active alert",
		},
		[]string{"rule"},
	)

	AlertTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_alerting_alert_transitions_total",
			Help: "Alert state transitions by resulting status",
		},
		[]string{"status"},
	)

	ActiveAlerts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mirador_alerting_active_alerts",
			Help: "Number of alerts currently in the active map",
		},
	)

	ActiveGroups = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mirador_alerting_active_correlation_groups",
			Help: "Number of correlation groups holding at least one active alert",
		},
	)

	// Notification metrics
	NotificationsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_alerting_notifications_sent_total",
			Help: "Notification delivery attempts by channel and result",
		},
		[]string{"channel", "result"}, // result: success/failure
	)

	// Escalation metrics
	EscalationsStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_alerting_escalations_started_total",
			Help: "Escalations started by policy",
		},
		[]string{"policy"},
	)

	EscalationActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_alerting_escalation_actions_total",
			Help: "Escalation actions executed by type and result",
		},
		[]string{"action", "result"},
	)

	// Background worker metrics
	WorkerCycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirador_alerting_worker_cycle_duration_seconds",
			Help:    "Background worker cycle duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"worker"}, // escalation/cleanup
	)

	WorkerCycleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_alerting_worker_cycle_errors_total",
			Help: "Background worker cycles that failed and backed off",
		},
		[]string{"worker"},
	)

	// Valkey cache metrics
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_alerting_cache_requests_total",
			Help: "Total number of cache requests",
		},
		[]string{"operation", "result"}, // get/set/delete, hit/miss/success/error
	)

	// WebSocket stream metrics
	ActiveWebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mirador_alerting_websocket_connections_active",
			Help: "Number of connected alert-stream clients",
		},
	)
)

// RecordCacheOperation tracks a cache operation outcome.
func RecordCacheOperation(operation, result string) {
	CacheRequestsTotal.WithLabelValues(operation, result).Inc()
}
