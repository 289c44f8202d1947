package models

import "time"

// Notification is the channel-independent summary a notifier delivers.
type Notification struct {
	ID        string            `json:"id"`
	AlertID   string            `json:"alert_id"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Severity  AlertSeverity     `json:"severity"`
	Status    AlertStatus       `json:"status"`
	Metric    string            `json:"metric"`
	Value     float64           `json:"value"`
	Threshold float64           `json:"threshold"`
	Tags      map[string]string `json:"tags,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// AlertQuery filters alert searches. Zero values mean "any".
type AlertQuery struct {
	Severity   AlertSeverity     `json:"severity,omitempty"`
	Status     AlertStatus       `json:"status,omitempty"`
	RuleID     string            `json:"rule_id,omitempty"`
	RuleName   string            `json:"rule_name,omitempty"`
	MetricName string            `json:"metric_name,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
	Limit      int               `json:"limit,omitempty"`
}

// AlertStats aggregates counters for the dashboard.
type AlertStats struct {
	ActiveCount       int `json:"active_count"`
	AcknowledgedCount int `json:"acknowledged_count"`
	SuppressedCount   int `json:"suppressed_count"`
	CriticalCount     int `json:"critical_count"`
	HighCount         int `json:"high_count"`
	MediumCount       int `json:"medium_count"`
	LowCount          int `json:"low_count"`
}

// DashboardData is the read-model the dashboard endpoint serves.
type DashboardData struct {
	Stats         AlertStats  `json:"stats"`
	ActiveAlerts  []AlertData `json:"active_alerts"`
	Groups        []GroupView `json:"groups"`
	RecentHistory []AlertData `json:"recent_history"`
	RuleCount     int         `json:"rule_count"`
	GeneratedAt   time.Time   `json:"generated_at"`
}
