package models

import (
	"strconv"
	"sync"
	"time"
)

// AlertSeverity indicates urgency level.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// Level returns a numeric level for comparison (higher = more severe).
func (s AlertSeverity) Level() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Valid reports whether s names a known severity.
func (s AlertSeverity) Valid() bool {
	return s.Level() > 0
}

// AlertStatus tracks the alert lifecycle.
type AlertStatus string

const (
	StatusActive       AlertStatus = "active"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusResolved     AlertStatus = "resolved"
	StatusSuppressed   AlertStatus = "suppressed"
)

// AlertData carries the serializable state of an alert. It is embedded in
// Alert and returned by Snapshot for API responses and websocket broadcasts.
type AlertData struct {
	ID       string        `json:"id"`
	RuleID   string        `json:"rule_id"`
	RuleName string        `json:"rule_name"`
	Severity AlertSeverity `json:"severity"`
	Status   AlertStatus   `json:"status"`

	Message     string `json:"message"`
	Description string `json:"description,omitempty"`

	// Metric snapshot at creation/last-trigger time.
	MetricName  string  `json:"metric_name"`
	MetricValue float64 `json:"metric_value"`
	Threshold   float64 `json:"threshold"`
	Condition   string  `json:"condition"`

	Tags map[string]string `json:"tags,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`

	ResolvedBy string     `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	SuppressedBy    string     `json:"suppressed_by,omitempty"`
	SuppressedUntil *time.Time `json:"suppressed_until,omitempty"`

	EscalationLevel   int `json:"escalation_level"`
	NotificationCount int `json:"notification_count"`
}

// Alert is one live instance of a triggered rule. It is shared by pointer
// between the alerting service, the correlation engine, and the escalation
// manager, each of which runs on its own goroutines; the embedded mutex
// guards all state transitions so callers never need an external lock.
type Alert struct {
	mu sync.Mutex
	AlertData
}

// NewAlert constructs an active alert with both timestamps set to now.
func NewAlert(data AlertData) *Alert {
	if data.Status == "" {
		data.Status = StatusActive
	}
	return &Alert{AlertData: data}
}

// Snapshot returns a copy of the alert state safe to serialize or inspect
// without holding any lock.
func (a *Alert) Snapshot() AlertData {
	a.mu.Lock()
	defer a.mu.Unlock()
	d := a.AlertData
	if a.Tags != nil {
		tags := make(map[string]string, len(a.Tags))
		for k, v := range a.Tags {
			tags[k] = v
		}
		d.Tags = tags
	}
	return d
}

// RecordTrigger updates the alert in place when its rule fires again while
// the alert is still active (dedup path): refresh the observed value and
// timestamp and count the suppressed duplicate notification.
func (a *Alert) RecordTrigger(value float64, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.MetricValue = value
	a.UpdatedAt = now
	a.NotificationCount++
}

// Acknowledge transitions the alert to acknowledged, recording the actor.
func (a *Alert) Acknowledge(user string, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Status = StatusAcknowledged
	a.AcknowledgedBy = user
	t := now
	a.AcknowledgedAt = &t
	a.UpdatedAt = now
}

// Resolve transitions the alert to its terminal state.
func (a *Alert) Resolve(user string, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Status = StatusResolved
	a.ResolvedBy = user
	t := now
	a.ResolvedAt = &t
	a.UpdatedAt = now
}

// Suppress silences the alert until the given deadline. The suppression
// auto-reverts lazily: the first IsSuppressed or IsActive call at or after
// the deadline flips the alert back to active.
func (a *Alert) Suppress(until time.Time, user string, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Status = StatusSuppressed
	a.SuppressedBy = user
	t := until
	a.SuppressedUntil = &t
	a.UpdatedAt = now
}

// IsSuppressed reports whether the alert is currently inside a suppression
// window, reverting it to active once the window has elapsed. Idempotent
// after expiry.
func (a *Alert) IsSuppressed(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.isSuppressedLocked(now)
}

func (a *Alert) isSuppressedLocked(now time.Time) bool {
	if a.Status != StatusSuppressed {
		return false
	}
	if a.SuppressedUntil != nil && now.Before(*a.SuppressedUntil) {
		return true
	}
	// Suppression window over: revert to active.
	a.Status = StatusActive
	a.SuppressedUntil = nil
	a.SuppressedBy = ""
	a.UpdatedAt = now
	return false
}

// IsActive reports whether the alert is active and not suppressed. A lapsed
// suppression counts as active again.
func (a *Alert) IsActive(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.isSuppressedLocked(now) {
		return false
	}
	return a.Status == StatusActive
}

// CurrentStatus returns the status after lazily reverting a lapsed
// suppression.
func (a *Alert) CurrentStatus(now time.Time) AlertStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.isSuppressedLocked(now)
	return a.Status
}

// SetEscalationLevel records how far an escalation policy has progressed for
// this alert.
func (a *Alert) SetEscalationLevel(level int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.EscalationLevel = level
}

// CountNotification increments the delivered-notification counter.
func (a *Alert) CountNotification() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.NotificationCount++
}

// FormatValue renders a metric value the way alert messages display it:
// "85" rather than "85.000000".
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
