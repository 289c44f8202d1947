package models

import "time"

// ChannelKind identifies a notification delivery channel. The set is closed:
// the notification dispatcher builds one notifier per kind, so adding a kind
// means adding a notifier.
type ChannelKind string

const (
	ChannelSlack   ChannelKind = "slack"
	ChannelTeams   ChannelKind = "teams"
	ChannelEmail   ChannelKind = "email"
	ChannelWebhook ChannelKind = "webhook"
)

// ChannelKinds lists every supported channel kind.
func ChannelKinds() []ChannelKind {
	return []ChannelKind{ChannelSlack, ChannelTeams, ChannelEmail, ChannelWebhook}
}

// AlertRule is the declarative condition and response policy that produces
// alerts. Rules are immutable after registration; evaluation never mutates
// them.
type AlertRule struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	MetricName  string        `json:"metric_name" yaml:"metric_name"`
	Condition   string        `json:"condition" yaml:"condition"` // >, >=, <, <=, ==, !=
	Threshold   float64       `json:"threshold" yaml:"threshold"`
	Severity    AlertSeverity `json:"severity" yaml:"severity"`

	// EvaluationPeriod is stored for display only. Evaluation is always
	// instantaneous on the value passed in; time-windowed aggregation is a
	// known gap that needs its own design before this field does anything.
	EvaluationPeriod time.Duration `json:"evaluation_period,omitempty" yaml:"evaluation_period,omitempty"`

	NotificationChannels []ChannelKind     `json:"notification_channels,omitempty" yaml:"notification_channels,omitempty"`
	EscalationPolicies   []string          `json:"escalation_policies,omitempty" yaml:"escalation_policies,omitempty"`
	Tags                 map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Enabled              bool              `json:"enabled" yaml:"enabled"`
}

// Evaluate reports whether the value satisfies the rule's condition. Pure
// and deterministic. An unrecognized operator evaluates to false so a
// malformed rule can never fire.
func (r *AlertRule) Evaluate(value float64) bool {
	switch r.Condition {
	case ">":
		return value > r.Threshold
	case ">=":
		return value >= r.Threshold
	case "<":
		return value < r.Threshold
	case "<=":
		return value <= r.Threshold
	case "==":
		return value == r.Threshold
	case "!=":
		return value != r.Threshold
	default:
		return false
	}
}
