package models

import "time"

// EscalationActionType is the closed set of side effects an escalation level
// can fire.
type EscalationActionType string

const (
	ActionNotify       EscalationActionType = "notify"
	ActionCreateTicket EscalationActionType = "create_ticket"
	ActionPage         EscalationActionType = "page"
	ActionWebhook      EscalationActionType = "webhook"
)

// EscalationAction is one side effect within an escalation level.
type EscalationAction struct {
	Type EscalationActionType `json:"type" yaml:"type"`

	// Target names the recipient: a channel kind for notify, an on-call
	// rotation for page, a queue for create_ticket.
	Target string `json:"target,omitempty" yaml:"target,omitempty"`

	// URL overrides the configured endpoint for webhook actions.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// EscalationLevel is one timed step of a policy: wait DelayMinutes after the
// previous level (or after escalation start for level 0), then fire Actions.
type EscalationLevel struct {
	DelayMinutes int                `json:"delay_minutes" yaml:"delay_minutes"`
	Actions      []EscalationAction `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// Delay returns the level's delay as a duration.
func (l EscalationLevel) Delay() time.Duration {
	return time.Duration(l.DelayMinutes) * time.Minute
}

// EscalationPolicy is a named, ordered list of levels applied to an alert
// until it is acknowledged or resolved.
type EscalationPolicy struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name,omitempty" yaml:"name,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Levels      []EscalationLevel `json:"levels" yaml:"levels"`
}

// EscalationState is a point-in-time view of one running escalation, as
// returned by the manager's due-check. Level is the 0-based index of the
// next level to fire; the escalation is complete once Level reaches the
// policy's level count.
type EscalationState struct {
	ID        string    `json:"id"`
	AlertID   string    `json:"alert_id"`
	PolicyID  string    `json:"policy_id"`
	Level     int       `json:"level"`
	StartedAt time.Time `json:"started_at"`
	NextDue   time.Time `json:"next_due"`
}
