package models

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// MatchOperator is the comparison applied by a FieldCondition.
type MatchOperator string

const (
	OpEq    MatchOperator = "eq"
	OpNe    MatchOperator = "ne"
	OpGt    MatchOperator = "gt"
	OpGte   MatchOperator = "gte"
	OpLt    MatchOperator = "lt"
	OpLte   MatchOperator = "lte"
	OpIn    MatchOperator = "in"
	OpRegex MatchOperator = "regex"
)

// FieldCondition compares one alert attribute against a value. Field names
// follow the alert's JSON field names; tag values are addressed as
// "tags.<key>".
type FieldCondition struct {
	Field    string        `json:"field" yaml:"field"`
	Operator MatchOperator `json:"operator" yaml:"operator"`
	Value    interface{}   `json:"value" yaml:"value"`

	// In holds the candidate set for the "in" operator.
	In []string `json:"in,omitempty" yaml:"in,omitempty"`
}

// CorrelationRule is a declarative matcher assigning alerts to groups. Rules
// are tested in registration order; the first rule whose constraints all
// hold claims the alert.
type CorrelationRule struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// All listed tag key/values must match.
	MatchTags map[string]string `json:"match_tags,omitempty" yaml:"match_tags,omitempty"`

	// Empty means any.
	MatchSeverity AlertSeverity `json:"match_severity,omitempty" yaml:"match_severity,omitempty"`
	MatchMetric   string        `json:"match_metric,omitempty" yaml:"match_metric,omitempty"`

	// RuleNamePattern is a regular expression tested against the alert's
	// rule name.
	RuleNamePattern string `json:"rule_name_pattern,omitempty" yaml:"rule_name_pattern,omitempty"`

	Conditions []FieldCondition `json:"conditions,omitempty" yaml:"conditions,omitempty"`

	// GroupBy controls group key construction, in declared order. Valid
	// fields: "severity", "rule_name", "metric_name", "tags" (the whole tag
	// map, serialized as its sorted item list), or "tags.<key>".
	GroupBy []string `json:"group_by" yaml:"group_by"`
}

// groupKeySeparator joins group-by field values into a group key.
const groupKeySeparator = "|"

// Matches reports whether the alert satisfies every constraint of the rule.
func (r *CorrelationRule) Matches(d AlertData) bool {
	for k, v := range r.MatchTags {
		if d.Tags[k] != v {
			return false
		}
	}
	if r.MatchSeverity != "" && d.Severity != r.MatchSeverity {
		return false
	}
	if r.MatchMetric != "" && d.MetricName != r.MatchMetric {
		return false
	}
	if r.RuleNamePattern != "" {
		re, err := regexp.Compile(r.RuleNamePattern)
		if err != nil || !re.MatchString(d.RuleName) {
			return false
		}
	}
	for _, cond := range r.Conditions {
		if !cond.Matches(d) {
			return false
		}
	}
	return true
}

// GroupKey derives the group key for an alert matched by this rule.
func (r *CorrelationRule) GroupKey(d AlertData) string {
	parts := make([]string, 0, len(r.GroupBy))
	for _, field := range r.GroupBy {
		parts = append(parts, fieldString(d, field))
	}
	return strings.Join(parts, groupKeySeparator)
}

// Matches evaluates the condition against the alert. Unknown fields and
// non-numeric values under ordering operators fail the match rather than
// erroring.
func (c *FieldCondition) Matches(d AlertData) bool {
	val, ok := fieldValue(d, c.Field)
	if !ok {
		return false
	}

	switch c.Operator {
	case OpEq:
		return valueString(val) == valueString(c.Value)
	case OpNe:
		return valueString(val) != valueString(c.Value)
	case OpGt, OpGte, OpLt, OpLte:
		a, aok := valueFloat(val)
		b, bok := valueFloat(c.Value)
		if !aok || !bok {
			return false
		}
		switch c.Operator {
		case OpGt:
			return a > b
		case OpGte:
			return a >= b
		case OpLt:
			return a < b
		default:
			return a <= b
		}
	case OpIn:
		candidates := c.In
		if len(candidates) == 0 {
			if list, ok := c.Value.([]interface{}); ok {
				for _, item := range list {
					candidates = append(candidates, valueString(item))
				}
			}
		}
		s := valueString(val)
		for _, candidate := range candidates {
			if s == candidate {
				return true
			}
		}
		return false
	case OpRegex:
		re, err := regexp.Compile(valueString(c.Value))
		if err != nil {
			return false
		}
		return re.MatchString(valueString(val))
	default:
		return false
	}
}

// fieldValue resolves an alert attribute by its JSON field name. Tag values
// are addressed as "tags.<key>".
func fieldValue(d AlertData, field string) (interface{}, bool) {
	if key, ok := strings.CutPrefix(field, "tags."); ok {
		v, ok := d.Tags[key]
		return v, ok
	}
	switch field {
	case "id":
		return d.ID, true
	case "rule_id":
		return d.RuleID, true
	case "rule_name":
		return d.RuleName, true
	case "severity":
		return string(d.Severity), true
	case "status":
		return string(d.Status), true
	case "message":
		return d.Message, true
	case "description":
		return d.Description, true
	case "metric_name":
		return d.MetricName, true
	case "metric_value":
		return d.MetricValue, true
	case "threshold":
		return d.Threshold, true
	case "condition":
		return d.Condition, true
	case "escalation_level":
		return d.EscalationLevel, true
	case "notification_count":
		return d.NotificationCount, true
	case "tags":
		return d.Tags, true
	default:
		return nil, false
	}
}

// fieldString renders a group-by field as a key fragment. The whole tag map
// serializes as its sorted item list so equal maps always produce equal
// fragments.
func fieldString(d AlertData, field string) string {
	val, ok := fieldValue(d, field)
	if !ok {
		return ""
	}
	if tags, ok := val.(map[string]string); ok {
		keys := make([]string, 0, len(tags))
		for k := range tags {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make([]string, 0, len(keys))
		for _, k := range keys {
			items = append(items, k+"="+tags[k])
		}
		return strings.Join(items, ",")
	}
	return valueString(val)
}

func valueString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return FormatValue(x)
	case int:
		return fmt.Sprintf("%d", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func valueFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(x, "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

// AlertGroup is a derived bucket of related alerts sharing a computed key.
// Groups do not own their alerts; the alerting service does.
type AlertGroup struct {
	Key       string    `json:"key"`
	RuleID    string    `json:"rule_id"`
	Alerts    []*Alert  `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GroupView is the serializable form of a group.
type GroupView struct {
	Key       string      `json:"key"`
	RuleID    string      `json:"rule_id"`
	Alerts    []AlertData `json:"alerts"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
