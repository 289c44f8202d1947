package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platformbuilds/mirador-alerting/internal/models"
)

// RulesSpec is the declarative rule set the engine loads at init and on
// rules-file reloads: alert rules, escalation policies, and correlation
// rules.
type RulesSpec struct {
	AlertRules         []*models.AlertRule        `yaml:"alert_rules"`
	EscalationPolicies []*models.EscalationPolicy `yaml:"escalation_policies"`
	CorrelationRules   []*models.CorrelationRule  `yaml:"correlation_rules"`
}

// LoadRulesFile parses a rules yaml file.
func LoadRulesFile(path string) (*RulesSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	var spec RulesSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	return &spec, nil
}

// DefaultRulesSpec returns the built-in rule set applied when no rules file
// is configured: three threshold rules, one three-level escalation policy,
// and two correlation rules grouping by service tag and severity.
func DefaultRulesSpec() *RulesSpec {
	return &RulesSpec{
		AlertRules: []*models.AlertRule{
			{
				ID:                   "high-response-time",
				Name:                 "High Response Time",
				Description:          "Average response time above 2s",
				MetricName:           "response_time_ms",
				Condition:            ">",
				Threshold:            2000,
				Severity:             models.SeverityHigh,
				EvaluationPeriod:     5 * time.Minute,
				NotificationChannels: []models.ChannelKind{models.ChannelSlack, models.ChannelEmail},
				EscalationPolicies:   []string{"default"},
				Tags:                 map[string]string{"category": "performance"},
				Enabled:              true,
			},
			{
				ID:                   "high-error-rate",
				Name:                 "High Error Rate",
				Description:          "Error rate above 5%",
				MetricName:           "error_rate",
				Condition:            ">",
				Threshold:            0.05,
				Severity:             models.SeverityCritical,
				EvaluationPeriod:     5 * time.Minute,
				NotificationChannels: []models.ChannelKind{models.ChannelSlack, models.ChannelEmail, models.ChannelWebhook},
				EscalationPolicies:   []string{"default"},
				Tags:                 map[string]string{"category": "availability"},
				Enabled:              true,
			},
			{
				ID:                   "high-cpu",
				Name:                 "High CPU Usage",
				Description:          "CPU usage above 80%",
				MetricName:           "cpu_percent",
				Condition:            ">",
				Threshold:            80,
				Severity:             models.SeverityHigh,
				EvaluationPeriod:     5 * time.Minute,
				NotificationChannels: []models.ChannelKind{models.ChannelSlack},
				EscalationPolicies:   []string{"default"},
				Tags:                 map[string]string{"category": "resources"},
				Enabled:              true,
			},
		},
		EscalationPolicies: []*models.EscalationPolicy{
			{
				ID:   "default",
				Name: "Default escalation",
				Levels: []models.EscalationLevel{
					{
						DelayMinutes: 5,
						Actions: []models.EscalationAction{
							{Type: models.ActionNotify, Target: "oncall"},
						},
					},
					{
						DelayMinutes: 15,
						Actions: []models.EscalationAction{
							{Type: models.ActionPage, Target: "oncall"},
							{Type: models.ActionCreateTicket, Target: "ops"},
						},
					},
					{
						DelayMinutes: 30,
						Actions: []models.EscalationAction{
							{Type: models.ActionNotify, Target: "management"},
							{Type: models.ActionWebhook},
						},
					},
				},
			},
		},
		CorrelationRules: []*models.CorrelationRule{
			{
				ID:      "by-service",
				Name:    "Group by service tag",
				GroupBy: []string{"tags.service"},
				Conditions: []models.FieldCondition{
					{Field: "tags.service", Operator: models.OpRegex, Value: ".+"},
				},
			},
			{
				ID:            "critical-by-severity",
				Name:          "Group critical alerts",
				MatchSeverity: models.SeverityCritical,
				GroupBy:       []string{"severity"},
			},
		},
	}
}
