package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-alerting/internal/models"
)

const sampleRulesYAML = `
alert_rules:
  - id: high-cpu
    name: High CPU Usage
    metric_name: cpu_usage_percent
    condition: ">"
    threshold: 80
    severity: high
    notification_channels: [slack, email]
    escalation_policies: [default]
    tags:
      category: resources
    enabled: true

escalation_policies:
  - id: default
    name: Default
    levels:
      - delay_minutes: 5
        actions:
          - type: notify
            target: oncall
      - delay_minutes: 15
        actions:
          - type: page

correlation_rules:
  - id: by-category
    match_severity: high
    group_by: [tags.category]
`

func TestLoadRulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRulesYAML), 0o644))

	spec, err := LoadRulesFile(path)
	require.NoError(t, err)

	require.Len(t, spec.AlertRules, 1)
	rule := spec.AlertRules[0]
	assert.Equal(t, "high-cpu", rule.ID)
	assert.Equal(t, "cpu_usage_percent", rule.MetricName)
	assert.Equal(t, ">", rule.Condition)
	assert.Equal(t, 80.0, rule.Threshold)
	assert.Equal(t, models.SeverityHigh, rule.Severity)
	assert.Equal(t, []models.ChannelKind{models.ChannelSlack, models.ChannelEmail}, rule.NotificationChannels)
	assert.True(t, rule.Enabled)

	require.Len(t, spec.EscalationPolicies, 1)
	policy := spec.EscalationPolicies[0]
	require.Len(t, policy.Levels, 2)
	assert.Equal(t, 5, policy.Levels[0].DelayMinutes)
	assert.Equal(t, models.ActionNotify, policy.Levels[0].Actions[0].Type)
	assert.Equal(t, "oncall", policy.Levels[0].Actions[0].Target)

	require.Len(t, spec.CorrelationRules, 1)
	assert.Equal(t, []string{"tags.category"}, spec.CorrelationRules[0].GroupBy)
	assert.Equal(t, models.SeverityHigh, spec.CorrelationRules[0].MatchSeverity)
}

func TestLoadRulesFileErrors(t *testing.T) {
	_, err := LoadRulesFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("alert_rules: [not: valid: yaml"), 0o644))
	_, err = LoadRulesFile(path)
	assert.Error(t, err)
}

func TestDefaultRulesSpec(t *testing.T) {
	spec := DefaultRulesSpec()

	require.NotEmpty(t, spec.AlertRules)
	for _, rule := range spec.AlertRules {
		assert.NotEmpty(t, rule.ID)
		assert.NotEmpty(t, rule.MetricName)
		assert.True(t, rule.Enabled)
		assert.True(t, rule.Severity.Valid())
	}

	require.Len(t, spec.EscalationPolicies, 1)
	assert.Len(t, spec.EscalationPolicies[0].Levels, 3)

	assert.Len(t, spec.CorrelationRules, 2)
	for _, rule := range spec.CorrelationRules {
		assert.NotEmpty(t, rule.GroupBy)
	}
}
