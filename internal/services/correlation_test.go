package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-alerting/internal/models"
	"github.com/platformbuilds/mirador-alerting/pkg/logger"
)

func newTestAlert(id, ruleID string, severity models.AlertSeverity, tags map[string]string) *models.Alert {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return models.NewAlert(models.AlertData{
		ID:        id,
		RuleID:    ruleID,
		RuleName:  ruleID,
		Severity:  severity,
		Status:    models.StatusActive,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func TestCorrelationEngineGroupsByKey(t *testing.T) {
	engine := NewCorrelationEngine(logger.NewNop())
	require.NoError(t, engine.AddCorrelationRule(&models.CorrelationRule{
		ID:      "by-service",
		GroupBy: []string{"tags.service"},
	}))

	a1 := newTestAlert("a1", "r1", models.SeverityHigh, map[string]string{"service": "api"})
	a2 := newTestAlert("a2", "r2", models.SeverityLow, map[string]string{"service": "api"})
	a3 := newTestAlert("a3", "r3", models.SeverityHigh, map[string]string{"service": "db"})

	key1, ok := engine.CorrelateAlert(a1)
	require.True(t, ok)
	key2, ok := engine.CorrelateAlert(a2)
	require.True(t, ok)
	key3, ok := engine.CorrelateAlert(a3)
	require.True(t, ok)

	assert.Equal(t, key1, key2, "same service lands in same group")
	assert.NotEqual(t, key1, key3)

	groups := engine.GetActiveGroups()
	require.Len(t, groups, 2)
}

func TestCorrelationEngineFirstMatchWins(t *testing.T) {
	engine := NewCorrelationEngine(logger.NewNop())
	require.NoError(t, engine.AddCorrelationRule(&models.CorrelationRule{
		ID:            "critical-first",
		MatchSeverity: models.SeverityCritical,
		GroupBy:       []string{"severity"},
	}))
	require.NoError(t, engine.AddCorrelationRule(&models.CorrelationRule{
		ID:      "catch-all",
		GroupBy: []string{"tags.service"},
	}))

	critical := newTestAlert("a1", "r1", models.SeverityCritical, map[string]string{"service": "api"})
	key, ok := engine.CorrelateAlert(critical)
	require.True(t, ok)
	assert.Equal(t, "critical", key, "earlier rule claims the alert")

	low := newTestAlert("a2", "r2", models.SeverityLow, map[string]string{"service": "api"})
	key, ok = engine.CorrelateAlert(low)
	require.True(t, ok)
	assert.Equal(t, "api", key)
}

func TestCorrelationEngineNoMatch(t *testing.T) {
	engine := NewCorrelationEngine(logger.NewNop())
	require.NoError(t, engine.AddCorrelationRule(&models.CorrelationRule{
		ID:            "critical-only",
		MatchSeverity: models.SeverityCritical,
		GroupBy:       []string{"severity"},
	}))

	low := newTestAlert("a1", "r1", models.SeverityLow, nil)
	_, ok := engine.CorrelateAlert(low)
	assert.False(t, ok)
	assert.Empty(t, engine.GetActiveGroups())
}

func TestCorrelationEngineRejectsInvalidRules(t *testing.T) {
	engine := NewCorrelationEngine(logger.NewNop())

	assert.Error(t, engine.AddCorrelationRule(nil))
	assert.Error(t, engine.AddCorrelationRule(&models.CorrelationRule{ID: "no-groupby"}))
	assert.Error(t, engine.AddCorrelationRule(&models.CorrelationRule{
		ID:              "bad-pattern",
		RuleNamePattern: "(",
		GroupBy:         []string{"severity"},
	}))
	assert.Error(t, engine.AddCorrelationRule(&models.CorrelationRule{
		ID:      "bad-cond-regex",
		GroupBy: []string{"severity"},
		Conditions: []models.FieldCondition{
			{Field: "rule_name", Operator: models.OpRegex, Value: "("},
		},
	}))
}

func TestCorrelationEngineCleanup(t *testing.T) {
	engine := NewCorrelationEngine(logger.NewNop())
	require.NoError(t, engine.AddCorrelationRule(&models.CorrelationRule{
		ID:      "by-service",
		GroupBy: []string{"tags.service"},
	}))

	a1 := newTestAlert("a1", "r1", models.SeverityHigh, map[string]string{"service": "api"})
	a2 := newTestAlert("a2", "r2", models.SeverityHigh, map[string]string{"service": "api"})
	_, ok := engine.CorrelateAlert(a1)
	require.True(t, ok)
	_, ok = engine.CorrelateAlert(a2)
	require.True(t, ok)

	a1.Resolve("op", time.Now())
	engine.CleanupResolvedAlerts()

	groups := engine.GetActiveGroups()
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Alerts, 1)
	assert.Equal(t, "a2", groups[0].Alerts[0].ID)

	// Resolving the last member removes the group entirely.
	a2.Resolve("op", time.Now())
	engine.CleanupResolvedAlerts()
	assert.Empty(t, engine.GetActiveGroups())
}

func TestCorrelationEngineReplaceRulesKeepsGroups(t *testing.T) {
	engine := NewCorrelationEngine(logger.NewNop())
	require.NoError(t, engine.AddCorrelationRule(&models.CorrelationRule{
		ID:      "by-service",
		GroupBy: []string{"tags.service"},
	}))

	a1 := newTestAlert("a1", "r1", models.SeverityHigh, map[string]string{"service": "api"})
	_, ok := engine.CorrelateAlert(a1)
	require.True(t, ok)

	engine.ReplaceRules([]*models.CorrelationRule{
		{ID: "by-severity", GroupBy: []string{"severity"}},
	})

	// Existing groups survive a reload; new alerts use the new rules.
	require.Len(t, engine.GetActiveGroups(), 1)

	a2 := newTestAlert("a2", "r2", models.SeverityHigh, map[string]string{"service": "db"})
	key, ok := engine.CorrelateAlert(a2)
	require.True(t, ok)
	assert.Equal(t, "high", key)
}
