package services

import (
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/platformbuilds/mirador-alerting/internal/metrics"
	"github.com/platformbuilds/mirador-alerting/internal/models"
	"github.com/platformbuilds/mirador-alerting/pkg/logger"
)

// CorrelationEngine groups related active alerts under derived keys so
// operators see one grouped incident instead of many alerts. Rules are
// tested in registration order; the first matching rule claims the alert.
// The engine does not own alerts; groups hold references managed by the
// alerting service.
type CorrelationEngine struct {
	mu     sync.RWMutex
	rules  []*models.CorrelationRule
	groups map[string]*models.AlertGroup
	logger logger.Logger
	now    func() time.Time
}

func NewCorrelationEngine(log logger.Logger) *CorrelationEngine {
	return &CorrelationEngine{
		groups: make(map[string]*models.AlertGroup),
		logger: log.With("component", "correlation-engine"),
		now:    time.Now,
	}
}

// AddCorrelationRule appends a rule to the evaluation order. Malformed
// regular expressions and empty group_by lists are administrator mistakes,
// rejected at registration.
func (e *CorrelationEngine) AddCorrelationRule(rule *models.CorrelationRule) error {
	if rule == nil {
		return fmt.Errorf("correlation rule is nil")
	}
	if len(rule.GroupBy) == 0 {
		return fmt.Errorf("correlation rule %q has no group_by fields", rule.ID)
	}
	if rule.RuleNamePattern != "" {
		if _, err := regexp.Compile(rule.RuleNamePattern); err != nil {
			return fmt.Errorf("correlation rule %q has invalid rule_name_pattern: %w", rule.ID, err)
		}
	}
	for _, cond := range rule.Conditions {
		if cond.Operator == models.OpRegex {
			pattern, ok := cond.Value.(string)
			if !ok {
				return fmt.Errorf("correlation rule %q regex condition on %q needs a string pattern", rule.ID, cond.Field)
			}
			if _, err := regexp.Compile(pattern); err != nil {
				return fmt.Errorf("correlation rule %q has invalid regex on %q: %w", rule.ID, cond.Field, err)
			}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, rule)
	return nil
}

// ReplaceRules swaps the whole rule set, used on rules-file reloads.
// Existing groups are kept; new alerts correlate under the new rules.
func (e *CorrelationEngine) ReplaceRules(rules []*models.CorrelationRule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = rules
}

// CorrelateAlert assigns the alert to the group derived by the first
// matching rule. Returns the group key, or false when no rule matched and
// the alert stays ungrouped.
func (e *CorrelationEngine) CorrelateAlert(alert *models.Alert) (string, bool) {
	d := alert.Snapshot()
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, rule := range e.rules {
		if !rule.Matches(d) {
			continue
		}
		key := rule.GroupKey(d)
		group, ok := e.groups[key]
		if !ok {
			group = &models.AlertGroup{
				Key:       key,
				RuleID:    rule.ID,
				CreatedAt: now,
			}
			e.groups[key] = group
		}
		group.Alerts = append(group.Alerts, alert)
		group.UpdatedAt = now

		e.logger.Debug("alert correlated", "alert_id", d.ID, "group", key, "rule", rule.ID)
		return key, true
	}
	return "", false
}

// CleanupResolvedAlerts drops inactive alerts from every group and removes
// groups that became empty.
func (e *CorrelationEngine) CleanupResolvedAlerts() {
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	for key, group := range e.groups {
		active := group.Alerts[:0]
		for _, alert := range group.Alerts {
			if alert.IsActive(now) {
				active = append(active, alert)
			}
		}
		if len(active) == 0 {
			delete(e.groups, key)
			e.logger.Debug("correlation group pruned", "group", key)
			continue
		}
		group.Alerts = active
	}
	metrics.ActiveGroups.Set(float64(len(e.groups)))
}

// GetActiveGroups returns a view of every group still holding at least one
// active alert, alert lists filtered to active members.
func (e *CorrelationEngine) GetActiveGroups() []models.GroupView {
	now := e.now()

	e.mu.RLock()
	defer e.mu.RUnlock()

	views := make([]models.GroupView, 0, len(e.groups))
	for _, group := range e.groups {
		var alerts []models.AlertData
		for _, alert := range group.Alerts {
			if alert.IsActive(now) {
				alerts = append(alerts, alert.Snapshot())
			}
		}
		if len(alerts) == 0 {
			continue
		}
		views = append(views, models.GroupView{
			Key:       group.Key,
			RuleID:    group.RuleID,
			Alerts:    alerts,
			CreatedAt: group.CreatedAt,
			UpdatedAt: group.UpdatedAt,
		})
	}
	return views
}
