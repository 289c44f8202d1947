package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/platformbuilds/mirador-alerting/internal/metrics"
	"github.com/platformbuilds/mirador-alerting/internal/models"
	"github.com/platformbuilds/mirador-alerting/pkg/logger"
)

// ActionExecutor performs one escalation side effect. Implementations must
// not panic; a failed action is reported through the error return.
type ActionExecutor interface {
	Execute(ctx context.Context, action models.EscalationAction, alert *models.Alert, level int) error
}

// escalationEntry is the manager's record of one running escalation.
type escalationEntry struct {
	alert  *models.Alert
	policy *models.EscalationPolicy
	state  models.EscalationState
}

// EscalationManager runs timed, multi-level response policies per alert
// until the alert is acknowledged, resolved, or suppressed. The manager owns
// its own lock; callers never hold another component's lock while calling
// in, and action execution happens outside the critical section.
type EscalationManager struct {
	mu       sync.RWMutex
	policies map[string]*models.EscalationPolicy
	active   map[string]*escalationEntry // keyed by alert id
	executor ActionExecutor
	logger   logger.Logger
	now      func() time.Time
}

func NewEscalationManager(executor ActionExecutor, log logger.Logger) *EscalationManager {
	return &EscalationManager{
		policies: make(map[string]*models.EscalationPolicy),
		active:   make(map[string]*escalationEntry),
		executor: executor,
		logger:   log.With("component", "escalation-manager"),
		now:      time.Now,
	}
}

// AddEscalationPolicy registers a policy under the given id. A policy with
// no levels is an administrator mistake, rejected at registration.
func (m *EscalationManager) AddEscalationPolicy(id string, policy *models.EscalationPolicy) error {
	if policy == nil {
		return fmt.Errorf("escalation policy %q is nil", id)
	}
	if len(policy.Levels) == 0 {
		return fmt.Errorf("escalation policy %q has no levels", id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	policy.ID = id
	m.policies[id] = policy
	return nil
}

// GetEscalationPolicies returns a snapshot of the registered policies.
func (m *EscalationManager) GetEscalationPolicies() []*models.EscalationPolicy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	policies := make([]*models.EscalationPolicy, 0, len(m.policies))
	for _, policy := range m.policies {
		policies = append(policies, policy)
	}
	return policies
}

// StartEscalation begins the policy's level 0 countdown for the alert.
// Returns false when the policy is unknown or an escalation is already
// running for that alert.
func (m *EscalationManager) StartEscalation(alert *models.Alert, policyID string) bool {
	now := m.now()
	alertID := alert.Snapshot().ID

	m.mu.Lock()
	defer m.mu.Unlock()

	policy, ok := m.policies[policyID]
	if !ok {
		m.logger.Warn("escalation start skipped: unknown policy", "policy", policyID, "alert_id", alertID)
		return false
	}
	if _, running := m.active[alertID]; running {
		return false
	}
	if len(policy.Levels) == 0 {
		return false
	}

	m.active[alertID] = &escalationEntry{
		alert:  alert,
		policy: policy,
		state: models.EscalationState{
			ID:        uuid.New().String(),
			AlertID:   alertID,
			PolicyID:  policyID,
			Level:     0,
			StartedAt: now,
			NextDue:   now.Add(policy.Levels[0].Delay()),
		},
	}

	metrics.EscalationsStartedTotal.WithLabelValues(policyID).Inc()
	m.logger.Info("escalation started",
		"alert_id", alertID,
		"policy", policyID,
		"first_due", m.active[alertID].state.NextDue,
	)
	return true
}

// CheckEscalations returns a snapshot of every escalation whose next level
// is due. Escalations whose alert is no longer active are dropped here
// rather than fired.
func (m *EscalationManager) CheckEscalations() []models.EscalationState {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	var due []models.EscalationState
	for alertID, entry := range m.active {
		if !entry.alert.IsActive(now) {
			delete(m.active, alertID)
			m.logger.Debug("escalation dropped: alert no longer active", "alert_id", alertID)
			continue
		}
		if entry.state.Level >= len(entry.policy.Levels) {
			// Completed; awaits cleanup.
			continue
		}
		if !now.Before(entry.state.NextDue) {
			due = append(due, entry.state)
		}
	}
	return due
}

// ProcessEscalation fires the due level's actions and advances the
// escalation. Every action is attempted: a failing action is logged and
// flips the overall success flag but never aborts its siblings. After the
// last level the escalation stays registered, completed, until the cleanup
// worker reaps it.
func (m *EscalationManager) ProcessEscalation(ctx context.Context, state models.EscalationState) bool {
	m.mu.RLock()
	entry, ok := m.active[state.AlertID]
	if !ok || entry.state.ID != state.ID {
		m.mu.RUnlock()
		return false
	}
	level := entry.state.Level
	if level >= len(entry.policy.Levels) {
		m.mu.RUnlock()
		return false
	}
	actions := entry.policy.Levels[level].Actions
	alert := entry.alert
	m.mu.RUnlock()

	// Side effects run outside the lock.
	success := true
	for _, action := range actions {
		if err := m.executor.Execute(ctx, action, alert, level); err != nil {
			m.logger.Error("escalation action failed",
				"alert_id", state.AlertID,
				"policy", state.PolicyID,
				"level", level,
				"action", action.Type,
				"error", err,
			)
			metrics.EscalationActionsTotal.WithLabelValues(string(action.Type), "failure").Inc()
			success = false
			continue
		}
		metrics.EscalationActionsTotal.WithLabelValues(string(action.Type), "success").Inc()
	}

	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	// The escalation may have been stopped while actions were running.
	entry, ok = m.active[state.AlertID]
	if !ok || entry.state.ID != state.ID {
		return success
	}

	entry.state.Level++
	alert.SetEscalationLevel(entry.state.Level)

	if entry.state.Level < len(entry.policy.Levels) {
		entry.state.NextDue = now.Add(entry.policy.Levels[entry.state.Level].Delay())
		m.logger.Info("escalation advanced",
			"alert_id", state.AlertID,
			"policy", state.PolicyID,
			"level", entry.state.Level,
			"next_due", entry.state.NextDue,
		)
	} else {
		m.logger.Info("escalation completed all levels",
			"alert_id", state.AlertID,
			"policy", state.PolicyID,
		)
	}
	return success
}

// StopEscalation removes the running escalation for an alert, if any. Used
// by acknowledge, resolve, and suppress.
func (m *EscalationManager) StopEscalation(alertID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[alertID]; !ok {
		return false
	}
	delete(m.active, alertID)
	m.logger.Info("escalation stopped", "alert_id", alertID)
	return true
}

// CleanupCompletedEscalations reaps escalations that ran out of levels or
// whose alert is no longer active.
func (m *EscalationManager) CleanupCompletedEscalations() {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for alertID, entry := range m.active {
		if entry.state.Level >= len(entry.policy.Levels) || !entry.alert.IsActive(now) {
			delete(m.active, alertID)
			m.logger.Debug("escalation reaped", "alert_id", alertID)
		}
	}
}

// ActiveEscalationCount reports how many escalations are registered,
// including completed ones not yet reaped.
func (m *EscalationManager) ActiveEscalationCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}
