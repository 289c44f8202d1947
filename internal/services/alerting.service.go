package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/platformbuilds/mirador-alerting/internal/config"
	"github.com/platformbuilds/mirador-alerting/internal/metrics"
	"github.com/platformbuilds/mirador-alerting/internal/models"
	"github.com/platformbuilds/mirador-alerting/pkg/cache"
	"github.com/platformbuilds/mirador-alerting/pkg/logger"
)

// dashboardCacheKey is where the dashboard snapshot is cached in Valkey.
const dashboardCacheKey = "alerting:dashboard"

// AlertBroadcaster receives every alert creation and state change, e.g. the
// websocket hub pushing live updates to dashboards.
type AlertBroadcaster interface {
	BroadcastAlert(d models.AlertData)
}

// AlertingService owns rule and alert state and orchestrates the whole
// pipeline: metric evaluation, dedup, correlation, notification dispatch,
// and escalation. One coarse lock guards the rule map, the active-alert map,
// and the history ring; notification and escalation side effects always run
// outside it, and the correlation engine and escalation manager synchronize
// themselves.
type AlertingService struct {
	mu      sync.RWMutex
	rules   map[string]*models.AlertRule
	active  map[string]*models.Alert // keyed by alert id
	history []*models.Alert          // FIFO ring, oldest first

	correlation *CorrelationEngine
	escalation  *EscalationManager
	notifier    *NotificationService
	cache       cache.Valkey
	broadcaster AlertBroadcaster

	cfg    config.AlertingConfig
	logger logger.Logger
	now    func() time.Time

	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
}

func NewAlertingService(
	cfg config.AlertingConfig,
	correlation *CorrelationEngine,
	escalation *EscalationManager,
	notifier *NotificationService,
	valkey cache.Valkey,
	log logger.Logger,
) *AlertingService {
	return &AlertingService{
		rules:       make(map[string]*models.AlertRule),
		active:      make(map[string]*models.Alert),
		correlation: correlation,
		escalation:  escalation,
		notifier:    notifier,
		cache:       valkey,
		cfg:         cfg,
		logger:      log.With("component", "alerting-service"),
		now:         time.Now,
		stopCh:      make(chan struct{}),
	}
}

// SetBroadcaster attaches a live-update sink. Must be called before Start.
func (s *AlertingService) SetBroadcaster(b AlertBroadcaster) {
	s.broadcaster = b
}

// ApplySpec registers every rule, escalation policy, and correlation rule of
// a rule spec. Used at init; for reloads see ReloadSpec.
func (s *AlertingService) ApplySpec(spec *config.RulesSpec) error {
	for _, policy := range spec.EscalationPolicies {
		if err := s.escalation.AddEscalationPolicy(policy.ID, policy); err != nil {
			return err
		}
	}
	for _, rule := range spec.CorrelationRules {
		if err := s.correlation.AddCorrelationRule(rule); err != nil {
			return err
		}
	}
	for _, rule := range spec.AlertRules {
		if err := s.AddAlertRule(rule); err != nil {
			return err
		}
	}
	s.logger.Info("rule spec applied",
		"alert_rules", len(spec.AlertRules),
		"escalation_policies", len(spec.EscalationPolicies),
		"correlation_rules", len(spec.CorrelationRules),
	)
	return nil
}

// ReloadSpec replaces the alert rule set and correlation rules and upserts
// escalation policies. Active alerts and running escalations are untouched;
// a reload never drops live state.
func (s *AlertingService) ReloadSpec(spec *config.RulesSpec) {
	for _, policy := range spec.EscalationPolicies {
		if err := s.escalation.AddEscalationPolicy(policy.ID, policy); err != nil {
			s.logger.Error("skipping invalid escalation policy on reload", "policy", policy.ID, "error", err)
		}
	}
	valid := make([]*models.CorrelationRule, 0, len(spec.CorrelationRules))
	for _, rule := range spec.CorrelationRules {
		if len(rule.GroupBy) == 0 {
			s.logger.Error("skipping invalid correlation rule on reload", "rule", rule.ID)
			continue
		}
		valid = append(valid, rule)
	}
	s.correlation.ReplaceRules(valid)

	rules := make(map[string]*models.AlertRule, len(spec.AlertRules))
	for _, rule := range spec.AlertRules {
		if rule.ID == "" {
			continue
		}
		rules[rule.ID] = rule
	}
	s.mu.Lock()
	s.rules = rules
	s.mu.Unlock()

	s.logger.Info("rule spec reloaded", "alert_rules", len(rules))
}

// AddAlertRule registers or silently overwrites a rule by id.
func (s *AlertingService) AddAlertRule(rule *models.AlertRule) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("alert rule needs an id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[rule.ID] = rule
	return nil
}

// RemoveAlertRule removes a rule, reporting whether it existed. Alerts the
// rule already produced stay alive.
func (s *AlertingService) RemoveAlertRule(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return false
	}
	delete(s.rules, id)
	return true
}

// GetAlertRules returns a snapshot of the registered rules.
func (s *AlertingService) GetAlertRules() []*models.AlertRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rules := make([]*models.AlertRule, 0, len(s.rules))
	for _, rule := range s.rules {
		rules = append(rules, rule)
	}
	return rules
}

// GetAlertRule looks up a single rule.
func (s *AlertingService) GetAlertRule(id string) (*models.AlertRule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rule, ok := s.rules[id]
	return rule, ok
}

// EvaluateMetric checks every enabled rule watching the metric against the
// sample. A rule whose condition holds either folds into its existing
// active, non-suppressed alert (dedup: value and timestamp refreshed,
// notification count bumped, nothing returned) or produces a new alert,
// which is correlated, dispatched to the rule's channels, and escalated.
// Only newly created alerts are returned.
func (s *AlertingService) EvaluateMetric(ctx context.Context, metricName string, value float64, timestamp time.Time, tags map[string]string) []*models.Alert {
	now := s.now()
	if timestamp.IsZero() {
		timestamp = now
	}

	type firing struct {
		alert *models.Alert
		rule  *models.AlertRule
	}
	var created []firing

	s.mu.Lock()
	for _, rule := range s.rules {
		if !rule.Enabled || rule.MetricName != metricName || !rule.Evaluate(value) {
			continue
		}

		if existing := s.findActiveForRuleLocked(rule.ID, now); existing != nil {
			existing.RecordTrigger(value, timestamp)
			metrics.AlertsDeduplicatedTotal.WithLabelValues(rule.ID).Inc()
			s.logger.Debug("alert deduplicated", "rule", rule.ID, "value", value)
			continue
		}

		alert := s.buildAlert(rule, metricName, value, timestamp, tags)
		s.active[alert.AlertData.ID] = alert
		created = append(created, firing{alert: alert, rule: rule})
	}
	activeCount := len(s.active)
	s.mu.Unlock()

	metrics.ActiveAlerts.Set(float64(activeCount))

	// Side effects happen after the alerts are safely registered, outside
	// the lock.
	results := make([]*models.Alert, 0, len(created))
	for _, f := range created {
		d := f.alert.Snapshot()
		metrics.AlertsFiredTotal.WithLabelValues(f.rule.ID, string(d.Severity)).Inc()
		s.logger.Info("alert created",
			"alert_id", d.ID,
			"rule", f.rule.ID,
			"severity", d.Severity,
			"metric", metricName,
			"value", value,
		)

		if _, grouped := s.correlation.CorrelateAlert(f.alert); grouped {
			metrics.ActiveGroups.Set(float64(len(s.correlation.GetActiveGroups())))
		}

		if len(f.rule.NotificationChannels) > 0 {
			s.notifier.Dispatch(ctx, d, f.rule.NotificationChannels)
			f.alert.CountNotification()
		}

		for _, policyID := range f.rule.EscalationPolicies {
			s.escalation.StartEscalation(f.alert, policyID)
		}

		if s.broadcaster != nil {
			s.broadcaster.BroadcastAlert(f.alert.Snapshot())
		}
		results = append(results, f.alert)
	}
	return results
}

// findActiveForRuleLocked returns the rule's active, non-suppressed alert if
// one exists. Caller holds s.mu.
func (s *AlertingService) findActiveForRuleLocked(ruleID string, now time.Time) *models.Alert {
	for _, alert := range s.active {
		d := alert.Snapshot()
		if d.RuleID == ruleID && alert.IsActive(now) {
			return alert
		}
	}
	return nil
}

func (s *AlertingService) buildAlert(rule *models.AlertRule, metricName string, value float64, timestamp time.Time, tags map[string]string) *models.Alert {
	merged := make(map[string]string, len(rule.Tags)+len(tags))
	for k, v := range rule.Tags {
		merged[k] = v
	}
	for k, v := range tags {
		merged[k] = v
	}

	message := fmt.Sprintf("%s: %s = %s %s %s",
		rule.Name, metricName, models.FormatValue(value), rule.Condition, models.FormatValue(rule.Threshold))

	return models.NewAlert(models.AlertData{
		ID:          uuid.New().String(),
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		Severity:    rule.Severity,
		Status:      models.StatusActive,
		Message:     message,
		Description: rule.Description,
		MetricName:  metricName,
		MetricValue: value,
		Threshold:   rule.Threshold,
		Condition:   rule.Condition,
		Tags:        merged,
		CreatedAt:   timestamp,
		UpdatedAt:   timestamp,
	})
}

// GetActiveAlerts returns a filtered snapshot of the active map. Suppressed
// alerts are excluded; a lapsed suppression re-includes the alert without
// any explicit call. All given tag key/values must match.
func (s *AlertingService) GetActiveAlerts(severity models.AlertSeverity, tags map[string]string) []models.AlertData {
	now := s.now()

	s.mu.RLock()
	alerts := make([]*models.Alert, 0, len(s.active))
	for _, alert := range s.active {
		alerts = append(alerts, alert)
	}
	s.mu.RUnlock()

	var result []models.AlertData
	for _, alert := range alerts {
		if alert.IsSuppressed(now) {
			continue
		}
		d := alert.Snapshot()
		if severity != "" && d.Severity != severity {
			continue
		}
		if !tagsMatch(d.Tags, tags) {
			continue
		}
		result = append(result, d)
	}
	return result
}

// AcknowledgeAlert marks the alert acknowledged and stops its escalation.
// Returns false for an unknown alert id.
func (s *AlertingService) AcknowledgeAlert(id, user string) bool {
	now := s.now()

	s.mu.Lock()
	alert, ok := s.active[id]
	s.mu.Unlock()
	if !ok {
		return false
	}

	alert.Acknowledge(user, now)
	metrics.AlertTransitionsTotal.WithLabelValues(string(models.StatusAcknowledged)).Inc()
	s.escalation.StopEscalation(id)
	s.logger.Info("alert acknowledged", "alert_id", id, "user", user)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastAlert(alert.Snapshot())
	}
	return true
}

// ResolveAlert removes the alert from the active map, appends it to the
// bounded history ring (oldest entry evicted once full), and stops its
// escalation. Returns false for an unknown alert id.
func (s *AlertingService) ResolveAlert(id, user string) bool {
	now := s.now()

	s.mu.Lock()
	alert, ok := s.active[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.active, id)
	alert.Resolve(user, now)
	s.history = append(s.history, alert)
	if len(s.history) > s.cfg.HistoryLimit {
		s.history = s.history[len(s.history)-s.cfg.HistoryLimit:]
	}
	activeCount := len(s.active)
	s.mu.Unlock()

	metrics.ActiveAlerts.Set(float64(activeCount))
	metrics.AlertTransitionsTotal.WithLabelValues(string(models.StatusResolved)).Inc()
	s.escalation.StopEscalation(id)
	s.logger.Info("alert resolved", "alert_id", id, "user", user)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastAlert(alert.Snapshot())
	}
	return true
}

// SuppressAlert silences the alert for the given number of minutes and
// stops its escalation. The alert resumes automatically once the window
// elapses. Returns false for an unknown alert id.
func (s *AlertingService) SuppressAlert(id string, minutes int, user string) bool {
	now := s.now()

	s.mu.Lock()
	alert, ok := s.active[id]
	s.mu.Unlock()
	if !ok {
		return false
	}

	alert.Suppress(now.Add(time.Duration(minutes)*time.Minute), user, now)
	metrics.AlertTransitionsTotal.WithLabelValues(string(models.StatusSuppressed)).Inc()
	s.escalation.StopEscalation(id)
	s.logger.Info("alert suppressed", "alert_id", id, "minutes", minutes, "user", user)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastAlert(alert.Snapshot())
	}
	return true
}

// SearchAlerts matches the query against active alerts and the history
// ring, newest first.
func (s *AlertingService) SearchAlerts(query models.AlertQuery) []models.AlertData {
	now := s.now()

	s.mu.RLock()
	candidates := make([]*models.Alert, 0, len(s.active)+len(s.history))
	for i := len(s.history) - 1; i >= 0; i-- {
		candidates = append(candidates, s.history[i])
	}
	for _, alert := range s.active {
		candidates = append(candidates, alert)
	}
	s.mu.RUnlock()

	var result []models.AlertData
	for _, alert := range candidates {
		alert.IsSuppressed(now) // lazily revert lapsed suppressions before matching
		d := alert.Snapshot()
		if query.Severity != "" && d.Severity != query.Severity {
			continue
		}
		if query.Status != "" && d.Status != query.Status {
			continue
		}
		if query.RuleID != "" && d.RuleID != query.RuleID {
			continue
		}
		if query.RuleName != "" && d.RuleName != query.RuleName {
			continue
		}
		if query.MetricName != "" && d.MetricName != query.MetricName {
			continue
		}
		if !tagsMatch(d.Tags, query.Tags) {
			continue
		}
		result = append(result, d)
		if query.Limit > 0 && len(result) >= query.Limit {
			break
		}
	}
	return result
}

// GetAlertHistory returns up to limit resolved alerts, newest first.
func (s *AlertingService) GetAlertHistory(limit int) []models.AlertData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	result := make([]models.AlertData, 0, limit)
	for i := len(s.history) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, s.history[i].Snapshot())
	}
	return result
}

// GetActiveGroups exposes the correlation engine's active groups.
func (s *AlertingService) GetActiveGroups() []models.GroupView {
	return s.correlation.GetActiveGroups()
}

// GetDashboardData assembles the dashboard read-model, served from the
// Valkey cache within its TTL.
func (s *AlertingService) GetDashboardData(ctx context.Context) (*models.DashboardData, error) {
	if s.cache != nil {
		if b, err := s.cache.Get(ctx, dashboardCacheKey); err == nil {
			var cached models.DashboardData
			if err := json.Unmarshal(b, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	now := s.now()
	activeAlerts := s.GetActiveAlerts("", nil)

	var stats models.AlertStats
	s.mu.RLock()
	for _, alert := range s.active {
		switch alert.CurrentStatus(now) {
		case models.StatusActive:
			stats.ActiveCount++
		case models.StatusAcknowledged:
			stats.AcknowledgedCount++
		case models.StatusSuppressed:
			stats.SuppressedCount++
		}
		switch alert.Snapshot().Severity {
		case models.SeverityCritical:
			stats.CriticalCount++
		case models.SeverityHigh:
			stats.HighCount++
		case models.SeverityMedium:
			stats.MediumCount++
		case models.SeverityLow:
			stats.LowCount++
		}
	}
	ruleCount := len(s.rules)
	s.mu.RUnlock()

	data := &models.DashboardData{
		Stats:         stats,
		ActiveAlerts:  activeAlerts,
		Groups:        s.correlation.GetActiveGroups(),
		RecentHistory: s.GetAlertHistory(10),
		RuleCount:     ruleCount,
		GeneratedAt:   now,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardCacheKey, data, s.cfg.DashboardCacheTTL); err != nil {
			s.logger.Warn("failed to cache dashboard snapshot", "error", err)
		}
	}
	return data, nil
}

// Start launches the escalation and cleanup workers.
func (s *AlertingService) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(2)
	go s.runEscalationWorker(ctx)
	go s.runCleanupWorker(ctx)
	s.logger.Info("alerting service started",
		"escalation_interval", s.cfg.EscalationInterval,
		"cleanup_interval", s.cfg.CleanupInterval,
	)
}

// Shutdown signals both workers to stop and waits for them, bounded by the
// context deadline.
func (s *AlertingService) Shutdown(ctx context.Context) error {
	close(s.stopCh)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("alerting service stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("alerting service shutdown timed out: %w", ctx.Err())
	}
}

// runEscalationWorker processes due escalations on a fixed interval,
// backing off after a failed cycle. The loop only exits on shutdown.
func (s *AlertingService) runEscalationWorker(ctx context.Context) {
	defer s.wg.Done()

	timer := time.NewTimer(s.cfg.EscalationInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-timer.C:
			start := time.Now()
			err := s.runEscalationCycle(ctx)
			metrics.WorkerCycleDuration.WithLabelValues("escalation").Observe(time.Since(start).Seconds())

			next := s.cfg.EscalationInterval
			if err != nil {
				metrics.WorkerCycleErrors.WithLabelValues("escalation").Inc()
				s.logger.Error("escalation cycle failed, backing off", "error", err, "backoff", s.cfg.EscalationBackoff)
				next = s.cfg.EscalationBackoff
			}
			timer.Reset(next)
		}
	}
}

func (s *AlertingService) runEscalationCycle(ctx context.Context) (err error) {
	// A panic in an action executor must not kill the worker.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("escalation cycle panicked: %v", r)
		}
	}()

	due := s.escalation.CheckEscalations()
	if len(due) == 0 {
		return nil
	}

	failed := 0
	for _, state := range due {
		if !s.escalation.ProcessEscalation(ctx, state) {
			failed++
		}
	}
	s.logger.Info("escalation cycle complete", "due", len(due), "failed_actions", failed)
	return nil
}

// runCleanupWorker prunes empty correlation groups and completed
// escalations on a slow interval.
func (s *AlertingService) runCleanupWorker(ctx context.Context) {
	defer s.wg.Done()

	timer := time.NewTimer(s.cfg.CleanupInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-timer.C:
			start := time.Now()
			err := s.runCleanupCycle()
			metrics.WorkerCycleDuration.WithLabelValues("cleanup").Observe(time.Since(start).Seconds())

			next := s.cfg.CleanupInterval
			if err != nil {
				metrics.WorkerCycleErrors.WithLabelValues("cleanup").Inc()
				s.logger.Error("cleanup cycle failed, backing off", "error", err, "backoff", s.cfg.CleanupBackoff)
				next = s.cfg.CleanupBackoff
			}
			timer.Reset(next)
		}
	}
}

func (s *AlertingService) runCleanupCycle() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cleanup cycle panicked: %v", r)
		}
	}()

	s.correlation.CleanupResolvedAlerts()
	s.escalation.CleanupCompletedEscalations()
	s.logger.Debug("cleanup cycle complete")
	return nil
}

// tagsMatch reports whether every wanted key/value is present in tags.
func tagsMatch(tags, wanted map[string]string) bool {
	for k, v := range wanted {
		if tags[k] != v {
			return false
		}
	}
	return true
}
