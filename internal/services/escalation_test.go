package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-alerting/internal/models"
	"github.com/platformbuilds/mirador-alerting/pkg/logger"
)

// recordingExecutor captures executed actions for assertions.
type recordingExecutor struct {
	mu      sync.Mutex
	calls   []string
	failOn  models.EscalationActionType
	failErr error
}

func (e *recordingExecutor) Execute(ctx context.Context, action models.EscalationAction, alert *models.Alert, level int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, fmt.Sprintf("L%d:%s", level, action.Type))
	if e.failOn != "" && action.Type == e.failOn {
		return e.failErr
	}
	return nil
}

func (e *recordingExecutor) callLog() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func threeLevelPolicy() *models.EscalationPolicy {
	return &models.EscalationPolicy{
		Name: "Default Escalation",
		Levels: []models.EscalationLevel{
			{DelayMinutes: 5, Actions: []models.EscalationAction{{Type: models.ActionNotify, Target: "oncall"}}},
			{DelayMinutes: 15, Actions: []models.EscalationAction{{Type: models.ActionPage, Target: "oncall"}, {Type: models.ActionCreateTicket}}},
			{DelayMinutes: 30, Actions: []models.EscalationAction{{Type: models.ActionNotify, Target: "management"}}},
		},
	}
}

func TestEscalationPolicyValidation(t *testing.T) {
	m := NewEscalationManager(&recordingExecutor{}, logger.NewNop())

	assert.Error(t, m.AddEscalationPolicy("nil", nil))
	assert.Error(t, m.AddEscalationPolicy("empty", &models.EscalationPolicy{}))
	assert.NoError(t, m.AddEscalationPolicy("default", threeLevelPolicy()))
}

func TestStartEscalation(t *testing.T) {
	m := NewEscalationManager(&recordingExecutor{}, logger.NewNop())
	require.NoError(t, m.AddEscalationPolicy("default", threeLevelPolicy()))

	alert := newTestAlert("a1", "r1", models.SeverityHigh, nil)

	assert.False(t, m.StartEscalation(alert, "missing"), "unknown policy")
	assert.True(t, m.StartEscalation(alert, "default"))
	assert.False(t, m.StartEscalation(alert, "default"), "already escalating")
	assert.Equal(t, 1, m.ActiveEscalationCount())
}

func TestEscalationLevelProgression(t *testing.T) {
	executor := &recordingExecutor{}
	m := NewEscalationManager(executor, logger.NewNop())
	require.NoError(t, m.AddEscalationPolicy("default", threeLevelPolicy()))

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := start
	m.now = func() time.Time { return clock }

	alert := newTestAlert("a1", "r1", models.SeverityHigh, nil)
	require.True(t, m.StartEscalation(alert, "default"))

	// Before the first delay nothing is due.
	clock = start.Add(4 * time.Minute)
	assert.Empty(t, m.CheckEscalations())

	// Level 0 fires at 5 minutes.
	clock = start.Add(5 * time.Minute)
	due := m.CheckEscalations()
	require.Len(t, due, 1)
	assert.True(t, m.ProcessEscalation(context.Background(), due[0]))
	assert.Equal(t, []string{"L0:notify"}, executor.callLog())
	assert.Equal(t, 1, alert.Snapshot().EscalationLevel)

	// Level 1 is due 15 minutes after processing, not after start.
	clock = clock.Add(14 * time.Minute)
	assert.Empty(t, m.CheckEscalations())
	clock = clock.Add(time.Minute)
	due = m.CheckEscalations()
	require.Len(t, due, 1)
	assert.True(t, m.ProcessEscalation(context.Background(), due[0]))
	assert.Equal(t, []string{"L0:notify", "L1:page", "L1:create_ticket"}, executor.callLog())

	// Level 2 at +30 minutes, then the escalation is complete.
	clock = clock.Add(30 * time.Minute)
	due = m.CheckEscalations()
	require.Len(t, due, 1)
	assert.True(t, m.ProcessEscalation(context.Background(), due[0]))
	assert.Equal(t, 3, alert.Snapshot().EscalationLevel)

	// Completed escalations are no longer due but stay registered.
	clock = clock.Add(time.Hour)
	assert.Empty(t, m.CheckEscalations())
	assert.Equal(t, 1, m.ActiveEscalationCount())

	m.CleanupCompletedEscalations()
	assert.Equal(t, 0, m.ActiveEscalationCount())
}

func TestEscalationActionFailureDoesNotAbortSiblings(t *testing.T) {
	executor := &recordingExecutor{failOn: models.ActionPage, failErr: fmt.Errorf("pager down")}
	m := NewEscalationManager(executor, logger.NewNop())
	require.NoError(t, m.AddEscalationPolicy("default", threeLevelPolicy()))

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := start
	m.now = func() time.Time { return clock }

	alert := newTestAlert("a1", "r1", models.SeverityHigh, nil)
	require.True(t, m.StartEscalation(alert, "default"))

	clock = start.Add(5 * time.Minute)
	due := m.CheckEscalations()
	require.Len(t, due, 1)
	require.True(t, m.ProcessEscalation(context.Background(), due[0]))

	clock = clock.Add(15 * time.Minute)
	due = m.CheckEscalations()
	require.Len(t, due, 1)
	assert.False(t, m.ProcessEscalation(context.Background(), due[0]), "failed action reported")

	// The sibling create_ticket still ran and the level still advanced.
	assert.Equal(t, []string{"L0:notify", "L1:page", "L1:create_ticket"}, executor.callLog())
	assert.Equal(t, 2, alert.Snapshot().EscalationLevel)
}

func TestEscalationDropsInactiveAlerts(t *testing.T) {
	m := NewEscalationManager(&recordingExecutor{}, logger.NewNop())
	require.NoError(t, m.AddEscalationPolicy("default", threeLevelPolicy()))

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := start
	m.now = func() time.Time { return clock }

	alert := newTestAlert("a1", "r1", models.SeverityHigh, nil)
	require.True(t, m.StartEscalation(alert, "default"))

	alert.Acknowledge("op", start.Add(time.Minute))

	clock = start.Add(10 * time.Minute)
	assert.Empty(t, m.CheckEscalations())
	assert.Equal(t, 0, m.ActiveEscalationCount(), "inactive alert dropped during check")
}

func TestStopEscalation(t *testing.T) {
	m := NewEscalationManager(&recordingExecutor{}, logger.NewNop())
	require.NoError(t, m.AddEscalationPolicy("default", threeLevelPolicy()))

	alert := newTestAlert("a1", "r1", models.SeverityHigh, nil)
	require.True(t, m.StartEscalation(alert, "default"))

	assert.True(t, m.StopEscalation("a1"))
	assert.False(t, m.StopEscalation("a1"), "already stopped")
	assert.Equal(t, 0, m.ActiveEscalationCount())
}
