package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/platformbuilds/mirador-alerting/internal/models"
	"github.com/platformbuilds/mirador-alerting/pkg/logger"
)

// newRecordingNotificationService returns a dispatcher whose channels append
// to sent, with failing groups injectable per kind.
func newRecordingNotificationService(sent *[]string, failing map[models.ChannelKind]error) *NotificationService {
	notifiers := make(map[models.ChannelKind]Notifier)
	for _, kind := range models.ChannelKinds() {
		kind := kind
		notifiers[kind] = NotifierFunc(func(ctx context.Context, n *models.Notification) error {
			if err, ok := failing[kind]; ok {
				return err
			}
			*sent = append(*sent, string(kind))
			return nil
		})
	}
	return &NotificationService{
		notifiers: notifiers,
		logger:    logger.NewNop(),
	}
}

func TestDispatchFansOutToAllChannels(t *testing.T) {
	var sent []string
	svc := newRecordingNotificationService(&sent, nil)

	d := models.AlertData{ID: "a1", Severity: models.SeverityHigh}
	delivered := svc.Dispatch(context.Background(), d, []models.ChannelKind{models.ChannelSlack, models.ChannelEmail})

	assert.Equal(t, 2, delivered)
	assert.Equal(t, []string{"slack", "email"}, sent)
}

func TestDispatchChannelFailureIsIsolated(t *testing.T) {
	var sent []string
	svc := newRecordingNotificationService(&sent, map[models.ChannelKind]error{
		models.ChannelSlack: fmt.Errorf("slack down"),
	})

	d := models.AlertData{ID: "a1", Severity: models.SeverityHigh}
	delivered := svc.Dispatch(context.Background(), d,
		[]models.ChannelKind{models.ChannelSlack, models.ChannelTeams, models.ChannelEmail})

	assert.Equal(t, 2, delivered, "failure on one channel never blocks the others")
	assert.Equal(t, []string{"teams", "email"}, sent)
}

func TestDispatchSkipsUnknownChannels(t *testing.T) {
	var sent []string
	svc := newRecordingNotificationService(&sent, nil)

	d := models.AlertData{ID: "a1"}
	delivered := svc.Dispatch(context.Background(), d, []models.ChannelKind{"pigeon", models.ChannelSlack})

	assert.Equal(t, 1, delivered)
	assert.Equal(t, []string{"slack"}, sent)
}

func TestBuildNotification(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d := models.AlertData{
		ID:          "a1",
		RuleName:    "High CPU Usage",
		Severity:    models.SeverityCritical,
		Status:      models.StatusActive,
		Message:     "High CPU Usage: cpu_usage_percent = 92 > 80",
		MetricName:  "cpu_usage_percent",
		MetricValue: 92,
		Threshold:   80,
		Condition:   ">",
		UpdatedAt:   now,
	}

	n := BuildNotification(d)
	assert.Equal(t, "a1", n.AlertID)
	assert.Equal(t, "[CRITICAL] High CPU Usage", n.Title)
	assert.Contains(t, n.Message, "92")
	assert.Contains(t, n.Message, "80")
	assert.Equal(t, now, n.Timestamp)
}
