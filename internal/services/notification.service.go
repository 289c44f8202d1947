package services

import (
	"context"

	"github.com/platformbuilds/mirador-alerting/internal/metrics"
	"github.com/platformbuilds/mirador-alerting/internal/models"
	"github.com/platformbuilds/mirador-alerting/pkg/logger"
)

// Notifier delivers one alert summary over one channel kind.
type Notifier interface {
	Send(ctx context.Context, notification *models.Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, notification *models.Notification) error

func (f NotifierFunc) Send(ctx context.Context, notification *models.Notification) error {
	return f(ctx, notification)
}

// NotificationService fans an alert out to its rule's configured channels.
// Channels are independent: one channel's failure is logged and counted but
// never blocks the others, and no delivery error propagates to the caller.
type NotificationService struct {
	notifiers map[models.ChannelKind]Notifier
	logger    logger.Logger
}

// NewNotificationService builds the channel table over the integrations
// service, one notifier per supported kind.
func NewNotificationService(integrations *IntegrationsService, log logger.Logger) *NotificationService {
	return &NotificationService{
		notifiers: map[models.ChannelKind]Notifier{
			models.ChannelSlack:   NotifierFunc(integrations.SendSlackNotification),
			models.ChannelTeams:   NotifierFunc(integrations.SendTeamsNotification),
			models.ChannelEmail:   NotifierFunc(integrations.SendEmailNotification),
			models.ChannelWebhook: NotifierFunc(integrations.SendWebhookNotification),
		},
		logger: log.With("component", "notification-dispatcher"),
	}
}

// Dispatch sends the alert summary to every given channel, returning how
// many channels accepted it.
func (s *NotificationService) Dispatch(ctx context.Context, d models.AlertData, channels []models.ChannelKind) int {
	notification := BuildNotification(d)

	delivered := 0
	for _, channel := range channels {
		notifier, ok := s.notifiers[channel]
		if !ok {
			s.logger.Warn("unknown notification channel, skipping", "channel", channel, "alert_id", d.ID)
			continue
		}
		if err := notifier.Send(ctx, notification); err != nil {
			s.logger.Error("notification delivery failed", "channel", channel, "alert_id", d.ID, "error", err)
			metrics.NotificationsSentTotal.WithLabelValues(string(channel), "failure").Inc()
			continue
		}
		metrics.NotificationsSentTotal.WithLabelValues(string(channel), "success").Inc()
		delivered++
	}
	return delivered
}
