package services

import (
	"context"
	"fmt"
	"time"

	"github.com/platformbuilds/mirador-alerting/internal/models"
	"github.com/platformbuilds/mirador-alerting/pkg/logger"
)

// escalationActionExecutor routes the closed set of escalation action types
// onto the integrations service. Unknown action types are logged and
// skipped; they are configuration noise, not failures.
type escalationActionExecutor struct {
	integrations *IntegrationsService
	notifier     *NotificationService
	logger       logger.Logger
}

// NewEscalationActionExecutor wires escalation side effects to the
// integrations and notification services.
func NewEscalationActionExecutor(integrations *IntegrationsService, notifier *NotificationService, log logger.Logger) ActionExecutor {
	return &escalationActionExecutor{
		integrations: integrations,
		notifier:     notifier,
		logger:       log.With("component", "escalation-actions"),
	}
}

// escalationPayload is what paging/ticketing/webhook endpoints receive.
type escalationPayload struct {
	Event     string           `json:"event"`
	Target    string           `json:"target,omitempty"`
	Level     int              `json:"level"`
	Alert     models.AlertData `json:"alert"`
	Timestamp time.Time        `json:"timestamp"`
}

func (e *escalationActionExecutor) Execute(ctx context.Context, action models.EscalationAction, alert *models.Alert, level int) error {
	d := alert.Snapshot()

	switch action.Type {
	case models.ActionNotify:
		notification := BuildNotification(d)
		notification.Title = fmt.Sprintf("[ESCALATION L%d] %s", level, notification.Title)
		if action.Target != "" {
			notification.Message = fmt.Sprintf("Escalated to %s: %s", action.Target, notification.Message)
		}
		delivered := 0
		for kind, notifier := range e.notifier.notifiers {
			if err := notifier.Send(ctx, notification); err != nil {
				e.logger.Error("escalation notify failed", "channel", kind, "alert_id", d.ID, "error", err)
				continue
			}
			delivered++
		}
		if delivered == 0 {
			return fmt.Errorf("escalation notify reached no channel")
		}
		return nil

	case models.ActionPage:
		url := e.integrations.PagingURL()
		if url == "" {
			return fmt.Errorf("no paging endpoint configured")
		}
		return e.integrations.PostJSON(ctx, url, escalationPayload{
			Event:     "page",
			Target:    action.Target,
			Level:     level,
			Alert:     d,
			Timestamp: time.Now(),
		})

	case models.ActionCreateTicket:
		url := e.integrations.TicketingURL()
		if url == "" {
			return fmt.Errorf("no ticketing endpoint configured")
		}
		return e.integrations.PostJSON(ctx, url, escalationPayload{
			Event:     "create_ticket",
			Target:    action.Target,
			Level:     level,
			Alert:     d,
			Timestamp: time.Now(),
		})

	case models.ActionWebhook:
		url := action.URL
		if url == "" {
			url = e.integrations.WebhookURL()
		}
		if url == "" {
			return fmt.Errorf("no webhook endpoint configured")
		}
		return e.integrations.PostJSON(ctx, url, escalationPayload{
			Event:     "escalation",
			Level:     level,
			Alert:     d,
			Timestamp: time.Now(),
		})

	default:
		e.logger.Warn("unknown escalation action type, skipping", "action", action.Type, "alert_id", d.ID)
		return nil
	}
}
