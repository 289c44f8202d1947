package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-alerting/internal/config"
	"github.com/platformbuilds/mirador-alerting/internal/models"
	"github.com/platformbuilds/mirador-alerting/pkg/logger"
)

func sampleNotification() *models.Notification {
	return BuildNotification(models.AlertData{
		ID:          "a1",
		RuleName:    "High CPU Usage",
		Severity:    models.SeverityCritical,
		Status:      models.StatusActive,
		Message:     "High CPU Usage: cpu_usage_percent = 92 > 80",
		MetricName:  "cpu_usage_percent",
		MetricValue: 92,
		Threshold:   80,
		Condition:   ">",
		Tags:        map[string]string{"service": "api"},
		UpdatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	})
}

func TestSendSlackNotification(t *testing.T) {
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := NewIntegrationsService(config.IntegrationsConfig{
		Slack: config.SlackConfig{Enabled: true, WebhookURL: srv.URL, Channel: "#alerts"},
	}, nil, logger.NewNop())

	require.NoError(t, svc.SendSlackNotification(context.Background(), sampleNotification()))

	assert.Equal(t, "#alerts", captured["channel"])
	attachments := captured["attachments"].([]interface{})
	require.Len(t, attachments, 1)
	att := attachments[0].(map[string]interface{})
	assert.Equal(t, "[CRITICAL] High CPU Usage", att["title"])
}

func TestSendSlackNotificationDisabled(t *testing.T) {
	svc := NewIntegrationsService(config.IntegrationsConfig{}, nil, logger.NewNop())
	assert.NoError(t, svc.SendSlackNotification(context.Background(), sampleNotification()),
		"disabled channels accept silently")
}

func TestSendSlackNotificationServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := NewIntegrationsService(config.IntegrationsConfig{
		Slack: config.SlackConfig{Enabled: true, WebhookURL: srv.URL},
	}, nil, logger.NewNop())

	assert.Error(t, svc.SendSlackNotification(context.Background(), sampleNotification()))
}

func TestSendTeamsNotification(t *testing.T) {
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := NewIntegrationsService(config.IntegrationsConfig{
		MSTeams: config.MSTeamsConfig{Enabled: true, WebhookURL: srv.URL},
	}, nil, logger.NewNop())

	require.NoError(t, svc.SendTeamsNotification(context.Background(), sampleNotification()))
	assert.Equal(t, "MessageCard", captured["@type"])
}

func TestSendWebhookNotification(t *testing.T) {
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	svc := NewIntegrationsService(config.IntegrationsConfig{
		Webhook: config.WebhookConfig{
			Enabled: true,
			URL:     srv.URL,
			Headers: map[string]string{"X-Api-Key": "secret"},
		},
	}, nil, logger.NewNop())

	require.NoError(t, svc.SendWebhookNotification(context.Background(), sampleNotification()))
	assert.Equal(t, "a1", captured["alert_id"])
}

func TestEscalationActionExecutor(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	log := logger.NewNop()
	integrations := NewIntegrationsService(config.IntegrationsConfig{
		TicketingURL: srv.URL + "/tickets",
		PagingURL:    srv.URL + "/page",
	}, nil, log)
	notifier := NewNotificationService(integrations, log)
	executor := NewEscalationActionExecutor(integrations, notifier, log)

	alert := newTestAlert("a1", "r1", models.SeverityCritical, nil)

	require.NoError(t, executor.Execute(context.Background(),
		models.EscalationAction{Type: models.ActionPage, Target: "oncall"}, alert, 1))
	require.NoError(t, executor.Execute(context.Background(),
		models.EscalationAction{Type: models.ActionCreateTicket}, alert, 1))
	require.NoError(t, executor.Execute(context.Background(),
		models.EscalationAction{Type: models.ActionWebhook, URL: srv.URL + "/hook"}, alert, 2))

	assert.Equal(t, []string{"/page", "/tickets", "/hook"}, paths)

	// Unknown action types are skipped, not fatal.
	assert.NoError(t, executor.Execute(context.Background(),
		models.EscalationAction{Type: "carrier-pigeon"}, alert, 0))
}
