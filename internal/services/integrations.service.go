package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"sort"
	"strings"
	"time"

	"github.com/platformbuilds/mirador-alerting/internal/config"
	"github.com/platformbuilds/mirador-alerting/internal/models"
	"github.com/platformbuilds/mirador-alerting/pkg/cache"
	"github.com/platformbuilds/mirador-alerting/pkg/logger"
)

// IntegrationsService delivers alert notifications to external systems:
// Slack, MS Teams, SMTP email, and generic webhooks. Delivery configuration
// is the static config overlaid with per-channel values from the external
// configuration store (Valkey, "alerting:channel:<kind>" keys).
//
// Each send is one attempt with a bounded timeout; retries are the delivery
// provider's concern, not the engine's.
type IntegrationsService struct {
	config config.IntegrationsConfig
	cache  cache.Valkey
	client *http.Client
	logger logger.Logger
}

func NewIntegrationsService(cfg config.IntegrationsConfig, valkey cache.Valkey, log logger.Logger) *IntegrationsService {
	return &IntegrationsService{
		config: cfg,
		cache:  valkey,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: log,
	}
}

// BuildNotification renders the channel-independent summary for an alert.
func BuildNotification(d models.AlertData) *models.Notification {
	return &models.Notification{
		ID:      fmt.Sprintf("alert-%s-%d", d.ID, d.NotificationCount),
		AlertID: d.ID,
		Title:   fmt.Sprintf("[%s] %s", strings.ToUpper(string(d.Severity)), d.RuleName),
		Message: fmt.Sprintf("%s (current: %s, threshold: %s %s)",
			d.Message,
			models.FormatValue(d.MetricValue),
			d.Condition,
			models.FormatValue(d.Threshold)),
		Severity:  d.Severity,
		Status:    d.Status,
		Metric:    d.MetricName,
		Value:     d.MetricValue,
		Threshold: d.Threshold,
		Tags:      d.Tags,
		Timestamp: d.UpdatedAt,
	}
}

// channelOverlay merges external config-store values for a channel kind into
// target, which must be a pointer to the channel's config struct. Absence of
// a stored value is not an error.
func (s *IntegrationsService) channelOverlay(ctx context.Context, kind models.ChannelKind, target interface{}) {
	if s.cache == nil {
		return
	}
	b, err := s.cache.Get(ctx, cache.ChannelConfigKey(string(kind)))
	if err != nil {
		return
	}
	if err := json.Unmarshal(b, target); err != nil {
		s.logger.Warn("ignoring malformed channel config from store", "channel", kind, "error", err)
	}
}

// SendSlackNotification posts a severity-colored attachment to Slack.
func (s *IntegrationsService) SendSlackNotification(ctx context.Context, notification *models.Notification) error {
	cfg := s.config.Slack
	s.channelOverlay(ctx, models.ChannelSlack, &cfg)
	if !cfg.Enabled {
		return nil
	}

	slackPayload := map[string]interface{}{
		"channel": cfg.Channel,
		"attachments": []map[string]interface{}{
			{
				"color":     slackColor(notification.Severity),
				"title":     notification.Title,
				"text":      notification.Message,
				"timestamp": notification.Timestamp.Unix(),
				"fields": []map[string]interface{}{
					{"title": "Metric", "value": notification.Metric, "short": true},
					{"title": "Severity", "value": string(notification.Severity), "short": true},
					{"title": "Status", "value": string(notification.Status), "short": true},
					{"title": "Tags", "value": formatTags(notification.Tags), "short": false},
				},
			},
		},
	}

	if err := s.postJSON(ctx, cfg.WebhookURL, nil, slackPayload); err != nil {
		return fmt.Errorf("slack notification failed: %w", err)
	}

	s.logger.Info("Slack notification sent", "alert_id", notification.AlertID, "severity", notification.Severity)
	return nil
}

// SendTeamsNotification sends an MS Teams MessageCard.
func (s *IntegrationsService) SendTeamsNotification(ctx context.Context, notification *models.Notification) error {
	cfg := s.config.MSTeams
	s.channelOverlay(ctx, models.ChannelTeams, &cfg)
	if !cfg.Enabled {
		return nil
	}

	teamsPayload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"summary":    notification.Title,
		"themeColor": teamsColor(notification.Severity),
		"sections": []map[string]interface{}{
			{
				"activityTitle":    notification.Title,
				"activitySubtitle": notification.Metric,
				"text":             notification.Message,
				"facts": []map[string]interface{}{
					{"name": "Severity", "value": string(notification.Severity)},
					{"name": "Status", "value": string(notification.Status)},
					{"name": "Time", "value": notification.Timestamp.Format(time.RFC3339)},
					{"name": "Tags", "value": formatTags(notification.Tags)},
				},
			},
		},
	}

	if err := s.postJSON(ctx, cfg.WebhookURL, nil, teamsPayload); err != nil {
		return fmt.Errorf("ms teams notification failed: %w", err)
	}

	s.logger.Info("MS Teams notification sent", "alert_id", notification.AlertID, "severity", notification.Severity)
	return nil
}

// SendEmailNotification sends an email alert using SMTP with optional auth.
func (s *IntegrationsService) SendEmailNotification(ctx context.Context, notification *models.Notification) error {
	cfg := s.config.Email
	s.channelOverlay(ctx, models.ChannelEmail, &cfg)
	if !cfg.Enabled {
		return nil
	}
	if cfg.SMTPHost == "" || cfg.SMTPPort == 0 || cfg.FromAddress == "" {
		return fmt.Errorf("email integration not properly configured")
	}

	recipients := cfg.Recipients
	if len(recipients) == 0 {
		recipients = []string{cfg.FromAddress}
	}

	safeFrom, err := sanitizeEmailHeader("from address", cfg.FromAddress)
	if err != nil {
		return err
	}
	safeRecipients := make([]string, 0, len(recipients))
	for _, recipient := range recipients {
		safeRecipient, err := sanitizeEmailHeader("recipient", recipient)
		if err != nil {
			return err
		}
		safeRecipients = append(safeRecipients, safeRecipient)
	}
	safeTitle, err := sanitizeEmailHeader("title", notification.Title)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("[Mirador Alerting] %s", safeTitle)
	body := fmt.Sprintf(
		"Metric: %s\nSeverity: %s\nStatus: %s\nTime: %s\nTags: %s\n\n%s",
		notification.Metric,
		notification.Severity,
		notification.Status,
		notification.Timestamp.Format(time.RFC3339),
		formatTags(notification.Tags),
		notification.Message,
	)

	var msgBuilder strings.Builder
	msgBuilder.WriteString("From: ")
	msgBuilder.WriteString(safeFrom)
	msgBuilder.WriteString("\r\n")
	msgBuilder.WriteString("To: ")
	msgBuilder.WriteString(strings.Join(safeRecipients, ","))
	msgBuilder.WriteString("\r\n")
	msgBuilder.WriteString("Subject: ")
	msgBuilder.WriteString(subject)
	msgBuilder.WriteString("\r\n\r\n")
	msgBuilder.WriteString(body)

	addr := fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort)
	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.SMTPHost)
	}

	if err := smtp.SendMail(addr, auth, safeFrom, safeRecipients, []byte(msgBuilder.String())); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("Email notification sent", "alert_id", notification.AlertID, "to", safeRecipients)
	return nil
}

// SendWebhookNotification POSTs the raw notification to the configured
// generic webhook.
func (s *IntegrationsService) SendWebhookNotification(ctx context.Context, notification *models.Notification) error {
	cfg := s.config.Webhook
	s.channelOverlay(ctx, models.ChannelWebhook, &cfg)
	if !cfg.Enabled {
		return nil
	}

	if err := s.postJSON(ctx, cfg.URL, cfg.Headers, notification); err != nil {
		return fmt.Errorf("webhook notification failed: %w", err)
	}

	s.logger.Info("Webhook notification sent", "alert_id", notification.AlertID, "url", cfg.URL)
	return nil
}

// PostJSON delivers an arbitrary payload to a URL. Escalation side effects
// (paging, ticketing, escalation webhooks) go through here.
func (s *IntegrationsService) PostJSON(ctx context.Context, url string, payload interface{}) error {
	return s.postJSON(ctx, url, nil, payload)
}

// TicketingURL returns the configured ticketing endpoint.
func (s *IntegrationsService) TicketingURL() string { return s.config.TicketingURL }

// PagingURL returns the configured paging endpoint.
func (s *IntegrationsService) PagingURL() string { return s.config.PagingURL }

// WebhookURL returns the configured generic webhook endpoint.
func (s *IntegrationsService) WebhookURL() string { return s.config.Webhook.URL }

func (s *IntegrationsService) postJSON(ctx context.Context, url string, headers map[string]string, payload interface{}) error {
	if url == "" {
		return fmt.Errorf("no endpoint configured")
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return nil
}

func slackColor(severity models.AlertSeverity) string {
	switch severity {
	case models.SeverityCritical:
		return "danger"
	case models.SeverityHigh:
		return "warning"
	case models.SeverityMedium:
		return "#FFA500"
	default:
		return "good"
	}
}

func teamsColor(severity models.AlertSeverity) string {
	switch severity {
	case models.SeverityCritical:
		return "FF0000"
	case models.SeverityHigh:
		return "FFA500"
	case models.SeverityMedium:
		return "FFD700"
	default:
		return "00FF00"
	}
}

func formatTags(tags map[string]string) string {
	if len(tags) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	items := make([]string, 0, len(keys))
	for _, k := range keys {
		items = append(items, k+"="+tags[k])
	}
	return strings.Join(items, ", ")
}

// sanitizeEmailHeader rejects header values that could break out of email
// headers.
func sanitizeEmailHeader(fieldName, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if strings.ContainsAny(trimmed, "\r\n") {
		return "", fmt.Errorf("%s contains invalid newline characters", fieldName)
	}
	if trimmed == "" {
		return "", fmt.Errorf("%s cannot be empty", fieldName)
	}
	return trimmed, nil
}
