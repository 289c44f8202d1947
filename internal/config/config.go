package config

import "time"

type Config struct {
	Environment string `mapstructure:"environment" yaml:"environment"`
	Port        int    `mapstructure:"port" yaml:"port"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`

	Alerting     AlertingConfig     `mapstructure:"alerting" yaml:"alerting"`
	Cache        CacheConfig        `mapstructure:"cache" yaml:"cache"`
	CORS         CORSConfig         `mapstructure:"cors" yaml:"cors"`
	Integrations IntegrationsConfig `mapstructure:"integrations" yaml:"integrations"`
}

// AlertingConfig tunes the alerting engine and its background workers.
type AlertingConfig struct {
	// HistoryLimit caps the resolved-alert history ring.
	HistoryLimit int `mapstructure:"history_limit" yaml:"history_limit"`

	// EscalationInterval is how often due escalations are processed;
	// EscalationBackoff is the retry delay after a failed cycle.
	EscalationInterval time.Duration `mapstructure:"escalation_interval" yaml:"escalation_interval"`
	EscalationBackoff  time.Duration `mapstructure:"escalation_backoff" yaml:"escalation_backoff"`

	// CleanupInterval is how often empty correlation groups and completed
	// escalations are pruned; CleanupBackoff is the retry delay after a
	// failed cycle.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
	CleanupBackoff  time.Duration `mapstructure:"cleanup_backoff" yaml:"cleanup_backoff"`

	// RulesFile points at the yaml file carrying alert rules, escalation
	// policies and correlation rules. Empty means built-in defaults only.
	RulesFile  string `mapstructure:"rules_file" yaml:"rules_file"`
	WatchRules bool   `mapstructure:"watch_rules" yaml:"watch_rules"`

	// DashboardCacheTTL bounds staleness of the cached dashboard snapshot.
	DashboardCacheTTL time.Duration `mapstructure:"dashboard_cache_ttl" yaml:"dashboard_cache_ttl"`
}

type CacheConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr     string `mapstructure:"addr" yaml:"addr"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Password string `mapstructure:"password" yaml:"password"`
	TTL      int    `mapstructure:"ttl" yaml:"ttl"` // seconds
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age"`
}

// IntegrationsConfig holds static delivery configuration per notification
// channel. Values may be overridden at send time by the external
// configuration store (see pkg/cache.ChannelConfigKey).
type IntegrationsConfig struct {
	Slack   SlackConfig   `mapstructure:"slack" yaml:"slack"`
	MSTeams MSTeamsConfig `mapstructure:"ms_teams" yaml:"ms_teams"`
	Email   EmailConfig   `mapstructure:"email" yaml:"email"`
	Webhook WebhookConfig `mapstructure:"webhook" yaml:"webhook"`

	// Escalation side-effect endpoints.
	TicketingURL string `mapstructure:"ticketing_url" yaml:"ticketing_url"`
	PagingURL    string `mapstructure:"paging_url" yaml:"paging_url"`
}

type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url" json:"webhook_url"`
	Channel    string `mapstructure:"channel" yaml:"channel" json:"channel"`
}

type MSTeamsConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url" json:"webhook_url"`
}

type EmailConfig struct {
	Enabled     bool     `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	SMTPHost    string   `mapstructure:"smtp_host" yaml:"smtp_host" json:"smtp_host"`
	SMTPPort    int      `mapstructure:"smtp_port" yaml:"smtp_port" json:"smtp_port"`
	Username    string   `mapstructure:"username" yaml:"username" json:"username"`
	Password    string   `mapstructure:"password" yaml:"password" json:"password"`
	FromAddress string   `mapstructure:"from_address" yaml:"from_address" json:"from_address"`
	Recipients  []string `mapstructure:"recipients" yaml:"recipients" json:"recipients"`
}

type WebhookConfig struct {
	Enabled bool              `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	URL     string            `mapstructure:"url" yaml:"url" json:"url"`
	Headers map[string]string `mapstructure:"headers" yaml:"headers" json:"headers"`
}
