package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load loads configuration with priority order:
// 1. Environment variables (MIRADOR_ALERTING_ prefix)
// 2. Configuration file (config.yaml)
// 3. Default values
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/mirador-alerting/")
	v.AddConfigPath("./configs/")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("MIRADOR_ALERTING")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with env vars and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")

	v.SetDefault("alerting.history_limit", 1000)
	v.SetDefault("alerting.escalation_interval", 30*time.Second)
	v.SetDefault("alerting.escalation_backoff", 60*time.Second)
	v.SetDefault("alerting.cleanup_interval", 300*time.Second)
	v.SetDefault("alerting.cleanup_backoff", 600*time.Second)
	v.SetDefault("alerting.rules_file", "")
	v.SetDefault("alerting.watch_rules", false)
	v.SetDefault("alerting.dashboard_cache_ttl", 15*time.Second)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", 300)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allow_credentials", false)

	v.SetDefault("integrations.email.smtp_port", 587)
}

func validateConfig(config *Config) error {
	if config.Port < 1 || config.Port > 65535 {
		return fmt.Errorf("invalid port: %d", config.Port)
	}
	if config.Alerting.HistoryLimit < 1 {
		return fmt.Errorf("alerting.history_limit must be positive, got %d", config.Alerting.HistoryLimit)
	}
	if config.Alerting.EscalationInterval <= 0 {
		return fmt.Errorf("alerting.escalation_interval must be positive")
	}
	if config.Alerting.CleanupInterval <= 0 {
		return fmt.Errorf("alerting.cleanup_interval must be positive")
	}
	switch config.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level: %q", config.LogLevel)
	}
	return nil
}
