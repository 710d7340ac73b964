// Package config loads daemon configuration with the usual precedence:
// built-in defaults, then ~/.echo/config.yaml, then ./.echo/config.yaml,
// then ECHO_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	echoerrors "github.com/echohq/echo/pkg/errors"
	"github.com/echohq/echo/pkg/executor"
	"github.com/echohq/echo/pkg/guardrail"
	"github.com/echohq/echo/pkg/heartbeat"
)

// Default configuration values exported for documentation and validation
const (
	DefaultHTTPBind          = "127.0.0.1:7411"
	DefaultNATSSubject       = "echo.notify"
	DefaultHeartbeatInterval = 30 * time.Minute
	DefaultLogLevel          = "info"
)

// Config is the complete Echo daemon configuration.
type Config struct {
	Agent     AgentConfig                  `yaml:"agent"`
	Heartbeat heartbeat.Config             `yaml:"heartbeat"`
	Retry     executor.RetryConfig         `yaml:"retry"`
	Policies  []guardrail.PermissionPolicy `yaml:"policies"`
	Notify    NotifyConfig                 `yaml:"notify"`
	Storage   StorageConfig                `yaml:"storage"`
	Logging   LoggingConfig                `yaml:"logging"`
	Server    ServerConfig                 `yaml:"server"`
}

// AgentConfig identifies the agent this daemon runs.
type AgentConfig struct {
	ID          string `yaml:"id"`
	UserID      string `yaml:"user_id"`
	WorkspaceID string `yaml:"workspace_id"`
}

// NotifyConfig controls outbound notifications.
type NotifyConfig struct {
	Enabled bool              `yaml:"enabled"`
	NATS    NATSNotifyConfig  `yaml:"nats"`
	Slack   SlackNotifyConfig `yaml:"slack"`
}

// NATSNotifyConfig configures the event bus publisher.
type NATSNotifyConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// SlackNotifyConfig configures Slack webhook delivery.
type SlackNotifyConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
}

// StorageConfig locates the audit trail database.
type StorageConfig struct {
	AuditDBPath string `yaml:"audit_db_path"`
}

// LoggingConfig controls the JSONL event logs.
type LoggingConfig struct {
	Dir      string `yaml:"dir"`
	MinLevel string `yaml:"min_level"`
}

// ServerConfig controls the status/metrics HTTP listener.
type ServerConfig struct {
	Bind string `yaml:"bind"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	dataDir := filepath.Join(home, ".echo")

	return &Config{
		Agent: AgentConfig{
			ID: "default",
		},
		Heartbeat: heartbeat.Config{
			Enabled:  true,
			Interval: DefaultHeartbeatInterval,
			ActiveHours: heartbeat.ActiveHours{
				Start: 8,
				End:   22,
			},
			Timezone:  "UTC",
			ModelTier: "light",
		},
		Retry: executor.DefaultRetryConfig(),
		Notify: NotifyConfig{
			NATS: NATSNotifyConfig{
				Subject: DefaultNATSSubject,
			},
		},
		Storage: StorageConfig{
			AuditDBPath: filepath.Join(dataDir, "audit.db"),
		},
		Logging: LoggingConfig{
			Dir:      filepath.Join(dataDir, "logs"),
			MinLevel: DefaultLogLevel,
		},
		Server: ServerConfig{
			Bind: DefaultHTTPBind,
		},
	}
}

// Load loads configuration from default locations with proper precedence.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home != "" {
		userConfigPath := filepath.Join(home, ".echo", "config.yaml")
		if err := loadAndMerge(cfg, userConfigPath); err != nil && !os.IsNotExist(err) {
			return nil, echoerrors.Wrap(err, echoerrors.ErrCodeConfigLoad, "loading user config")
		}
	}

	projectConfigPath := filepath.Join(".", ".echo", "config.yaml")
	if err := loadAndMerge(cfg, projectConfigPath); err != nil && !os.IsNotExist(err) {
		return nil, echoerrors.Wrap(err, echoerrors.ErrCodeConfigLoad, "loading project config")
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, echoerrors.Wrap(err, echoerrors.ErrCodeConfigInvalid, "config validation")
	}

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadAndMerge(cfg, path); err != nil {
		return nil, echoerrors.Wrap(err, echoerrors.ErrCodeConfigLoad, "loading config from "+path)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, echoerrors.Wrap(err, echoerrors.ErrCodeConfigInvalid, "config validation")
	}

	return cfg, nil
}

// applyEnvOverrides applies ECHO_* environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ECHO_AGENT_ID"); v != "" {
		cfg.Agent.ID = v
	}
	if v := os.Getenv("ECHO_TIMEZONE"); v != "" {
		cfg.Heartbeat.Timezone = v
	}
	if v := strings.TrimSpace(os.Getenv("ECHO_HEARTBEAT_ENABLED")); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Heartbeat.Enabled = enabled
		}
	}
	if v := strings.TrimSpace(os.Getenv("ECHO_HEARTBEAT_INTERVAL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Heartbeat.Interval = d
		}
	}
	if v := os.Getenv("ECHO_NATS_URL"); v != "" {
		cfg.Notify.NATS.URL = v
		cfg.Notify.NATS.Enabled = true
	}
	if v := os.Getenv("ECHO_SLACK_WEBHOOK_URL"); v != "" {
		cfg.Notify.Slack.WebhookURL = v
		cfg.Notify.Slack.Enabled = true
	}
	if v := os.Getenv("ECHO_SLACK_CHANNEL"); v != "" {
		cfg.Notify.Slack.Channel = v
	}
	if v := os.Getenv("ECHO_AUDIT_DB"); v != "" {
		cfg.Storage.AuditDBPath = v
	}
	if v := os.Getenv("ECHO_LOG_DIR"); v != "" {
		cfg.Logging.Dir = v
	}
	if v := os.Getenv("ECHO_LOG_LEVEL"); v != "" {
		cfg.Logging.MinLevel = v
	}
	if v := os.Getenv("ECHO_HTTP_BIND"); v != "" {
		cfg.Server.Bind = v
	}
}

// Validate checks the configuration for out-of-range values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Agent.ID) == "" {
		return fmt.Errorf("agent.id must not be empty")
	}

	if c.Heartbeat.Interval < 0 {
		return fmt.Errorf("heartbeat.interval must be >= 0")
	}
	hours := c.Heartbeat.ActiveHours
	if hours.Start < 0 || hours.Start > 23 {
		return fmt.Errorf("heartbeat.active_hours.start must be in [0, 23], got %d", hours.Start)
	}
	if hours.End < 1 || hours.End > 24 {
		return fmt.Errorf("heartbeat.active_hours.end must be in [1, 24], got %d", hours.End)
	}
	if hours.Start >= hours.End {
		return fmt.Errorf("heartbeat.active_hours.start must be before end, got %d >= %d", hours.Start, hours.End)
	}
	if tz := strings.TrimSpace(c.Heartbeat.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("invalid heartbeat.timezone %q: %w", tz, err)
		}
	}
	seen := make(map[string]bool, len(c.Heartbeat.Checks))
	for _, check := range c.Heartbeat.Checks {
		if strings.TrimSpace(check.ID) == "" {
			return fmt.Errorf("heartbeat checks must have an id")
		}
		if seen[check.ID] {
			return fmt.Errorf("duplicate heartbeat check id: %s", check.ID)
		}
		seen[check.ID] = true
		switch check.Priority {
		case heartbeat.PriorityHigh, heartbeat.PriorityMedium, heartbeat.PriorityLow:
		default:
			return fmt.Errorf("heartbeat check %s: invalid priority %q", check.ID, check.Priority)
		}
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1")
	}
	if c.Retry.BaseDelay < 0 {
		return fmt.Errorf("retry.base_delay must be >= 0")
	}
	if c.Retry.MaxDelay < 0 {
		return fmt.Errorf("retry.max_delay must be >= 0")
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be >= 1")
	}

	for _, policy := range c.Policies {
		if strings.TrimSpace(policy.Integration) == "" {
			return fmt.Errorf("policies must name an integration")
		}
		if rl := policy.RateLimit; rl != nil {
			if rl.MaxRequests < 0 {
				return fmt.Errorf("policy %s: rate_limit.max_requests must be >= 0", policy.Integration)
			}
			if rl.MaxRequests > 0 && rl.Window <= 0 {
				return fmt.Errorf("policy %s: rate_limit.window must be > 0", policy.Integration)
			}
		}
	}

	if c.Notify.Slack.Enabled && strings.TrimSpace(c.Notify.Slack.WebhookURL) == "" {
		return fmt.Errorf("notify.slack.webhook_url is required when Slack is enabled")
	}

	return nil
}

// PolicyFor returns the permission policy for an integration, or nil.
func (c *Config) PolicyFor(integration string) *guardrail.PermissionPolicy {
	for i := range c.Policies {
		if strings.EqualFold(c.Policies[i].Integration, integration) {
			return &c.Policies[i]
		}
	}
	return nil
}
