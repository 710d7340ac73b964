package config

import (
	"os"

	"gopkg.in/yaml.v3"

	echoerrors "github.com/echohq/echo/pkg/errors"
)

// loadAndMerge loads a YAML file and merges it into the config.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return echoerrors.Wrap(err, echoerrors.ErrCodeConfigParse, "parsing YAML")
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return echoerrors.Wrap(err, echoerrors.ErrCodeConfigParse, "parsing YAML")
	}

	mergeConfigs(cfg, &override, raw)
	return nil
}

// mergeConfigs merges override into base. Bool fields consult the raw
// document so an explicit `false` is not mistaken for "unset".
func mergeConfigs(base, override *Config, raw map[string]any) {
	if override == nil {
		return
	}

	if override.Agent.ID != "" {
		base.Agent.ID = override.Agent.ID
	}
	if override.Agent.UserID != "" {
		base.Agent.UserID = override.Agent.UserID
	}
	if override.Agent.WorkspaceID != "" {
		base.Agent.WorkspaceID = override.Agent.WorkspaceID
	}

	if boolFieldSet(raw, "heartbeat", "enabled") {
		base.Heartbeat.Enabled = override.Heartbeat.Enabled
	}
	if override.Heartbeat.Interval != 0 {
		base.Heartbeat.Interval = override.Heartbeat.Interval
	}
	if len(override.Heartbeat.Checks) > 0 {
		base.Heartbeat.Checks = override.Heartbeat.Checks
	}
	if fieldSet(raw, "heartbeat", "active_hours") {
		base.Heartbeat.ActiveHours = override.Heartbeat.ActiveHours
	}
	if override.Heartbeat.Timezone != "" {
		base.Heartbeat.Timezone = override.Heartbeat.Timezone
	}
	if override.Heartbeat.ModelTier != "" {
		base.Heartbeat.ModelTier = override.Heartbeat.ModelTier
	}

	if override.Retry.MaxAttempts != 0 {
		base.Retry.MaxAttempts = override.Retry.MaxAttempts
	}
	if override.Retry.BaseDelay != 0 {
		base.Retry.BaseDelay = override.Retry.BaseDelay
	}
	if override.Retry.Multiplier != 0 {
		base.Retry.Multiplier = override.Retry.Multiplier
	}
	if override.Retry.MaxDelay != 0 {
		base.Retry.MaxDelay = override.Retry.MaxDelay
	}

	if len(override.Policies) > 0 {
		base.Policies = override.Policies
	}

	if boolFieldSet(raw, "notify", "enabled") {
		base.Notify.Enabled = override.Notify.Enabled
	}
	if boolFieldSet(raw, "notify", "nats", "enabled") {
		base.Notify.NATS.Enabled = override.Notify.NATS.Enabled
	}
	if override.Notify.NATS.URL != "" {
		base.Notify.NATS.URL = override.Notify.NATS.URL
	}
	if override.Notify.NATS.Subject != "" {
		base.Notify.NATS.Subject = override.Notify.NATS.Subject
	}
	if boolFieldSet(raw, "notify", "slack", "enabled") {
		base.Notify.Slack.Enabled = override.Notify.Slack.Enabled
	}
	if override.Notify.Slack.WebhookURL != "" {
		base.Notify.Slack.WebhookURL = override.Notify.Slack.WebhookURL
	}
	if override.Notify.Slack.Channel != "" {
		base.Notify.Slack.Channel = override.Notify.Slack.Channel
	}

	if override.Storage.AuditDBPath != "" {
		base.Storage.AuditDBPath = override.Storage.AuditDBPath
	}
	if override.Logging.Dir != "" {
		base.Logging.Dir = override.Logging.Dir
	}
	if override.Logging.MinLevel != "" {
		base.Logging.MinLevel = override.Logging.MinLevel
	}
	if override.Server.Bind != "" {
		base.Server.Bind = override.Server.Bind
	}
}

// fieldSet reports whether the YAML document contains the given key path.
func fieldSet(raw map[string]any, path ...string) bool {
	current := raw
	for i, key := range path {
		value, ok := current[key]
		if !ok {
			return false
		}
		if i == len(path)-1 {
			return true
		}
		next, ok := value.(map[string]any)
		if !ok {
			return false
		}
		current = next
	}
	return false
}

// boolFieldSet reports whether a bool key was explicitly present.
func boolFieldSet(raw map[string]any, path ...string) bool {
	return fieldSet(raw, path...)
}
