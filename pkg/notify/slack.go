package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SlackAdapter sends notifications via Slack webhooks.
type SlackAdapter struct {
	webhookURL string
	channel    string
	client     *http.Client
}

// SlackConfig configures the Slack adapter.
type SlackConfig struct {
	// WebhookURL is the Slack incoming webhook URL
	WebhookURL string

	// Channel overrides the default channel (optional)
	Channel string
}

// NewSlackAdapter creates a Slack adapter.
func NewSlackAdapter(cfg SlackConfig) (*SlackAdapter, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}

	return &SlackAdapter{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		client:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Name returns the adapter name.
func (s *SlackAdapter) Name() string {
	return "slack"
}

// Send sends a notification via Slack.
func (s *SlackAdapter) Send(ctx context.Context, event *Event) error {
	var emoji string
	var color string

	switch event.Type {
	case EventFinding:
		emoji = ":mag:"
		color = "#FFAA00"
		if event.Priority == "high" {
			emoji = ":rotating_light:"
			color = "#FF0000"
		}
	case EventApprovalRequest:
		emoji = ":question:"
		color = "#0066FF"
	case EventActionFailed:
		emoji = ":x:"
		color = "#FF0000"
	case EventSummary:
		emoji = ":heartbeat:"
		color = "#00AA66"
	}

	payload := map[string]interface{}{
		"username":   "Echo",
		"icon_emoji": ":robot_face:",
		"attachments": []map[string]interface{}{
			{
				"color":     color,
				"title":     fmt.Sprintf("%s %s", emoji, event.Title),
				"text":      event.Message,
				"footer":    fmt.Sprintf("Agent: %s", event.AgentID),
				"ts":        event.Timestamp.Unix(),
				"mrkdwn_in": []string{"text"},
			},
		},
	}

	if s.channel != "" {
		payload["channel"] = s.channel
	}

	return s.sendWebhook(ctx, payload)
}

func (s *SlackAdapter) sendWebhook(ctx context.Context, payload map[string]interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack webhook error: %s", string(body))
	}

	return nil
}

// Close closes the adapter.
func (s *SlackAdapter) Close() error {
	return nil
}
