// Package notify delivers agent events to the user's channels. Heartbeat
// findings, approval requests, and action failures fan out to every
// configured adapter and, when a publisher is wired, onto the event bus.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/echohq/echo/pkg/heartbeat"
)

// EventType defines the type of notification event.
type EventType string

const (
	// EventFinding is sent when a heartbeat check surfaces something
	EventFinding EventType = "finding"

	// EventApprovalRequest is sent when an action waits on the user
	EventApprovalRequest EventType = "approval_request"

	// EventActionFailed is sent when an action exhausts its retries
	EventActionFailed EventType = "action_failed"

	// EventSummary is sent with the digest of a heartbeat cycle
	EventSummary EventType = "summary"
)

// Event is a notification event.
type Event struct {
	// ID is the unique event identifier
	ID string `json:"id"`

	// Type is the event type
	Type EventType `json:"type"`

	// AgentID is the agent this event relates to
	AgentID string `json:"agent_id"`

	// StepID is the plan step this event relates to (optional)
	StepID string `json:"step_id,omitempty"`

	// Title is a short summary
	Title string `json:"title"`

	// Message is the detailed message
	Message string `json:"message"`

	// Priority carries the finding priority when applicable
	Priority string `json:"priority,omitempty"`

	// Metadata contains additional context
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`
}

// Publisher publishes notification events to an event bus.
type Publisher interface {
	// Publish sends an event to the notification system
	Publish(ctx context.Context, event *Event) error

	// Close closes the publisher
	Close() error
}

// Subscriber receives notification events.
type Subscriber interface {
	// Subscribe starts receiving events
	Subscribe(ctx context.Context, handler func(*Event)) error

	// Close closes the subscriber
	Close() error
}

// Adapter sends notifications to a specific channel (Slack, etc).
type Adapter interface {
	// Name returns the adapter name
	Name() string

	// Send sends a notification
	Send(ctx context.Context, event *Event) error

	// Close closes the adapter
	Close() error
}

// Manager manages notification adapters and event routing.
type Manager struct {
	adapters  []Adapter
	publisher Publisher
}

// NewManager creates a notification manager.
func NewManager(publisher Publisher, adapters ...Adapter) *Manager {
	return &Manager{
		adapters:  adapters,
		publisher: publisher,
	}
}

// Notify sends a notification via the publisher and all configured adapters.
func (m *Manager) Notify(ctx context.Context, event *Event) error {
	if m.publisher != nil {
		if err := m.publisher.Publish(ctx, event); err != nil {
			return fmt.Errorf("publish event: %w", err)
		}
	}

	var lastErr error
	for _, adapter := range m.adapters {
		if err := adapter.Send(ctx, event); err != nil {
			lastErr = fmt.Errorf("%s: %w", adapter.Name(), err)
		}
	}

	return lastErr
}

// NotifyFinding sends a heartbeat finding notification.
func (m *Manager) NotifyFinding(ctx context.Context, agentID string, f heartbeat.Finding) error {
	return m.Notify(ctx, &Event{
		ID:       newEventID(),
		Type:     EventFinding,
		AgentID:  agentID,
		Title:    fmt.Sprintf("Finding from %s", f.Source),
		Message:  f.Summary,
		Priority: string(f.Priority),
		Metadata: map[string]interface{}{
			"source":          f.Source,
			"actionRequired":  f.ActionRequired,
			"suggestedAction": f.SuggestedAction,
		},
		Timestamp: time.Now(),
	})
}

// NotifyApprovalRequest tells the user an action is waiting on them.
func (m *Manager) NotifyApprovalRequest(ctx context.Context, agentID, stepID, description string) error {
	return m.Notify(ctx, &Event{
		ID:        newEventID(),
		Type:      EventApprovalRequest,
		AgentID:   agentID,
		StepID:    stepID,
		Title:     "Approval needed",
		Message:   description,
		Timestamp: time.Now(),
	})
}

// NotifyActionFailed reports an action that exhausted its retries.
func (m *Manager) NotifyActionFailed(ctx context.Context, agentID, stepID string, err error) error {
	return m.Notify(ctx, &Event{
		ID:        newEventID(),
		Type:      EventActionFailed,
		AgentID:   agentID,
		StepID:    stepID,
		Title:     "Action failed",
		Message:   err.Error(),
		Timestamp: time.Now(),
	})
}

// NotifySummary sends the digest of a heartbeat cycle.
func (m *Manager) NotifySummary(ctx context.Context, agentID, summary string) error {
	return m.Notify(ctx, &Event{
		ID:        newEventID(),
		Type:      EventSummary,
		AgentID:   agentID,
		Title:     "Heartbeat summary",
		Message:   summary,
		Timestamp: time.Now(),
	})
}

// Close closes all adapters and the publisher.
func (m *Manager) Close() error {
	var lastErr error
	for _, adapter := range m.adapters {
		if err := adapter.Close(); err != nil {
			lastErr = err
		}
	}
	if m.publisher != nil {
		if err := m.publisher.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// FindingBridge lets the heartbeat scheduler escalate findings through a
// Manager without knowing about notification channels.
type FindingBridge struct {
	manager *Manager
	agentID string
}

// NewFindingBridge creates a bridge for the given agent.
func NewFindingBridge(manager *Manager, agentID string) *FindingBridge {
	return &FindingBridge{manager: manager, agentID: agentID}
}

// PublishFinding implements heartbeat.FindingPublisher.
func (b *FindingBridge) PublishFinding(ctx context.Context, f heartbeat.Finding) error {
	return b.manager.NotifyFinding(ctx, b.agentID, f)
}

func newEventID() string {
	return "evt-" + uuid.NewString()
}

// JSON helpers
func (e *Event) JSON() []byte {
	data, _ := json.Marshal(e)
	return data
}

func ParseEvent(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
