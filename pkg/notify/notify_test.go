package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/echohq/echo/pkg/heartbeat"
)

type fakeAdapter struct {
	name   string
	events []*Event
	err    error
	closed bool
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Send(ctx context.Context, event *Event) error {
	f.events = append(f.events, event)
	return f.err
}

func (f *fakeAdapter) Close() error {
	f.closed = true
	return nil
}

type fakePublisher struct {
	events []*Event
	err    error
	closed bool
}

func (f *fakePublisher) Publish(ctx context.Context, event *Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func TestManagerNotifyFansOut(t *testing.T) {
	pub := &fakePublisher{}
	a := &fakeAdapter{name: "a"}
	b := &fakeAdapter{name: "b"}
	m := NewManager(pub, a, b)

	err := m.NotifyFinding(context.Background(), "agent-1", heartbeat.Finding{
		Source:   "gmail",
		Summary:  "3 unread messages from your manager",
		Priority: heartbeat.PriorityHigh,
	})
	if err != nil {
		t.Fatalf("NotifyFinding: %v", err)
	}

	if len(pub.events) != 1 {
		t.Fatalf("publisher got %d events, want 1", len(pub.events))
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("adapters got %d/%d events, want 1/1", len(a.events), len(b.events))
	}

	evt := a.events[0]
	if evt.Type != EventFinding {
		t.Errorf("event type = %q, want %q", evt.Type, EventFinding)
	}
	if evt.AgentID != "agent-1" {
		t.Errorf("agent id = %q, want agent-1", evt.AgentID)
	}
	if evt.Priority != "high" {
		t.Errorf("priority = %q, want high", evt.Priority)
	}
}

func TestManagerNotifyAdapterFailureDoesNotStopOthers(t *testing.T) {
	a := &fakeAdapter{name: "broken", err: errors.New("webhook down")}
	b := &fakeAdapter{name: "ok"}
	m := NewManager(nil, a, b)

	err := m.NotifyActionFailed(context.Background(), "agent-1", "step-2", errors.New("timeout"))
	if err == nil {
		t.Fatal("expected error from broken adapter")
	}
	if len(b.events) != 1 {
		t.Errorf("healthy adapter got %d events, want 1", len(b.events))
	}
}

func TestManagerPublisherFailureStopsDelivery(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats down")}
	a := &fakeAdapter{name: "a"}
	m := NewManager(pub, a)

	err := m.NotifySummary(context.Background(), "agent-1", "All clear")
	if err == nil {
		t.Fatal("expected publish error")
	}
	if len(a.events) != 0 {
		t.Errorf("adapter got %d events after publish failure, want 0", len(a.events))
	}
}

func TestManagerClose(t *testing.T) {
	pub := &fakePublisher{}
	a := &fakeAdapter{name: "a"}
	m := NewManager(pub, a)

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !a.closed || !pub.closed {
		t.Error("expected adapter and publisher to be closed")
	}
}

func TestFindingBridgePublishesFinding(t *testing.T) {
	a := &fakeAdapter{name: "a"}
	m := NewManager(nil, a)
	bridge := NewFindingBridge(m, "agent-7")

	err := bridge.PublishFinding(context.Background(), heartbeat.Finding{
		Source:          "linear",
		Summary:         "ENG-42 is blocked on you",
		Priority:        heartbeat.PriorityMedium,
		ActionRequired:  true,
		SuggestedAction: "Review linear: ENG-42 is blocked on you",
	})
	if err != nil {
		t.Fatalf("PublishFinding: %v", err)
	}

	if len(a.events) != 1 {
		t.Fatalf("adapter got %d events, want 1", len(a.events))
	}
	evt := a.events[0]
	if evt.AgentID != "agent-7" {
		t.Errorf("agent id = %q, want agent-7", evt.AgentID)
	}
	if evt.Metadata["actionRequired"] != true {
		t.Error("expected actionRequired metadata")
	}
}

func TestEventJSONRoundTrip(t *testing.T) {
	evt := &Event{
		ID:      "evt-1",
		Type:    EventApprovalRequest,
		AgentID: "agent-1",
		StepID:  "step-3",
		Title:   "Approval needed",
		Message: "Send reply to customer",
	}

	parsed, err := ParseEvent(evt.JSON())
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if parsed.Type != EventApprovalRequest || parsed.StepID != "step-3" {
		t.Errorf("round trip mismatch: %+v", parsed)
	}
}
