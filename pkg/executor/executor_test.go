package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	echoerrors "github.com/echohq/echo/pkg/errors"
	"github.com/echohq/echo/pkg/plan"
)

type fakeMemory struct {
	lastQuery string
	lastOpts  SearchOptions
	result    any
	err       error
	calls     int
}

func (f *fakeMemory) Search(_ context.Context, query string, _ TurnContext, _ string, opts SearchOptions) (any, error) {
	f.calls++
	f.lastQuery = query
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeDirectory struct {
	integrations []Integration
	err          error
}

func (f *fakeDirectory) ListConnected(context.Context, TurnContext) ([]Integration, error) {
	return f.integrations, f.err
}

type fakeExplorer struct {
	chunks   []string
	err      error
	lastMode AccessMode
}

func (f *fakeExplorer) Run(_ context.Context, _ string, mode AccessMode, _ []Integration) (<-chan string, error) {
	f.lastMode = mode
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan string, len(f.chunks))
	for _, c := range f.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

type fakeWeb struct {
	result WebSearchResult
	err    error
}

func (f *fakeWeb) Search(context.Context, string) (WebSearchResult, error) {
	if f.err != nil {
		return WebSearchResult{}, f.err
	}
	return f.result, nil
}

func testStep(action plan.ActionKind) plan.Step {
	return plan.Step{ID: "step-1", Action: action, Description: "check urgent email"}
}

func testTurn() TurnContext {
	return TurnContext{AgentID: "agent-1", UserID: "user-1", WorkspaceID: "ws-1"}
}

func TestExecuteMemorySearch(t *testing.T) {
	mem := &fakeMemory{result: map[string]any{"episodes": 3}}
	exec := New(mem, nil, nil, nil, nil)

	result := exec.Execute(context.Background(), testStep(plan.ActionMemorySearch), testTurn())
	if !result.Success {
		t.Fatalf("expected success, got %#v", result)
	}
	if mem.lastQuery != "check urgent email" {
		t.Errorf("query = %q", mem.lastQuery)
	}
	if !mem.lastOpts.Structured || mem.lastOpts.Limit != 10 {
		t.Errorf("memory search should be structured with limit 10, got %#v", mem.lastOpts)
	}
	if !result.Reversible {
		t.Error("memory search is reversible")
	}
	if result.ToolCalls != 1 {
		t.Errorf("tool calls = %d, want 1", result.ToolCalls)
	}
}

func TestExecuteIntegrationQueryNoIntegrations(t *testing.T) {
	exec := New(nil, &fakeDirectory{}, &fakeExplorer{}, nil, nil)

	result := exec.Execute(context.Background(), testStep(plan.ActionIntegrationQuery), testTurn())
	if !result.Success {
		t.Fatalf("expected success, got %#v", result)
	}
	if result.Data != NoIntegrationsSentinel() {
		t.Errorf("data = %v, want sentinel", result.Data)
	}
}

func TestExecuteIntegrationQueryDrainsStream(t *testing.T) {
	explorer := &fakeExplorer{chunks: []string{"3 unread ", "from Dana"}}
	exec := New(nil, &fakeDirectory{integrations: []Integration{{ID: "i1", Name: "gmail"}}}, explorer, nil, nil)

	result := exec.Execute(context.Background(), testStep(plan.ActionIntegrationQuery), testTurn())
	if !result.Success {
		t.Fatalf("expected success, got %#v", result)
	}
	if result.Data != "3 unread from Dana" {
		t.Errorf("data = %q", result.Data)
	}
	if explorer.lastMode != ModeRead {
		t.Errorf("integration_query must run read-only, got %s", explorer.lastMode)
	}
	if !result.Reversible {
		t.Error("read query is reversible")
	}
}

func TestExecuteIntegrationActionIsIrreversibleAndWrites(t *testing.T) {
	explorer := &fakeExplorer{chunks: []string{"sent"}}
	exec := New(nil, &fakeDirectory{integrations: []Integration{{ID: "i1", Name: "gmail"}}}, explorer, nil, nil)

	result := exec.Execute(context.Background(), testStep(plan.ActionIntegrationAction), testTurn())
	if !result.Success {
		t.Fatalf("expected success, got %#v", result)
	}
	if explorer.lastMode != ModeWrite {
		t.Errorf("integration_action must run in write mode, got %s", explorer.lastMode)
	}
	if result.Reversible {
		t.Error("integration_action is not reversible")
	}
}

func TestExecuteWebSearchErrorResult(t *testing.T) {
	exec := New(nil, nil, nil, &fakeWeb{result: WebSearchResult{Success: false, Error: "search backend down"}}, nil)

	result := exec.Execute(context.Background(), testStep(plan.ActionWebSearch), testTurn())
	if !result.Success {
		t.Fatalf("explorer-level failure is still a completed action: %#v", result)
	}
	if result.Data != "search backend down" {
		t.Errorf("data should carry the explorer error string, got %v", result.Data)
	}
}

func TestExecuteVerifyAndHumanReviewAreNoOps(t *testing.T) {
	exec := New(nil, nil, nil, nil, nil)

	verify := exec.Execute(context.Background(), testStep(plan.ActionVerifyResult), testTurn())
	data, ok := verify.Data.(map[string]any)
	if !ok || data["verified"] != true || data["step"] != "step-1" {
		t.Errorf("verify_result data = %#v", verify.Data)
	}

	review := exec.Execute(context.Background(), testStep(plan.ActionHumanReview), testTurn())
	data, ok = review.Data.(map[string]any)
	if !ok || data["awaitingReview"] != true {
		t.Errorf("human_review data = %#v", review.Data)
	}
}

func TestExecuteUnknownActionFallsBackToMemorySearch(t *testing.T) {
	mem := &fakeMemory{result: "fallback"}
	exec := New(mem, nil, nil, nil, nil)

	result := exec.Execute(context.Background(), testStep(plan.ActionKind("summon_demon")), testTurn())
	if !result.Success {
		t.Fatalf("unknown actions should degrade to memory search: %#v", result)
	}
	if mem.calls != 1 {
		t.Errorf("memory search calls = %d, want 1", mem.calls)
	}
}

func TestExecuteConvertsErrorsToFailedResults(t *testing.T) {
	mem := &fakeMemory{err: errors.New("graph unreachable")}
	exec := New(mem, nil, nil, nil, nil)

	result := exec.Execute(context.Background(), testStep(plan.ActionMemorySearch), testTurn())
	if result.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.Error, "graph unreachable") {
		t.Errorf("error = %q", result.Error)
	}
	if !strings.Contains(result.Error, string(echoerrors.ErrCodeMemorySearch)) {
		t.Errorf("error = %q, want memory search code", result.Error)
	}
	if !result.Logged {
		t.Error("failed results are still logged")
	}
}

type panickyMemory struct{}

func (panickyMemory) Search(context.Context, string, TurnContext, string, SearchOptions) (any, error) {
	panic("boom")
}

func TestExecuteRecoversFromPanic(t *testing.T) {
	exec := New(panickyMemory{}, nil, nil, nil, nil)

	result := exec.Execute(context.Background(), testStep(plan.ActionMemorySearch), testTurn())
	if result.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.Error, "panic") {
		t.Errorf("error = %q", result.Error)
	}
}

func TestNewAuditEntryContent(t *testing.T) {
	result := ActionResult{
		RequestID:       "step-1",
		Success:         false,
		Error:           "graph unreachable",
		ExecutionTimeMs: 42,
		ToolCalls:       2,
		Reversible:      true,
	}
	entry := NewAuditEntry(result, testStep(plan.ActionMemorySearch), "agent-1")

	want := "Action executed: memory_search\n" +
		"Description: check urgent email\n" +
		"Success: false\n" +
		"Error: graph unreachable\n" +
		"Duration: 42ms\n" +
		"Tool calls: 2"
	if entry.Content != want {
		t.Errorf("content mismatch:\ngot:\n%s\nwant:\n%s", entry.Content, want)
	}
	if entry.AgentID != "agent-1" {
		t.Errorf("agent ID = %q", entry.AgentID)
	}
	if entry.Metadata["stepId"] != "step-1" || entry.Metadata["reversible"] != true {
		t.Errorf("metadata = %#v", entry.Metadata)
	}
}

func TestGatherContextJoinsAllLookups(t *testing.T) {
	mem := &fakeMemory{result: "context"}
	dir := &fakeDirectory{integrations: []Integration{{ID: "i1", Name: "gmail"}}}
	exec := New(mem, dir, nil, nil, nil)

	perception, err := exec.GatherContext(context.Background(), "what matters today", testTurn())
	if err != nil {
		t.Fatalf("GatherContext failed: %v", err)
	}
	if perception.MemoryContext != "context" {
		t.Errorf("memory context = %v", perception.MemoryContext)
	}
	if len(perception.Integrations) != 1 {
		t.Errorf("integrations = %#v", perception.Integrations)
	}
}

func TestGatherContextFailsWhole(t *testing.T) {
	mem := &fakeMemory{result: "context"}
	dir := &fakeDirectory{err: fmt.Errorf("directory down")}
	exec := New(mem, dir, nil, nil, nil)

	if _, err := exec.GatherContext(context.Background(), "q", testTurn()); err == nil {
		t.Fatal("expected error when one lookup fails")
	}
}
