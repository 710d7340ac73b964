package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/echohq/echo/pkg/audit"
	"github.com/echohq/echo/pkg/config"
	"github.com/echohq/echo/pkg/executor"
	"github.com/echohq/echo/pkg/guardrail"
	"github.com/echohq/echo/pkg/heartbeat"
	"github.com/echohq/echo/pkg/ratelimit"
)

type stubMemory struct{}

func (stubMemory) Search(ctx context.Context, query string, turn executor.TurnContext, source string, opts executor.SearchOptions) (any, error) {
	return map[string]any{"results": []string{"note about " + query}}, nil
}

func newTestServer(t *testing.T, cfg *config.Config) (*server, *audit.MemoryRecorder) {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
		cfg.Agent.ID = "agent-test"
	}
	recorder := audit.NewMemoryRecorder()
	store := ratelimit.NewMemoryStore()
	t.Cleanup(store.Close)
	sched := heartbeat.NewScheduler(cfg.Heartbeat, func(ctx context.Context, integration, query string) (string, error) {
		return "", nil
	}, nil, nil)

	exec := executor.New(stubMemory{}, nil, nil, nil, nil)
	srv := newServer(cfg, guardrail.NewEngine(), ratelimit.NewLimiter(store), exec, recorder, sched, nil, nil)
	return srv, recorder
}

func postAction(t *testing.T, srv *server, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/actions", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestStatusReportsHeartbeat(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Agent     string           `json:"agent"`
		Heartbeat heartbeat.Status `json:"heartbeat"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Agent != "agent-test" {
		t.Errorf("agent = %q", body.Agent)
	}
	if !body.Heartbeat.Enabled {
		t.Error("heartbeat should be enabled")
	}
}

func TestExecuteActionRecordsAudit(t *testing.T) {
	srv, recorder := newTestServer(t, nil)

	rec := postAction(t, srv, map[string]any{
		"step": map[string]any{
			"id":          "step-1",
			"action":      "memory_search",
			"description": "find notes about the offsite",
		},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Executed bool                  `json:"executed"`
		Result   executor.ActionResult `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Executed || !body.Result.Success {
		t.Errorf("unexpected result: %+v", body)
	}

	entries, err := recorder.List(context.Background(), "agent-test", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(entries))
	}
}

func TestExecuteActionRequiresApprovalForDestructive(t *testing.T) {
	srv, recorder := newTestServer(t, nil)

	rec := postAction(t, srv, map[string]any{
		"step": map[string]any{
			"id":          "step-2",
			"action":      "memory_search",
			"description": "delete all records from the archive",
		},
	})

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	entries, _ := recorder.List(context.Background(), "agent-test", 10)
	if len(entries) != 0 {
		t.Errorf("no audit entry expected before approval, got %d", len(entries))
	}
}

func TestExecuteActionDeniedByPolicy(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Agent.ID = "agent-test"
	cfg.Policies = []guardrail.PermissionPolicy{
		{Integration: "gmail", DeniedActions: []string{"memory_search"}},
	}
	srv, _ := newTestServer(t, cfg)

	rec := postAction(t, srv, map[string]any{
		"step": map[string]any{
			"id":     "step-3",
			"action": "memory_search",
		},
		"integration": "gmail",
	})

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", rec.Code, rec.Body.String())
	}
}

func TestExecuteActionRateLimited(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Agent.ID = "agent-test"
	cfg.Policies = []guardrail.PermissionPolicy{
		{Integration: "gmail", RateLimit: &guardrail.RateLimitConfig{
			MaxRequests: 1,
			Window:      time.Minute,
		}},
	}
	srv, _ := newTestServer(t, cfg)

	body := map[string]any{
		"step": map[string]any{
			"id":     "step-4",
			"action": "memory_search",
		},
		"integration": "gmail",
	}
	if rec := postAction(t, srv, body); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}
	rec := postAction(t, srv, body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestExecuteActionRejectsEmptyStep(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := postAction(t, srv, map[string]any{"step": map[string]any{}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRunHeartbeatOnce(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/heartbeat/run", nil)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
