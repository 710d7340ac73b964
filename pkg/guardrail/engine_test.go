package guardrail

import (
	"testing"

	"github.com/echohq/echo/pkg/plan"
)

func TestCheckOrdersByPriorityDescending(t *testing.T) {
	low := &Func{
		RuleID:   "custom-low",
		RuleName: "Custom low",
		RulePrio: 10,
		CheckFunc: func(req ActionRequest) Verdict {
			return VerdictRequireApproval
		},
	}
	high := &Func{
		RuleID:   "custom-high",
		RuleName: "Custom high",
		RulePrio: 200,
		CheckFunc: func(req ActionRequest) Verdict {
			return VerdictRequireApproval
		},
	}

	engine := NewEngine(low, high)
	results := engine.Check(ActionRequest{
		ID:         "req-1",
		ToolName:   "delete_everything",
		Parameters: map[string]any{"target": "password vault", "mode": "edit"},
		Permission: PermissionRead,
	})

	// custom-high (200), destructive (100), sensitive (99), write (98), custom-low (10)
	wantOrder := []string{"custom-high", GuardrailNoDestructive, GuardrailNoSensitive, GuardrailWritePerm, "custom-low"}
	if len(results) != len(wantOrder) {
		t.Fatalf("expected %d results, got %d: %#v", len(wantOrder), len(results), results)
	}
	for i, want := range wantOrder {
		if results[i].GuardrailID != want {
			t.Errorf("result %d: expected %s, got %s", i, want, results[i].GuardrailID)
		}
	}
}

func TestCheckDoesNotShortCircuitAfterDeny(t *testing.T) {
	engine := NewEngine()
	results := engine.Check(ActionRequest{
		ID:         "req-2",
		ToolName:   "send_email",
		Parameters: map[string]any{"body": "here is the api key"},
		Permission: PermissionRead,
	})

	var sawDeny, sawSensitive bool
	for _, r := range results {
		if r.GuardrailID == GuardrailWritePerm && r.Action == VerdictDeny {
			sawDeny = true
		}
		if r.GuardrailID == GuardrailNoSensitive && r.Action == VerdictRequireApproval {
			sawSensitive = true
		}
	}
	if !sawDeny {
		t.Error("expected write-permission deny")
	}
	if !sawSensitive {
		t.Error("expected sensitive-data result even though the request was already denied")
	}
}

func TestDestructiveActionRequiresApproval(t *testing.T) {
	engine := NewEngine()

	for _, perm := range []PermissionLevel{PermissionRead, PermissionWrite} {
		results := engine.Check(ActionRequest{
			ID:         "req-3",
			ToolName:   "purge_inbox",
			Permission: perm,
		})
		found := false
		for _, r := range results {
			if r.GuardrailID == GuardrailNoDestructive && r.Action == VerdictRequireApproval {
				found = true
			}
		}
		if !found {
			t.Errorf("permission %s: expected destructive guardrail to require approval", perm)
		}
	}
}

func TestDestructiveMatchesSnakeCaseToolNames(t *testing.T) {
	engine := NewEngine()

	for _, tool := range []string{"delete_emails", "purge_inbox", "drop_table", "remove_event", "destroy_workspace"} {
		results := engine.Check(ActionRequest{
			ID:         "req-" + tool,
			ToolName:   tool,
			Permission: PermissionWrite,
		})
		found := false
		for _, r := range results {
			if r.GuardrailID == GuardrailNoDestructive && r.Action == VerdictRequireApproval {
				found = true
			}
		}
		if !found {
			t.Errorf("tool %q: expected destructive guardrail to require approval, got %#v", tool, results)
		}
	}
}

func TestDestructiveActionAllowedForAdmin(t *testing.T) {
	engine := NewEngine()
	results := engine.Check(ActionRequest{
		ID:         "req-4",
		ToolName:   "drop_records",
		Permission: PermissionAdmin,
	})
	for _, r := range results {
		if r.GuardrailID == GuardrailNoDestructive {
			t.Errorf("admin request should not trigger destructive guardrail, got %#v", r)
		}
	}
}

func TestSensitiveDataIgnoresPermissionLevel(t *testing.T) {
	engine := NewEngine()
	for _, perm := range []PermissionLevel{PermissionRead, PermissionWrite, PermissionAdmin} {
		results := engine.Check(ActionRequest{
			ID:         "req-5",
			ToolName:   "summarize_notes",
			Parameters: map[string]any{"text": "my password is hunter2"},
			Permission: perm,
		})
		if !RequiresApproval(results) {
			t.Errorf("permission %s: expected approval requirement for password parameter", perm)
		}
	}
}

func TestWriteActionDeniedForReadPermission(t *testing.T) {
	engine := NewEngine()
	results := engine.Check(ActionRequest{
		ID:         "req-6",
		ToolName:   "create_issue",
		Permission: PermissionRead,
	})
	if IsActionAllowed(results) {
		t.Fatalf("expected deny, got %#v", results)
	}
}

func TestCheckPermissionDeniedListWins(t *testing.T) {
	policies := []PermissionPolicy{
		{
			Integration:    "gmail",
			AllowedActions: []string{"send_email"},
			DeniedActions:  []string{"send_email"},
		},
	}
	decision := CheckPermission("send_email", "gmail", policies)
	if decision.Allowed {
		t.Fatal("denied list should take precedence over allowed list")
	}
	if decision.Reason == "" {
		t.Error("denial should carry a reason")
	}
}

func TestCheckPermissionWildcardAndDefaults(t *testing.T) {
	policies := []PermissionPolicy{
		{Integration: "linear", DeniedActions: []string{"*"}},
		{Integration: "calendar", AllowedActions: []string{"list_events"}},
	}

	if CheckPermission("create_issue", "linear", policies).Allowed {
		t.Error("wildcard deny should block everything")
	}
	if CheckPermission("delete_event", "calendar", policies).Allowed {
		t.Error("non-empty allowed list should block unlisted actions")
	}
	if !CheckPermission("list_events_today", "calendar", policies).Allowed {
		t.Error("substring match against allowed list should pass")
	}
	if !CheckPermission("anything", "slack", policies).Allowed {
		t.Error("no policy for integration should allow")
	}
}

func TestCheckStepAggregatesVerdicts(t *testing.T) {
	engine := NewEngine()

	check := engine.CheckStep(plan.Step{
		ID:          "step-1",
		Action:      plan.ActionMemorySearch,
		Description: "find notes about the offsite",
	})
	if !check.CanExecute || check.NeedsApproval {
		t.Fatalf("benign step should execute without approval: %#v", check)
	}

	check = engine.CheckStep(plan.Step{
		ID:          "step-2",
		Action:      plan.ActionIntegrationAction,
		Description: "delete stale calendar invites",
	})
	if !check.NeedsApproval {
		t.Fatalf("destructive step should need approval: %#v", check)
	}
	if !check.CanExecute {
		// Steps run with write permission, so approval is the only gate here.
		t.Fatalf("destructive step should be executable pending approval: %#v", check)
	}
}
