// Package guardrail evaluates proposed agent actions against built-in and
// caller-supplied safety rules plus per-workspace permission policies.
// Everything in this package is pure decision logic; rate limiting lives in
// pkg/ratelimit and execution in pkg/executor.
package guardrail

import (
	"fmt"
	"sort"
	"strings"

	"github.com/echohq/echo/pkg/plan"
	"github.com/echohq/echo/pkg/telemetry"
)

// Engine merges the built-in rules with custom rules and evaluates requests.
// An Engine is immutable after construction and safe for concurrent use.
type Engine struct {
	custom []Guardrail
}

// NewEngine creates an engine with optional caller-supplied guardrails.
// Custom rules are evaluated alongside the built-ins; ties on priority keep
// built-ins first, then custom rules in the order supplied.
func NewEngine(custom ...Guardrail) *Engine {
	return &Engine{custom: append([]Guardrail(nil), custom...)}
}

// Check evaluates every guardrail against the request, ordered by priority
// descending, and returns one Result per triggered (non-allow) rule.
//
// Evaluation never short-circuits: a caller deciding what to tell the user
// needs the complete reason list, not just the first refusal.
func (e *Engine) Check(req ActionRequest) []Result {
	rules := append(builtins(), e.custom...)
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority() > rules[j].Priority()
	})

	var results []Result
	for _, g := range rules {
		verdict := g.Evaluate(req)
		telemetry.RecordGuardrailVerdict(string(verdict))
		if verdict == VerdictAllow {
			continue
		}
		results = append(results, Result{
			Action:      verdict,
			GuardrailID: g.ID(),
			Reason:      reasonFor(g, verdict),
		})
	}
	return results
}

// IsActionAllowed reports whether no guardrail denied the request.
// Approval-required results do not block here; they suspend instead.
func IsActionAllowed(results []Result) bool {
	for _, r := range results {
		if r.Action == VerdictDeny {
			return false
		}
	}
	return true
}

// RequiresApproval reports whether any guardrail asked for human sign-off.
func RequiresApproval(results []Result) bool {
	for _, r := range results {
		if r.Action == VerdictRequireApproval {
			return true
		}
	}
	return false
}

// CheckPermission resolves an action against the workspace policy for the
// given integration. No policy for the integration means allow. The denied
// list wins over the allowed list; both match by substring or wildcard "*".
func CheckPermission(action, integration string, policies []PermissionPolicy) PermissionDecision {
	var policy *PermissionPolicy
	for i := range policies {
		if policies[i].Integration == integration {
			policy = &policies[i]
			break
		}
	}
	if policy == nil {
		return PermissionDecision{Allowed: true}
	}

	for _, denied := range policy.DeniedActions {
		if matchesAction(action, denied) {
			return PermissionDecision{
				Allowed: false,
				Reason:  fmt.Sprintf("action %q is denied by the %s policy", action, integration),
			}
		}
	}

	if len(policy.AllowedActions) > 0 {
		for _, allowed := range policy.AllowedActions {
			if matchesAction(action, allowed) {
				return PermissionDecision{Allowed: true}
			}
		}
		return PermissionDecision{
			Allowed: false,
			Reason:  fmt.Sprintf("action %q is not in the allowed list for %s", action, integration),
		}
	}

	return PermissionDecision{Allowed: true}
}

func matchesAction(action, pattern string) bool {
	if pattern == "*" {
		return true
	}
	return strings.Contains(strings.ToLower(action), strings.ToLower(pattern))
}

// CheckStep is the convenience entry point the control loop uses per plan
// step. The request is built with write permission: steps come from the
// planner acting on the user's behalf, so read-only downgrades happen at
// the policy layer, not here.
func (e *Engine) CheckStep(step plan.Step) StepCheck {
	req := ActionRequest{
		ID:       fmt.Sprintf("step-%s", step.ID),
		ToolName: string(step.Action),
		Parameters: map[string]any{
			"description": step.Description,
		},
		Permission: PermissionWrite,
	}

	results := e.Check(req)
	check := StepCheck{
		CanExecute:     IsActionAllowed(results),
		NeedsApproval:  RequiresApproval(results),
		BlockedReasons: []string{},
	}
	for _, r := range results {
		if r.Action == VerdictDeny {
			check.BlockedReasons = append(check.BlockedReasons, r.Reason)
		}
	}
	return check
}
