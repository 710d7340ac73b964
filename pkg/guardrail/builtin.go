package guardrail

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Built-in guardrail IDs.
const (
	GuardrailNoDestructive = "no-destructive-actions"
	GuardrailNoSensitive   = "no-sensitive-data"
	GuardrailWritePerm     = "write-permission-check"
)

var (
	destructivePattern = regexp.MustCompile(`(?i)(delete|remove|drop|purge|destroy)`)
	sensitivePattern   = regexp.MustCompile(`(?i)(password|secret|api.?key|token|credential|ssn|credit.?card)`)
	writeActionPattern = regexp.MustCompile(`(?i)(integration_action|send_email|create_issue|post_message|update|edit)`)
)

// stringifyParams renders a request's parameters for pattern matching.
// JSON is deterministic enough here: matching is substring-based, so key
// order does not affect the verdict.
func stringifyParams(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%v", params)
	}
	return string(data)
}

type destructiveGuardrail struct{}

func (destructiveGuardrail) ID() string   { return GuardrailNoDestructive }
func (destructiveGuardrail) Name() string { return "No destructive actions" }
func (destructiveGuardrail) Description() string {
	return "Destructive operations require approval unless the request carries admin permission"
}
func (destructiveGuardrail) Priority() int { return 100 }

func (destructiveGuardrail) Evaluate(req ActionRequest) Verdict {
	if req.Permission == PermissionAdmin {
		return VerdictAllow
	}
	if destructivePattern.MatchString(req.ToolName) || destructivePattern.MatchString(stringifyParams(req.Parameters)) {
		return VerdictRequireApproval
	}
	return VerdictAllow
}

type sensitiveDataGuardrail struct{}

func (sensitiveDataGuardrail) ID() string   { return GuardrailNoSensitive }
func (sensitiveDataGuardrail) Name() string { return "No sensitive data exposure" }
func (sensitiveDataGuardrail) Description() string {
	return "Parameters that look like credentials or PII always require approval"
}
func (sensitiveDataGuardrail) Priority() int { return 99 }

func (sensitiveDataGuardrail) Evaluate(req ActionRequest) Verdict {
	if sensitivePattern.MatchString(stringifyParams(req.Parameters)) {
		return VerdictRequireApproval
	}
	return VerdictAllow
}

type writePermissionGuardrail struct{}

func (writePermissionGuardrail) ID() string   { return GuardrailWritePerm }
func (writePermissionGuardrail) Name() string { return "Write permission check" }
func (writePermissionGuardrail) Description() string {
	return "Write-class actions are denied for read-only requests"
}
func (writePermissionGuardrail) Priority() int { return 98 }

func (writePermissionGuardrail) Evaluate(req ActionRequest) Verdict {
	if req.Permission != PermissionRead {
		return VerdictAllow
	}
	if writeActionPattern.MatchString(req.ToolName) || writeActionPattern.MatchString(stringifyParams(req.Parameters)) {
		return VerdictDeny
	}
	return VerdictAllow
}

// builtins returns the built-in rule set in fixed order. The slice is
// rebuilt per call so callers cannot reorder the shared set.
func builtins() []Guardrail {
	return []Guardrail{
		destructiveGuardrail{},
		sensitiveDataGuardrail{},
		writePermissionGuardrail{},
	}
}

// reasonFor produces the human-readable reason attached to a triggered rule.
func reasonFor(g Guardrail, verdict Verdict) string {
	switch verdict {
	case VerdictDeny:
		return fmt.Sprintf("%s: denied (%s)", g.Name(), strings.ToLower(g.Description()))
	case VerdictRequireApproval:
		return fmt.Sprintf("%s: approval required (%s)", g.Name(), strings.ToLower(g.Description()))
	default:
		return g.Name()
	}
}
