package guardrail

import "time"

// Verdict is the outcome of evaluating one guardrail against a request.
type Verdict string

const (
	VerdictAllow           Verdict = "allow"
	VerdictDeny            Verdict = "deny"
	VerdictRequireApproval Verdict = "require_approval"
)

// PermissionLevel is the access level an action request carries.
type PermissionLevel string

const (
	PermissionRead  PermissionLevel = "read"
	PermissionWrite PermissionLevel = "write"
	PermissionAdmin PermissionLevel = "admin"
)

// ActionRequest describes a proposed action for guardrail evaluation.
// Requests are ephemeral value objects built per check; the engine never
// mutates them.
type ActionRequest struct {
	ID         string          `json:"id"`
	ToolName   string          `json:"tool_name"`
	Parameters map[string]any  `json:"parameters,omitempty"`
	Permission PermissionLevel `json:"permission"`
}

// Result records one triggered (non-allow) guardrail verdict. A single
// request may accumulate several results; a deny is fatal for the request
// regardless of what else triggered.
type Result struct {
	Action      Verdict `json:"action"`
	GuardrailID string  `json:"guardrail_id"`
	Reason      string  `json:"reason"`
}

// Guardrail is a named, prioritized safety rule. Evaluate must be pure:
// same request in, same verdict out, no I/O.
type Guardrail interface {
	ID() string
	Name() string
	Description() string
	Priority() int
	Evaluate(req ActionRequest) Verdict
}

// Func adapts a plain check function into a Guardrail so callers can
// register custom rules without defining a type.
type Func struct {
	RuleID    string
	RuleName  string
	RuleDesc  string
	RulePrio  int
	CheckFunc func(req ActionRequest) Verdict
}

func (f *Func) ID() string          { return f.RuleID }
func (f *Func) Name() string        { return f.RuleName }
func (f *Func) Description() string { return f.RuleDesc }
func (f *Func) Priority() int       { return f.RulePrio }

func (f *Func) Evaluate(req ActionRequest) Verdict {
	if f.CheckFunc == nil {
		return VerdictAllow
	}
	return f.CheckFunc(req)
}

// RateLimitConfig caps requests per integration inside a rolling window.
type RateLimitConfig struct {
	MaxRequests int           `json:"max_requests" yaml:"max_requests"`
	Window      time.Duration `json:"window" yaml:"window"`
}

// PermissionPolicy is per-workspace configuration for one integration.
// An empty AllowedActions list means "anything not denied".
type PermissionPolicy struct {
	Integration    string           `json:"integration" yaml:"integration"`
	AllowedActions []string         `json:"allowed_actions,omitempty" yaml:"allowed_actions,omitempty"`
	DeniedActions  []string         `json:"denied_actions,omitempty" yaml:"denied_actions,omitempty"`
	RateLimit      *RateLimitConfig `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
}

// StepCheck is the aggregate verdict for one plan step.
type StepCheck struct {
	CanExecute     bool     `json:"can_execute"`
	NeedsApproval  bool     `json:"needs_approval"`
	BlockedReasons []string `json:"blocked_reasons"`
}

// PermissionDecision is the outcome of a policy lookup for one action.
type PermissionDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}
