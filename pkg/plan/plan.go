// Package plan defines the unit of work the control loop operates on.
// Steps are produced by an external planner; this package only describes
// their shape so the guardrail engine and executor can agree on it.
package plan

// ActionKind identifies what capability a step needs.
type ActionKind string

const (
	ActionMemorySearch      ActionKind = "memory_search"
	ActionIntegrationQuery  ActionKind = "integration_query"
	ActionIntegrationAction ActionKind = "integration_action"
	ActionWebSearch         ActionKind = "web_search"
	ActionVerifyResult      ActionKind = "verify_result"
	ActionHumanReview       ActionKind = "human_review"
)

// Step is one unit of work handed to the control loop by the planner.
// Steps are immutable value objects; a new one is built per turn.
type Step struct {
	ID          string     `json:"id"`
	Action      ActionKind `json:"action"`
	Description string     `json:"description"`
}

// Mutating reports whether the step's action changes external state.
// Only integration actions write through to connected services; everything
// else in the dispatch table is read-only.
func (s Step) Mutating() bool {
	return s.Action == ActionIntegrationAction
}
