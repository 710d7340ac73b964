package heartbeat

import (
	"time"
)

// Priority orders checks and findings. High runs first and is the only
// level that demands action from the user.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// rank orders priorities for sorting; lower runs earlier.
func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// ActiveHours is a timezone-local hour range; cycles outside it are
// skipped entirely.
type ActiveHours struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Check is one monitoring probe against a connected integration.
// Checks are immutable between cycles; RunCheck returns an updated copy
// instead of mutating in place so a status endpoint can read the registry
// without locking against the runner.
type Check struct {
	ID          string     `json:"id" yaml:"id"`
	Type        string     `json:"type" yaml:"type"`
	Integration string     `json:"integration" yaml:"integration"`
	Query       string     `json:"query" yaml:"query"`
	Priority    Priority   `json:"priority" yaml:"priority"`
	LastRun     *time.Time `json:"last_run,omitempty" yaml:"-"`
	LastResult  string     `json:"last_result,omitempty" yaml:"-"`
}

// Config drives the scheduler.
type Config struct {
	Enabled     bool          `json:"enabled" yaml:"enabled"`
	Interval    time.Duration `json:"interval" yaml:"interval"`
	Checks      []Check       `json:"checks" yaml:"checks"`
	ActiveHours ActiveHours   `json:"active_hours" yaml:"active_hours"`
	Timezone    string        `json:"timezone" yaml:"timezone"`
	// ModelTier picks which model the downstream notifier may use to
	// phrase findings; the scheduler only carries it through.
	ModelTier string `json:"model_tier" yaml:"model_tier"`
}

// Finding is one attention-worthy observation from a check.
type Finding struct {
	Source          string   `json:"source"`
	Summary         string   `json:"summary"`
	Priority        Priority `json:"priority"`
	ActionRequired  bool     `json:"action_required"`
	SuggestedAction string   `json:"suggested_action,omitempty"`
}

// Result is the outcome of running one check.
type Result struct {
	CheckID          string    `json:"check_id"`
	Findings         []Finding `json:"findings"`
	NextScheduledRun time.Time `json:"next_scheduled_run"`
}

// nextRunDelay is how far out a check reschedules after each run.
const nextRunDelay = 30 * time.Minute
