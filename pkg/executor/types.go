package executor

import (
	"context"
	"time"
)

// TurnContext identifies whose turn an action runs in. It travels with
// every collaborator call so the external layers can scope lookups.
type TurnContext struct {
	AgentID     string `json:"agent_id"`
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
}

// ActionResult is the total outcome of executing one plan step. Execution
// never throws: every path, including panics and cancellation, lands here.
type ActionResult struct {
	RequestID       string `json:"request_id"`
	Success         bool   `json:"success"`
	Data            any    `json:"data,omitempty"`
	Error           string `json:"error,omitempty"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
	ToolCalls       int    `json:"tool_calls"`
	Logged          bool   `json:"logged"`
	// Reversible is false only for integration-mutating actions; the
	// notification layer uses it to decide how loudly to report failures.
	Reversible bool `json:"reversible"`
}

// RetryConfig bounds the executor's backoff loop.
type RetryConfig struct {
	MaxAttempts int           `json:"max_attempts" yaml:"max_attempts"`
	BaseDelay   time.Duration `json:"base_delay" yaml:"base_delay"`
	Multiplier  float64       `json:"multiplier" yaml:"multiplier"`
	MaxDelay    time.Duration `json:"max_delay" yaml:"max_delay"`
}

// DefaultRetryConfig is the retry policy used when config supplies none.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    10 * time.Second,
	}
}

// AccessMode selects how much an integration explorer may do.
type AccessMode string

const (
	ModeRead  AccessMode = "read"
	ModeWrite AccessMode = "write"
)

// Integration is one connected external service.
type Integration struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AccountID string `json:"account_id"`
}

// SearchOptions tunes a memory search.
type SearchOptions struct {
	Structured bool
	Limit      int
}

// MemorySearcher is the knowledge-graph search collaborator.
type MemorySearcher interface {
	Search(ctx context.Context, query string, turn TurnContext, source string, opts SearchOptions) (any, error)
}

// IntegrationDirectory resolves which integrations a user has connected.
type IntegrationDirectory interface {
	ListConnected(ctx context.Context, turn TurnContext) ([]Integration, error)
}

// IntegrationExplorer runs a query against connected integrations and
// streams text fragments back. The executor drains the stream into one
// string; cancellation propagates through ctx.
type IntegrationExplorer interface {
	Run(ctx context.Context, query string, mode AccessMode, integrations []Integration) (<-chan string, error)
}

// WebSearchResult is the web explorer's terminal result.
type WebSearchResult struct {
	Success bool   `json:"success"`
	Data    string `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WebSearcher is the web-search collaborator.
type WebSearcher interface {
	Search(ctx context.Context, query string) (WebSearchResult, error)
}

// noIntegrationsSentinel is returned as result data when the user has
// nothing connected; the heartbeat scheduler treats it as "no finding".
const noIntegrationsSentinel = "No integrations connected"

// NoIntegrationsSentinel exposes the sentinel for collaborators that need
// to recognize it (the heartbeat runner does).
func NoIntegrationsSentinel() string { return noIntegrationsSentinel }
