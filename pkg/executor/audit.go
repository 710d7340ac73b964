package executor

import (
	"fmt"
	"strings"
	"time"

	"github.com/echohq/echo/pkg/audit"
	"github.com/echohq/echo/pkg/plan"
)

// NewAuditEntry builds the audit record for one executed step. The content
// is deterministic for a given result so the memory store can deduplicate
// replays.
func NewAuditEntry(result ActionResult, step plan.Step, agentID string) audit.Entry {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Action executed: %s\n", step.Action)
	fmt.Fprintf(&sb, "Description: %s\n", step.Description)
	fmt.Fprintf(&sb, "Success: %t\n", result.Success)
	if result.Error != "" {
		fmt.Fprintf(&sb, "Error: %s\n", result.Error)
	}
	fmt.Fprintf(&sb, "Duration: %dms\n", result.ExecutionTimeMs)
	fmt.Fprintf(&sb, "Tool calls: %d", result.ToolCalls)

	return audit.Entry{
		ID:      audit.NewID(),
		Type:    audit.EntryType,
		Content: sb.String(),
		Metadata: map[string]any{
			"stepId":          step.ID,
			"action":          string(step.Action),
			"success":         result.Success,
			"executionTimeMs": result.ExecutionTimeMs,
			"reversible":      result.Reversible,
		},
		CreatedAt: time.Now().UTC(),
		AgentID:   agentID,
	}
}
