package executor

import (
	"context"
	"strings"
	"time"

	"github.com/echohq/echo/pkg/logging"
	"github.com/echohq/echo/pkg/plan"
	"github.com/echohq/echo/pkg/telemetry"
)

// abortedError is the error tag a cancelled action carries. Callers match
// on it to tell cooperative cancellation apart from real failures.
const abortedError = "Action aborted"

// AbortedError returns the error tag a cancelled action carries.
func AbortedError() string { return abortedError }

// nonTransientPhrases classify failures that will not improve on retry.
var nonTransientPhrases = []string{
	"not found",
	"not connected",
	"permission denied",
	"unauthorized",
	"invalid",
	"not supported",
}

// retryState is the executor's explicit retry state machine. Making the
// wait state a first-class value keeps the suspension and cancellation
// checkpoints visible instead of buried in loop control.
type retryState int

const (
	statePending retryState = iota
	stateRunning
	stateRetrying
	stateSucceeded
	stateFailedTerminal
	stateCancelled
)

// IsNonTransient reports whether the error message matches a known
// permanent-failure phrase.
func IsNonTransient(errMsg string) bool {
	msg := strings.ToLower(errMsg)
	for _, phrase := range nonTransientPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// ExecuteWithRetry runs a step with exponential backoff on transient
// failures. Cancellation is honored at the top of every attempt; an
// in-flight collaborator call is only interrupted if it watches ctx
// itself. The returned result is total, never an error.
func (e *Executor) ExecuteWithRetry(ctx context.Context, step plan.Step, turn TurnContext, cfg RetryConfig) ActionResult {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var last ActionResult
	attempt := 0
	state := statePending

	for {
		switch state {
		case statePending, stateRetrying:
			if ctx.Err() != nil {
				state = stateCancelled
				continue
			}
			if state == stateRetrying {
				delay := backoffDelay(cfg, attempt)
				e.logBackoff(step, attempt, delay)
				telemetry.RecordRetryAttempt()
				if err := e.sleep(ctx, delay); err != nil {
					state = stateCancelled
					continue
				}
				// Re-check after the wait; the turn may have been
				// cancelled while we slept.
				if ctx.Err() != nil {
					state = stateCancelled
					continue
				}
			}
			attempt++
			state = stateRunning

		case stateRunning:
			last = e.Execute(ctx, step, turn)
			switch {
			case last.Success:
				state = stateSucceeded
			case IsNonTransient(last.Error):
				state = stateFailedTerminal
			case attempt >= cfg.MaxAttempts:
				state = stateFailedTerminal
			default:
				state = stateRetrying
			}

		case stateSucceeded, stateFailedTerminal:
			return last

		case stateCancelled:
			return ActionResult{
				RequestID: step.ID,
				Success:   false,
				Error:     abortedError,
				Logged:    true,
			}
		}
	}
}

// backoffDelay computes the wait before the given attempt's retry:
// base·multiplier^(attempt−1), capped at the configured maximum.
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := float64(cfg.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= cfg.Multiplier
	}
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		return cfg.MaxDelay
	}
	return time.Duration(delay)
}

// sleepWithContext waits without blocking other turns; it returns early
// with the context error when the turn is cancelled mid-wait.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) logBackoff(step plan.Step, attempt int, delay time.Duration) {
	if e.logger == nil {
		return
	}
	e.logger.Warn(logging.CategoryRetry, "backoff", "retrying after transient failure", map[string]any{
		"step_id":  step.ID,
		"attempt":  attempt,
		"delay_ms": delay.Milliseconds(),
	})
}
