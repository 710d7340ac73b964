// Package heartbeat runs a rotation of lightweight monitoring checks
// against connected integrations, bounded to a timezone-local active-hours
// window. Checks run strictly sequentially, high priority first, so one
// cycle never floods the integrations.
package heartbeat

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/echohq/echo/pkg/executor"
	"github.com/echohq/echo/pkg/telemetry"
)

// QueryFunc asks one integration a monitoring question and returns the
// text the explorer produced, empty for nothing noteworthy.
type QueryFunc func(ctx context.Context, integration, query string) (string, error)

// WithinActiveHours reports whether now falls inside the configured
// window in the configured timezone. An unparseable timezone falls back
// to UTC rather than silencing the heartbeat.
func WithinActiveHours(cfg Config, now time.Time) bool {
	loc := time.UTC
	if cfg.Timezone != "" {
		if l, err := time.LoadLocation(cfg.Timezone); err == nil {
			loc = l
		}
	}
	hour := now.In(loc).Hour()
	return cfg.ActiveHours.Start <= hour && hour < cfg.ActiveHours.End
}

// RunCheck executes one check and returns the updated check copy along
// with its result. A failing query never propagates: it degrades to a
// single low-priority finding so the rest of the cycle proceeds.
func RunCheck(ctx context.Context, check Check, query QueryFunc) (Check, Result) {
	now := time.Now()
	result := Result{
		CheckID:          check.ID,
		Findings:         []Finding{},
		NextScheduledRun: now.Add(nextRunDelay),
	}

	updated := check
	updated.LastRun = &now

	// A check without an integration is a diagnostic no-op slot in the
	// rotation; it keeps its place but produces nothing.
	if check.Integration == "" {
		return updated, result
	}

	text, err := query(ctx, check.Integration, check.Query)
	if err != nil {
		updated.LastResult = fmt.Sprintf("error: %v", err)
		result.Findings = append(result.Findings, Finding{
			Source:   check.Integration,
			Summary:  fmt.Sprintf("Check %q failed: %v", check.ID, err),
			Priority: PriorityLow,
		})
		telemetry.RecordHeartbeatFinding(string(PriorityLow))
		return updated, result
	}

	updated.LastResult = text
	if text == "" || text == executor.NoIntegrationsSentinel() {
		return updated, result
	}

	finding := Finding{
		Source:         check.Integration,
		Summary:        text,
		Priority:       check.Priority,
		ActionRequired: check.Priority == PriorityHigh,
	}
	if finding.ActionRequired {
		finding.SuggestedAction = fmt.Sprintf("Review %s: %s", check.Integration, check.Query)
	}
	result.Findings = append(result.Findings, finding)
	telemetry.RecordHeartbeatFinding(string(check.Priority))
	return updated, result
}

// RunCycle runs every configured check once, high priority first, and
// returns the per-check results plus the updated check registry. Disabled
// configs and out-of-window calls return immediately without touching any
// integration.
func RunCycle(ctx context.Context, cfg Config, query QueryFunc) ([]Result, []Check) {
	if !cfg.Enabled || !WithinActiveHours(cfg, time.Now()) {
		return []Result{}, cfg.Checks
	}

	ordered := append([]Check(nil), cfg.Checks...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority.rank() < ordered[j].Priority.rank()
	})

	results := make([]Result, 0, len(ordered))
	updated := make([]Check, 0, len(ordered))
	for _, check := range ordered {
		// Sequential on purpose: concurrent probes would multiply load
		// on the user's integrations for no latency win anyone notices.
		checkCopy, result := RunCheck(ctx, check, query)
		updated = append(updated, checkCopy)
		results = append(results, result)
	}

	telemetry.RecordHeartbeatCycle()
	return results, updated
}
