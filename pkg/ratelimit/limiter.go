package ratelimit

import (
	"fmt"
	"time"

	"github.com/echohq/echo/pkg/guardrail"
)

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed   bool
	Remaining int
	// ResetAfter is how long until the window rolls over. Only meaningful
	// on denial; callers use it to schedule a retry.
	ResetAfter time.Duration
}

// Limiter applies fixed-window limits from permission policies.
type Limiter struct {
	store Store
	now   func() time.Time
}

// NewLimiter creates a limiter over the given store.
func NewLimiter(store Store) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// Key builds the counter key for one agent/integration pair.
func Key(agentID, integration string) string {
	return fmt.Sprintf("%s:%s", agentID, integration)
}

// Check consumes one request slot for the agent/integration pair. A nil
// limit means the integration is unlimited. The window resets once the
// configured duration has elapsed since the window started; the counter
// never goes negative.
func (l *Limiter) Check(agentID, integration string, limit *guardrail.RateLimitConfig) Decision {
	if limit == nil || limit.MaxRequests <= 0 {
		return Decision{Allowed: true, Remaining: -1}
	}

	var decision Decision
	l.store.Visit(Key(agentID, integration), func(w Window) Window {
		now := l.now()

		if w.Start.IsZero() || now.Sub(w.Start) > limit.Window {
			w = Window{Count: 0, Start: now}
		}

		remaining := limit.MaxRequests - w.Count
		if remaining < 0 {
			remaining = 0
		}
		if remaining <= 0 {
			decision = Decision{
				Allowed:    false,
				Remaining:  0,
				ResetAfter: limit.Window - now.Sub(w.Start),
			}
			return w
		}

		w.Count++
		decision = Decision{Allowed: true, Remaining: remaining - 1}
		return w
	})
	return decision
}

// Reset clears the counter for the agent/integration pair.
func (l *Limiter) Reset(agentID, integration string) {
	l.store.Reset(Key(agentID, integration))
}
