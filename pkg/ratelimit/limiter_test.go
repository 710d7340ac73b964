package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/echohq/echo/pkg/guardrail"
)

func newTestLimiter(t *testing.T) (*Limiter, *time.Time) {
	t.Helper()
	store := NewMemoryStore()
	t.Cleanup(store.Close)

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	limiter := NewLimiter(store)
	limiter.now = func() time.Time { return now }
	return limiter, &now
}

func TestCheckAllowsUpToMaxThenDenies(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	limit := &guardrail.RateLimitConfig{MaxRequests: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		d := limiter.Check("agent-1", "gmail", limit)
		if !d.Allowed {
			t.Fatalf("call %d should be allowed", i+1)
		}
		if want := 3 - i - 1; d.Remaining != want {
			t.Errorf("call %d: expected remaining %d, got %d", i+1, want, d.Remaining)
		}
	}

	d := limiter.Check("agent-1", "gmail", limit)
	if d.Allowed {
		t.Fatal("fourth call in the window should be denied")
	}
	if d.Remaining != 0 {
		t.Errorf("denied call should report remaining 0, got %d", d.Remaining)
	}
	if d.ResetAfter <= 0 || d.ResetAfter > time.Minute {
		t.Errorf("denied call should expose time until reset, got %v", d.ResetAfter)
	}
}

func TestCheckResetsAfterWindowElapses(t *testing.T) {
	limiter, now := newTestLimiter(t)
	limit := &guardrail.RateLimitConfig{MaxRequests: 1, Window: time.Minute}

	if d := limiter.Check("agent-1", "linear", limit); !d.Allowed {
		t.Fatal("first call should be allowed")
	}
	if d := limiter.Check("agent-1", "linear", limit); d.Allowed {
		t.Fatal("second call inside window should be denied")
	}

	*now = now.Add(time.Minute + time.Second)
	if d := limiter.Check("agent-1", "linear", limit); !d.Allowed {
		t.Fatal("call after window elapsed should be allowed again")
	}
}

func TestCheckNilPolicyIsUnlimited(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	for i := 0; i < 100; i++ {
		if d := limiter.Check("agent-1", "slack", nil); !d.Allowed {
			t.Fatal("nil policy should never deny")
		}
	}
}

func TestCheckKeysAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	limit := &guardrail.RateLimitConfig{MaxRequests: 1, Window: time.Minute}

	if d := limiter.Check("agent-1", "gmail", limit); !d.Allowed {
		t.Fatal("agent-1 first call should pass")
	}
	if d := limiter.Check("agent-2", "gmail", limit); !d.Allowed {
		t.Fatal("agent-2 should have its own window")
	}
	if d := limiter.Check("agent-1", "calendar", limit); !d.Allowed {
		t.Fatal("other integrations should have their own window")
	}
}

func TestConcurrentChecksNeverExceedMax(t *testing.T) {
	store := NewMemoryStore()
	t.Cleanup(store.Close)
	limiter := NewLimiter(store)
	limit := &guardrail.RateLimitConfig{MaxRequests: 50, Window: time.Minute}

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d := limiter.Check("agent-1", "gmail", limit); d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Fatalf("expected exactly 50 allowed calls, got %d", allowed)
	}
}
