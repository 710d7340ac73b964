// Package ratelimit enforces per-agent, per-integration request caps using
// fixed time windows. The counter store is injectable so single-instance
// deployments can use the in-memory table and multi-instance ones can back
// it with an external counter.
package ratelimit

import (
	"sync"
	"time"
)

// Window is the mutable counter state for one key.
type Window struct {
	Count int
	Start time.Time
}

// Store holds window counters keyed by string. Implementations must make
// Visit atomic per key; cross-key calls may proceed concurrently.
type Store interface {
	// Visit runs fn against the current window for key under the key's
	// critical section and persists the returned window. A zero Window is
	// passed when the key has never been seen.
	Visit(key string, fn func(w Window) Window)
	// Reset drops the counter for key.
	Reset(key string)
}

// MemoryStore is the in-process Store. Idle keys are evicted by a
// background sweep so an agent that stops talking to an integration does
// not pin counter state forever.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]windowEntry

	stopOnce sync.Once
	done     chan struct{}
}

type windowEntry struct {
	window   Window
	lastSeen time.Time
}

const (
	sweepInterval = time.Minute
	idleTTL       = 10 * time.Minute
)

// NewMemoryStore creates a store and starts its eviction sweep. Call Close
// to stop the sweep goroutine.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		windows: make(map[string]windowEntry),
		done:    make(chan struct{}),
	}
	go s.sweep()
	return s
}

func (s *MemoryStore) Visit(key string, fn func(w Window) Window) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.windows[key]
	entry.window = fn(entry.window)
	entry.lastSeen = time.Now()
	s.windows[key] = entry
}

func (s *MemoryStore) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
}

// Close stops the eviction goroutine. Safe to call multiple times.
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *MemoryStore) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for key, entry := range s.windows {
				if now.Sub(entry.lastSeen) > idleTTL {
					delete(s.windows, key)
				}
			}
			s.mu.Unlock()
		}
	}
}
