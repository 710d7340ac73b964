package audit

import (
	"context"
	"sync"
)

// Recorder persists audit entries. The external memory store implements
// this in production; MemoryRecorder backs tests and ephemeral runs.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, agentID string, limit int) ([]Entry, error)
}

// MemoryRecorder keeps entries in process, newest last.
type MemoryRecorder struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryRecorder creates an empty in-process recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (r *MemoryRecorder) Record(_ context.Context, entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *MemoryRecorder) List(_ context.Context, agentID string, limit int) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Entry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if agentID != "" && r.entries[i].AgentID != agentID {
			continue
		}
		out = append(out, r.entries[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
