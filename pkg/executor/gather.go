package executor

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Perception is the context snapshot gathered before a turn: what the
// memory store knows about the query and which integrations are live.
type Perception struct {
	MemoryContext any           `json:"memory_context,omitempty"`
	Integrations  []Integration `json:"integrations"`
}

// GatherContext fans out the independent collaborator lookups for a turn
// and joins all of them before returning. A failure in either lookup fails
// the gather; partial perception is worse than none because the planner
// would silently plan around missing integrations.
func (e *Executor) GatherContext(ctx context.Context, query string, turn TurnContext) (Perception, error) {
	var perception Perception

	g, ctx := errgroup.WithContext(ctx)

	if e.memory != nil {
		g.Go(func() error {
			data, err := e.memory.Search(ctx, query, turn, "agent", SearchOptions{
				Structured: true,
				Limit:      10,
			})
			if err != nil {
				return err
			}
			perception.MemoryContext = data
			return nil
		})
	}

	if e.integrations != nil {
		g.Go(func() error {
			connected, err := e.integrations.ListConnected(ctx, turn)
			if err != nil {
				return err
			}
			perception.Integrations = connected
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Perception{}, err
	}
	return perception, nil
}
