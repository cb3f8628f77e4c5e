package saga

import (
	"context"
	"fmt"
	"sync"

	"moneymover/internal/domain"
)

// Checkpointer is the durable-execution contract the saga depends on. Save
// upserts the state for its reference id; Load fails with ErrTransferNotFound
// for unknown ids; Active returns every non-terminal state so a restarted
// process can resume them.
type Checkpointer interface {
	Save(ctx context.Context, state *State) error
	Load(ctx context.Context, referenceID string) (*State, error)
	Active(ctx context.Context) ([]State, error)
}

// MemoryCheckpointer keeps saga state in process memory. It satisfies the
// checkpoint contract for tests and for single-process deployments where
// durability across restarts is not required.
type MemoryCheckpointer struct {
	mu     sync.RWMutex
	states map[string]State
}

func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{states: make(map[string]State)}
}

func (c *MemoryCheckpointer) Save(_ context.Context, state *State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[state.ReferenceID] = *state
	return nil
}

func (c *MemoryCheckpointer) Load(_ context.Context, referenceID string) (*State, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.states[referenceID]
	if !ok {
		return nil, fmt.Errorf("Load: %q: %w", referenceID, domain.ErrTransferNotFound)
	}
	return &st, nil
}

func (c *MemoryCheckpointer) Active(_ context.Context) ([]State, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var active []State
	for _, st := range c.states {
		if !st.Phase.Terminal() {
			active = append(active, st)
		}
	}
	return active, nil
}
