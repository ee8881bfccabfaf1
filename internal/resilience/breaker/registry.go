package breaker

import "sync"

// Registry maps operation keys to their shared breaker cells. Cells are
// created lazily on first use and never removed; the key space equals
// the number of distinct logical operations.
type Registry struct {
	mu    sync.Mutex
	cells map[string]*Breaker
}

func NewRegistry() *Registry {
	return &Registry{cells: make(map[string]*Breaker)}
}

// Get returns the breaker for key, building it on first use. Races are
// resolved first-writer-wins: all callers for the same key share one cell.
func (r *Registry) Get(key string, build func() *Breaker) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.cells[key]; ok {
		return b
	}
	b := build()
	r.cells[key] = b
	return b
}

// Snapshot returns a point-in-time view of all breaker cells.
func (r *Registry) Snapshot() map[string]Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Snapshot, len(r.cells))
	for key, b := range r.cells {
		out[key] = b.Snapshot()
	}
	return out
}
