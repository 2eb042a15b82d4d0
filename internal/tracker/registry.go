package tracker

import (
	"sync"

	"github.com/ernie/sessions-tracker/internal/domain"
)

// Registry is the in-memory mapping from live engine slot to the resolved
// player and their current session. It is the only mutable shared state in
// the tracker and never talks to the persistence gateway itself.
type Registry struct {
	mu      sync.RWMutex
	players map[int]*domain.Player
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{players: make(map[int]*domain.Player)}
}

// Bind installs or replaces the binding for a slot. Overwriting an existing
// binding performs no cleanup; the disconnect path owns that.
func (r *Registry) Bind(slot int, p *domain.Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players[slot] = p
}

// Unbind removes and returns the binding for a slot. A missing slot (late
// or duplicate disconnect) reports ok=false and is not an error.
func (r *Registry) Unbind(slot int) (*domain.Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[slot]
	if ok {
		delete(r.players, slot)
	}
	return p, ok
}

// Get returns the binding for a slot without removing it
func (r *Registry) Get(slot int) (*domain.Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[slot]
	return p, ok
}

// Snapshot returns all currently bound players in arbitrary order.
func (r *Registry) Snapshot() []*domain.Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	players := make([]*domain.Player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p)
	}
	return players
}

// Bindings returns a copy of the slot map for status reporting
func (r *Registry) Bindings() map[int]*domain.Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int]*domain.Player, len(r.players))
	for slot, p := range r.players {
		out[slot] = p
	}
	return out
}

// Len returns the number of bound slots
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}
