// Package store holds the in-memory shipment registry. State is
// process-local and lost on restart; that is a deliberate property of the
// demo, not an oversight.
package store

import (
	"fmt"
	"sync"

	"github.com/realpay/supply-engine/internal/model"
)

// ErrTerminalStatus is returned for status transitions out of a terminal
// status (delivered, cancelled).
var ErrTerminalStatus = fmt.Errorf("store: shipment is in a terminal status")

// ErrNotFound is returned when a shipment id is unknown.
var ErrNotFound = fmt.Errorf("store: shipment not found")

// Registry is the in-memory shipment store. Reads return copies so callers
// never observe a shipment mid-update; all mutation is serialized through
// the write lock via Update and SetStatus.
//
// Path, Stops, Items and Batches are immutable after insertion, so copies
// share those slices' backing arrays.
type Registry struct {
	mu        sync.RWMutex
	shipments map[string]*model.Shipment
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{shipments: make(map[string]*model.Shipment)}
}

// Insert adds a shipment. Fails if the id already exists.
func (r *Registry) Insert(s *model.Shipment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.shipments[s.ID]; ok {
		return fmt.Errorf("store: shipment %s already exists", s.ID)
	}
	// Store a copy to avoid external mutation.
	cp := *s
	r.shipments[s.ID] = &cp
	return nil
}

// Get returns a snapshot copy of the shipment with the given id.
func (r *Registry) Get(id string) (model.Shipment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.shipments[id]
	if !ok {
		return model.Shipment{}, false
	}
	return *s, true
}

// List returns snapshot copies of all shipments. Order is unspecified;
// callers sort or filter as needed.
func (r *Registry) List() []model.Shipment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Shipment, 0, len(r.shipments))
	for _, s := range r.shipments {
		out = append(out, *s)
	}
	return out
}

// IDs returns the ids of all registered shipments.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.shipments))
	for id := range r.shipments {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of registered shipments.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.shipments)
}

// Update applies fn to the shipment under the write lock, serializing it
// against the simulator tick and status transitions. Returns ErrNotFound
// for unknown ids.
func (r *Registry) Update(id string, fn func(*model.Shipment)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.shipments[id]
	if !ok {
		return ErrNotFound
	}
	fn(s)
	return nil
}

// SetStatus transitions a shipment's status without touching motion state.
// Transitions out of delivered or cancelled are refused.
func (r *Registry) SetStatus(id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.shipments[id]
	if !ok {
		return ErrNotFound
	}
	if model.TerminalStatus(s.Status) && status != s.Status {
		return ErrTerminalStatus
	}
	s.Status = status
	return nil
}
