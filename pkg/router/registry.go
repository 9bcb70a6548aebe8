package router

import (
	"sort"
	"sync"

	"github.com/wayfarer-nav/wayfarer/pkg/engine"
	"github.com/wayfarer-nav/wayfarer/pkg/util"
)

// pendingRequest is the registry entry for one outstanding engine request.
// The owner reference keeps the dispatcher reachable for as long as any
// callback may still fire.
type pendingRequest struct {
	id    engine.RequestID
	owner *RequestDispatcher
}

// RequestRegistry tracks requests between issuance and the first of
// completion or cancellation. The mutex guards the map only; decode work
// and completion delivery never run under it.
type RequestRegistry struct {
	mu      sync.Mutex
	pending map[engine.RequestID]*pendingRequest
}

func NewRequestRegistry() *RequestRegistry {
	return &RequestRegistry{
		pending: make(map[engine.RequestID]*pendingRequest),
	}
}

// Register inserts a new pending entry. Registering an id that is already
// present is a caller bug: engine ids are unique among pending requests.
func (r *RequestRegistry) Register(id engine.RequestID, handle *pendingRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.pending[id]
	util.AssertPanic(!exists, "request identifier registered twice")
	r.pending[id] = handle
}

// Remove deletes the entry if present and reports whether it existed.
// Removing an absent id is a benign no-op: completion callbacks race with
// cancellation and the loser must land here harmlessly.
func (r *RequestRegistry) Remove(id engine.RequestID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.pending[id]
	delete(r.pending, id)
	return exists
}

func (r *RequestRegistry) Contains(id engine.RequestID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.pending[id]
	return exists
}

func (r *RequestRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.pending)
}

// Snapshot returns the pending ids in ascending order, for diagnostics and
// tests.
func (r *RequestRegistry) Snapshot() []engine.RequestID {
	r.mu.Lock()
	ids := make([]engine.RequestID, 0, len(r.pending))
	for id := range r.pending {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
