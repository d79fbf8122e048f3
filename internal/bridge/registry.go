package bridge

import (
	"log/slog"
	"sync"
)

// Registry is the shared map of live sessions, keyed by session identifier.
// One instance is constructed at startup and injected into every consumer;
// there is no package-level global. Out-of-band readers (the hint generator)
// use it to inspect an active session's recent transcript.
//
// All methods are safe for concurrent use from many handlers plus external
// readers. Invariant: a handler adds itself on start and removes itself on
// every teardown path, so no entry outlives its session.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]*Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]*Handler)}
}

// Add registers h under id. Reusing a live identifier overwrites the previous
// entry and logs a warning.
func (r *Registry) Add(id string, h *Handler) {
	r.mu.Lock()
	_, replaced := r.handlers[id]
	r.handlers[id] = h
	n := len(r.handlers)
	r.mu.Unlock()

	if replaced {
		slog.Warn("registry: session id reused, previous entry replaced", "session_id", id)
	}
	slog.Info("registry: session registered", "session_id", id, "active", n)
}

// Remove deletes the entry for id. No-op when absent.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	_, ok := r.handlers[id]
	delete(r.handlers, id)
	n := len(r.handlers)
	r.mu.Unlock()

	if ok {
		slog.Info("registry: session removed", "session_id", id, "active", n)
	}
}

// Get returns the live handler for id, or nil.
func (r *Registry) Get(id string) *Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[id]
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// RecentContext returns the last limit transcript messages of the session
// with the given id, or nil if no such session is active.
func (r *Registry) RecentContext(id string, limit int) []Message {
	h := r.Get(id)
	if h == nil {
		return nil
	}
	return h.RecentContext(limit)
}
