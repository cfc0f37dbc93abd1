package trial

import (
	"sync"
	"time"
)

type registryEntry struct {
	position int
	trial    *Trial
	touched  time.Time
}

// Registry holds the single in-flight trial of every active session. A trial
// is bound to the timeline position it was created for and is replaced as
// soon as the session moves on.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*registryEntry),
		now:     time.Now,
	}
}

// With runs fn against the session's trial at position, creating it with
// create when absent or stale. Calls are serialized.
func (r *Registry) With(sessionID string, position int, create func() *Trial, fn func(*Trial) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[sessionID]
	if !ok || entry.position != position {
		entry = &registryEntry{position: position, trial: create()}
		r.entries[sessionID] = entry
	}
	entry.touched = r.now()
	return fn(entry.trial)
}

// Remove drops the session's trial, if any.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, sessionID)
}

// Len returns the number of in-flight trials.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep evicts trials idle for longer than ttl and returns their session ids.
func (r *Registry) Sweep(ttl time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-ttl)
	var evicted []string
	for id, entry := range r.entries {
		if entry.touched.Before(cutoff) {
			delete(r.entries, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}
