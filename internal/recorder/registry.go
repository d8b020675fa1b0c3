package recorder

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hirebench/hirebench/internal/domain"
)

// Registry tracks the live recorder for each active session. A session has
// at most one recorder; a reconnect replaces the previous one after its
// final flush.
type Registry struct {
	mu     sync.RWMutex
	active map[string]*Recorder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		active: make(map[string]*Recorder),
	}
}

// Get returns the live recorder for a session, or nil.
func (g *Registry) Get(key domain.SessionKey) *Recorder {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.active[key.String()]
}

// Register installs a recorder for its session. An existing recorder for
// the same session is closed first so its buffered events are not lost.
func (g *Registry) Register(rec *Recorder) {
	k := rec.Key().String()

	g.mu.Lock()
	existing := g.active[k]
	g.active[k] = rec
	g.mu.Unlock()

	if existing != nil && existing != rec {
		existing.Close()
	}
	slog.Info("recorder registered", "session_key", k)
}

// Unregister removes a recorder if it is still the current one for its
// session. A stale unregister after a replacement is a no-op.
func (g *Registry) Unregister(rec *Recorder) {
	k := rec.Key().String()

	g.mu.Lock()
	current, ok := g.active[k]
	if ok && current == rec {
		delete(g.active, k)
	} else {
		ok = false
	}
	g.mu.Unlock()

	if ok {
		slog.Info("recorder unregistered", "session_key", k)
	}
}

// CloseIdle closes and removes recorders with no activity for longer than
// ttl. Returns how many were closed.
func (g *Registry) CloseIdle(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	g.mu.Lock()
	var idle []*Recorder
	for k, rec := range g.active {
		if rec.LastActivity().Before(cutoff) {
			idle = append(idle, rec)
			delete(g.active, k)
		}
	}
	g.mu.Unlock()

	for _, rec := range idle {
		rec.Close()
		slog.Info("idle recorder closed", "session_key", rec.Key().String())
	}
	return len(idle)
}

// CloseAll closes every live recorder, flushing what it can. Used at
// shutdown.
func (g *Registry) CloseAll() {
	g.mu.Lock()
	all := make([]*Recorder, 0, len(g.active))
	for k, rec := range g.active {
		all = append(all, rec)
		delete(g.active, k)
	}
	g.mu.Unlock()

	for _, rec := range all {
		rec.Close()
	}
}
