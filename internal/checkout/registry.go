package checkout

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tillpoint/tillpoint/internal/catalog"
)

// SnapshotSource yields full active-catalog snapshots until ctx ends.
type SnapshotSource interface {
	Subscribe(ctx context.Context) <-chan catalog.Snapshot
}

// Registry owns one engine per terminal and keeps them all fed with the
// latest catalog snapshot.
type Registry struct {
	deps    Deps
	allowed map[string]struct{}

	mu      sync.RWMutex
	engines map[string]*Engine
	latest  *catalog.Snapshot
}

// NewRegistry constructs an empty Registry. When terminals are given only
// those ids can be opened.
func NewRegistry(deps Deps, terminals ...string) *Registry {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	r := &Registry{deps: deps, engines: map[string]*Engine{}}
	if len(terminals) > 0 {
		r.allowed = make(map[string]struct{}, len(terminals))
		for _, id := range terminals {
			r.allowed[id] = struct{}{}
		}
	}
	return r
}

// Open returns the engine of a permitted terminal.
func (r *Registry) Open(terminalID string) (*Engine, error) {
	if r.allowed != nil {
		if _, ok := r.allowed[terminalID]; !ok {
			return nil, ErrUnknownTerminal
		}
	}
	return r.Engine(terminalID), nil
}

// Engine returns the terminal's engine, creating it on first use.
func (r *Registry) Engine(terminalID string) *Engine {
	r.mu.RLock()
	e, ok := r.engines[terminalID]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.engines[terminalID]; ok {
		return e
	}
	e = NewEngine(terminalID, r.deps)
	if r.latest != nil {
		e.ObserveCatalog(*r.latest)
	}
	r.engines[terminalID] = e
	return e
}

// Terminals lists the terminals that have an engine.
func (r *Registry) Terminals() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.engines))
	for id := range r.engines {
		ids = append(ids, id)
	}
	return ids
}

// Observe fans a snapshot out to every engine and keeps it for engines
// created later.
func (r *Registry) Observe(s catalog.Snapshot) {
	r.mu.Lock()
	r.latest = &s
	engines := make([]*Engine, 0, len(r.engines))
	for _, e := range r.engines {
		engines = append(engines, e)
	}
	r.mu.Unlock()
	for _, e := range engines {
		e.ObserveCatalog(s)
	}
}

// Run consumes source until ctx ends. A stream that closes early is
// resubscribed after retry.
func (r *Registry) Run(ctx context.Context, source SnapshotSource, retry time.Duration) {
	if retry <= 0 {
		retry = time.Second
	}
	for {
		for s := range source.Subscribe(ctx) {
			r.Observe(s)
		}
		if ctx.Err() != nil {
			return
		}
		r.deps.Logger.Warn("catalog stream ended, resubscribing", slog.Duration("after", retry))
		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}
	}
}

// Evict drops engines that have been idle for at least idle and returns how
// many went. Their last invoice goes with them.
func (r *Registry) Evict(idle time.Duration) int {
	now := r.deps.Clock()
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.engines {
		if e.Idle(now, idle) {
			delete(r.engines, id)
			n++
		}
	}
	return n
}

// SweepIdle evicts idle engines every interval until ctx ends.
func (r *Registry) SweepIdle(ctx context.Context, interval, idle time.Duration) {
	if interval <= 0 || idle <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Evict(idle); n > 0 {
				r.deps.Logger.Info("evicted idle terminals", slog.Int("count", n))
			}
		}
	}
}
