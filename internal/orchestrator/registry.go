package orchestrator

import (
	"context"
	"sync"

	"reasonforge/internal/memory"
	"reasonforge/internal/storage"
	"reasonforge/internal/testsupport"
	pkgcache "reasonforge/pkg/cache"
)

// registryCapacity is the module-level session->MemoryHierarchy cache
// capacity, per spec §5 "Shared resources".
const registryCapacity = 100

// HydrateFunc builds a fresh MemoryHierarchy for a session id not already
// cached, e.g. by replaying its persisted memory entries from storage.
type HydrateFunc func(ctx context.Context, sessionID string) (*memory.Hierarchy, error)

// SessionRegistry owns the process-wide session->MemoryHierarchy LRU cache.
// Each hierarchy is single-owner: the registry hands out the same *Hierarchy
// instance for a given session id so callers never race two hierarchies for
// one session. Concurrent first-time hydration for the same id is
// deduplicated via an in-flight map, the way contextbridge's cache avoided
// duplicate signature lookups, adapted here into a minimal hand-rolled
// singleflight (the pack carries no golang.org/x/sync dependency to reuse).
type SessionRegistry struct {
	cache *pkgcache.LRU[string, *memory.Hierarchy]

	mu      sync.Mutex
	inflight map[string]*hydration
}

type hydration struct {
	done chan struct{}
	h    *memory.Hierarchy
	err  error
}

// NewSessionRegistry builds a registry with the spec-mandated capacity.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		cache:    pkgcache.New[string, *memory.Hierarchy](&pkgcache.Config{MaxEntries: registryCapacity}),
		inflight: make(map[string]*hydration),
	}
}

// SetEvictionHook installs fn to run whenever a session's hierarchy leaves
// the registry's cache — both on capacity eviction (the LRU's own OnEvict)
// and on an explicit Evict call — so a deployment can log or flush the
// hierarchy's last-known state before the registry drops its only
// reference to it. Every hierarchy mutation is already write-through to
// storage (internal/memory.Hierarchy), so the hook is an observability
// point, not a correctness requirement. Not safe to call concurrently
// with Get/Put/Evict.
func (r *SessionRegistry) SetEvictionHook(fn func(sessionID string, h *memory.Hierarchy)) {
	r.cache.OnEvict = fn
}

// Get returns the cached hierarchy for sessionID, hydrating it via hydrate
// if this is the first access. Concurrent Get calls for the same
// uncached sessionID share one hydrate invocation.
func (r *SessionRegistry) Get(ctx context.Context, sessionID string, hydrate HydrateFunc) (*memory.Hierarchy, error) {
	if h, ok := r.cache.Get(sessionID); ok {
		return h, nil
	}

	r.mu.Lock()
	if hy, ok := r.inflight[sessionID]; ok {
		r.mu.Unlock()
		<-hy.done
		return hy.h, hy.err
	}
	hy := &hydration{done: make(chan struct{})}
	r.inflight[sessionID] = hy
	r.mu.Unlock()

	hy.h, hy.err = hydrate(ctx, sessionID)
	if hy.err == nil {
		r.cache.Set(sessionID, hy.h)
	}
	close(hy.done)

	r.mu.Lock()
	delete(r.inflight, sessionID)
	r.mu.Unlock()

	return hy.h, hy.err
}

// Put installs a hierarchy directly, bypassing hydration (used when a
// caller already built one, e.g. brand-new sessions).
func (r *SessionRegistry) Put(sessionID string, h *memory.Hierarchy) {
	r.cache.Set(sessionID, h)
}

// Evict drops a session's hierarchy from the cache, e.g. on explicit
// client discard. Unlike capacity eviction inside the LRU, an explicit
// Delete does not run OnEvict on its own, so Evict invokes the same
// eviction hook itself when one is installed.
func (r *SessionRegistry) Evict(sessionID string) {
	if r.cache.OnEvict == nil {
		r.cache.Delete(sessionID)
		return
	}
	if h, ok := r.cache.Get(sessionID); ok {
		r.cache.Delete(sessionID)
		r.cache.OnEvict(sessionID, h)
		return
	}
	r.cache.Delete(sessionID)
}

// DefaultHydrate builds a HydrateFunc backed by store and cfg/clock/
// callbacks, for the common case of a session with no pre-built hierarchy.
func DefaultHydrate(store storage.MemoryEntryStore, cfg memory.Config, clock testsupport.Clock, callbacks memory.Callbacks) HydrateFunc {
	return func(ctx context.Context, sessionID string) (*memory.Hierarchy, error) {
		return memory.New(sessionID, store, cfg, clock, callbacks), nil
	}
}
