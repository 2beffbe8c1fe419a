package authstate

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Registry owns the per-user machines. It is the single injected state
// container: created at the application root, passed to whoever needs
// resolved auth state, no package-level singleton.
type Registry struct {
	cfg     Config
	clients ClientRecordFetcher
	log     *slog.Logger

	mu       sync.Mutex
	machines map[string]*entry
	onEvict  func(userID string)

	janitorOnce sync.Once
}

type entry struct {
	machine    *Machine
	lastAccess time.Time
}

// idleExpiry is how long an untouched machine survives before the
// janitor tears it down. Longer than any refresh interval, so active
// sessions are never collected.
const idleExpiry = 2 * time.Hour

func NewRegistry(cfg Config, clients ClientRecordFetcher, log *slog.Logger) *Registry {
	return &Registry{
		cfg:      cfg.withDefaults(),
		clients:  clients,
		log:      log,
		machines: make(map[string]*entry),
	}
}

// Attach creates and starts a machine for the user, replacing any
// previous one (a fresh login is a full session transition).
func (r *Registry) Attach(ctx context.Context, userID string, source SessionSource) *Machine {
	m := New(r.cfg, source, r.clients, r.log)

	r.mu.Lock()
	if old, ok := r.machines[userID]; ok {
		old.machine.Stop()
	}
	r.machines[userID] = &entry{machine: m, lastAccess: time.Now()}
	r.mu.Unlock()

	m.Start(ctx)
	r.janitorOnce.Do(func() { go r.janitor(ctx) })
	return m
}

// Get returns the user's machine or nil when no session is attached.
func (r *Registry) Get(userID string) *Machine {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.machines[userID]
	if !ok {
		return nil
	}
	e.lastAccess = time.Now()
	return e.machine
}

// OnEvict registers a hook that fires after Detach or the idle janitor
// removes a machine. Whoever caches per-user state keyed by the
// registry (the auth usecase and its session managers) uses it to drop
// their side. Attach replacing a machine does not fire the hook: a
// fresh login brings its own replacement.
func (r *Registry) OnEvict(fn func(userID string)) {
	r.mu.Lock()
	r.onEvict = fn
	r.mu.Unlock()
}

// Detach stops and removes the user's machine (logout).
func (r *Registry) Detach(userID string) {
	r.mu.Lock()
	e, ok := r.machines[userID]
	if ok {
		e.machine.Stop()
		delete(r.machines, userID)
	}
	fn := r.onEvict
	r.mu.Unlock()

	if ok && fn != nil {
		fn(userID)
	}
}

func (r *Registry) janitor(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.sweep(time.Now().Add(-idleExpiry))
		case <-ctx.Done():
			return
		}
	}
}

// sweep evicts machines idle since before cutoff. The hook runs after
// the lock is released; it takes the caller's own locks.
func (r *Registry) sweep(cutoff time.Time) {
	var evicted []string
	r.mu.Lock()
	for id, e := range r.machines {
		if e.lastAccess.Before(cutoff) {
			e.machine.Stop()
			delete(r.machines, id)
			evicted = append(evicted, id)
		}
	}
	fn := r.onEvict
	r.mu.Unlock()

	if fn != nil {
		for _, id := range evicted {
			fn(id)
		}
	}
}
