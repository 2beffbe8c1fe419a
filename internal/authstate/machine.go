package authstate

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go-dishlens-backend/internal/domain"
	"go-dishlens-backend/pkg/supabase"
)

// SessionSource abstracts the hosted auth service for one user's
// session: the initial retrieval, the connectivity probe and the
// change-event stream.
type SessionSource interface {
	Resolve(ctx context.Context) (*supabase.Session, error)
	Probe(ctx context.Context) error
	Events() <-chan supabase.Event
}

// ClientRecordFetcher looks up the business-profile record linked to an
// authenticated identity. A missing record is (nil, nil), not an error.
type ClientRecordFetcher interface {
	GetByUserID(ctx context.Context, userID string) (*domain.Client, error)
}

// Config carries the timing contract. Zero values get the same defaults
// the frontend shipped with.
type Config struct {
	ProbeTimeout        time.Duration // connectivity probe
	SessionFetchTimeout time.Duration // initial session retrieval
	AuthInitTimeout     time.Duration // overall auth initialization
	ClientRecordTimeout time.Duration // client-record resolution
	UnifiedEscalation   time.Duration // second-stage escalation
	AdminEmails         []string
}

func (c Config) withDefaults() Config {
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 5 * time.Second
	}
	if c.SessionFetchTimeout <= 0 {
		c.SessionFetchTimeout = 8 * time.Second
	}
	if c.AuthInitTimeout <= 0 {
		c.AuthInitTimeout = 20 * time.Second
	}
	if c.ClientRecordTimeout <= 0 {
		c.ClientRecordTimeout = 5 * time.Second
	}
	if c.UnifiedEscalation <= 0 {
		c.UnifiedEscalation = 20 * time.Second
	}
	return c
}

type timerKind int

const (
	timerAuthInit timerKind = iota
	timerClientRecord
	timerUnified
)

type event interface{ isEvent() }

// deltaEvent carries a partial update from an async resolution.
// gen is the session generation the work belongs to; results from a
// previous generation are discarded, which is how in-flight fetches
// are "cancelled" without aborting the underlying request.
type deltaEvent struct {
	gen   uint64
	delta Delta
}

type timerEvent struct {
	gen  uint64
	kind timerKind
}

type authEvent struct {
	ev supabase.Event
}

func (deltaEvent) isEvent() {}
func (timerEvent) isEvent() {}
func (authEvent) isEvent()  {}

// Machine owns one user's unified auth state. Exactly one goroutine
// (the event loop) writes the state; everything else reads immutable
// snapshots. Machines are created by the Registry at login and torn
// down at logout or idle expiry.
type Machine struct {
	cfg     Config
	source  SessionSource
	clients ClientRecordFetcher
	log     *slog.Logger

	mailbox chan event
	done    chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once

	snap atomic.Value // Snapshot

	subMu   sync.Mutex
	subs    map[uint64]chan Snapshot
	nextSub uint64

	// Loop-owned fields; never touched outside the event loop.
	gen                uint64
	clientFetchStarted bool
	authInit           *escalationPolicy
	clientRecord       *escalationPolicy
	unified            *escalationPolicy
}

func New(cfg Config, source SessionSource, clients ClientRecordFetcher, log *slog.Logger) *Machine {
	cfg = cfg.withDefaults()
	m := &Machine{
		cfg:          cfg,
		source:       source,
		clients:      clients,
		log:          log,
		mailbox:      make(chan event, 64),
		done:         make(chan struct{}),
		subs:         make(map[uint64]chan Snapshot),
		authInit:     newEscalationPolicy("auth-init", cfg.AuthInitTimeout),
		clientRecord: newEscalationPolicy("client-record", cfg.ClientRecordTimeout),
		unified:      newEscalationPolicy("unified", cfg.UnifiedEscalation),
	}
	m.snap.Store(initialSnapshot())
	return m
}

// Start launches the event loop and the initial session resolution.
// A second call within the machine's lifetime is a no-op.
//
// Ordering guarantee: the event stream is captured before the initial
// session fetch is issued, so a change event firing between the two
// cannot be lost - it sits in the channel until the loop drains it.
func (m *Machine) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		events := m.source.Events()
		go m.run(ctx, events)
	})
}

// Stop terminates the event loop and releases the session source when
// it holds resources of its own (the SessionManager's refresh loop).
// The machine is the source's lifecycle owner: every teardown path,
// logout, replacement at re-login or idle eviction, ends here.
// In-flight fetches are left to settle; their results are discarded.
func (m *Machine) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
		if c, ok := m.source.(interface{ Close() }); ok {
			c.Close()
		}
	})
}

// Snapshot returns the current immutable state.
func (m *Machine) Snapshot() Snapshot {
	return m.snap.Load().(Snapshot)
}

// Subscribe registers a read-only snapshot listener. The channel holds
// the latest snapshot only: a slow consumer misses intermediate states
// but never blocks the machine. cancel must be called when done.
func (m *Machine) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.subMu.Unlock()

	m.push(ch, m.Snapshot())

	cancel := func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
	return ch, cancel
}

// WaitResolved blocks until the machine leaves Pending or ctx expires,
// returning the snapshot it observed last. The escalation policies
// guarantee this settles within the unified escalation window.
func (m *Machine) WaitResolved(ctx context.Context) Snapshot {
	ch, cancel := m.Subscribe()
	defer cancel()
	for {
		select {
		case snap := <-ch:
			if snap.Resolution != ResolutionPending {
				return snap
			}
		case <-ctx.Done():
			return m.Snapshot()
		case <-m.done:
			return m.Snapshot()
		}
	}
}

func (m *Machine) push(ch chan Snapshot, snap Snapshot) {
	// Latest-wins: drop the stale buffered snapshot if the consumer
	// has not drained it yet.
	for {
		select {
		case ch <- snap:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

func (m *Machine) post(ev event) {
	select {
	case m.mailbox <- ev:
	case <-m.done:
	}
}

func (m *Machine) run(ctx context.Context, events <-chan supabase.Event) {
	gen := m.gen
	m.authInit.arm(func() { m.post(timerEvent{gen: gen, kind: timerAuthInit}) })
	go m.resolveSession(ctx, gen)

	defer func() {
		m.authInit.reset()
		m.clientRecord.reset()
		m.unified.reset()
	}()

	for {
		select {
		case ev := <-m.mailbox:
			m.handle(ctx, ev)
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.handle(ctx, authEvent{ev: ev})
		case <-ctx.Done():
			return
		case <-m.done:
			return
		}
	}
}

func (m *Machine) handle(ctx context.Context, ev event) {
	switch e := ev.(type) {
	case deltaEvent:
		if e.gen != m.gen {
			return // stale generation, discard
		}
		m.apply(ctx, e.delta)
	case timerEvent:
		if e.gen != m.gen {
			return
		}
		m.handleTimer(ctx, e.kind)
	case authEvent:
		m.handleAuthEvent(ctx, e.ev)
	}
}

// apply reduces the delta, publishes the new snapshot and runs the
// post-merge bookkeeping (disarming settled policies, kicking off the
// client-record resolution once a user is known).
func (m *Machine) apply(ctx context.Context, d Delta) {
	snap := reduce(m.Snapshot(), d)
	m.snap.Store(snap)
	m.broadcast(snap)

	if snap.Initialized {
		m.authInit.disarm()
	}
	if snap.ClientRecordStatus != RecordLoading {
		m.clientRecord.disarm()
	}
	if snap.Initialized && !snap.Loading && !snap.Authenticating && snap.ClientRecordStatus != RecordLoading {
		m.unified.disarm()
	}

	if snap.IsAuthenticated && !m.clientFetchStarted {
		m.startClientResolution(ctx, snap)
	}
}

func (m *Machine) broadcast(snap Snapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		m.push(ch, snap)
	}
}

// resolveSession is the session initializer: the connectivity probe and
// the session retrieval race their own timeouts concurrently; no
// ordering is guaranteed between them. Whatever happens, the machine
// ends up initialized - a hung backend must not hang consumers.
func (m *Machine) resolveSession(ctx context.Context, gen uint64) {
	go func() {
		probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
		defer cancel()
		if err := m.source.Probe(probeCtx); err != nil {
			m.log.Warn("auth connectivity probe failed", "error", err)
			m.post(deltaEvent{gen: gen, delta: Delta{
				SetErrorState: true, ErrorState: "connectivity",
			}})
		}
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, m.cfg.SessionFetchTimeout)
	defer cancel()

	session, err := m.source.Resolve(fetchCtx)
	if err != nil {
		m.log.Warn("session retrieval failed, settling unauthenticated", "error", err)
		m.post(deltaEvent{gen: gen, delta: Delta{
			SetUser: true, User: nil,
			SetSession: true, Session: nil,
			SetLoading: true, Loading: false,
			SetInitialized: true, Initialized: true,
			SetRole: true, Role: domain.RoleNone,
			SetClientRecordStatus: true, ClientRecordStatus: RecordNotFound,
			SetResolution: true, Resolution: ResolutionResolved,
		}})
		return
	}

	var user *supabase.User
	if session != nil {
		user = session.User
	}

	d := Delta{
		SetUser: true, User: user,
		SetSession: true, Session: session,
		SetLoading: true, Loading: false,
		SetInitialized: true, Initialized: true,
		SetRole: true, Role: DeriveRole(user, m.cfg.AdminEmails),
	}
	if user == nil {
		// Nothing further to resolve for an anonymous session.
		d.SetResolution = true
		d.Resolution = ResolutionResolved
		d.SetClientRecordStatus = true
		d.ClientRecordStatus = RecordNotFound
	}
	m.post(deltaEvent{gen: gen, delta: d})
}

// startClientResolution queries for the linked business-profile record.
// Runs at most once per session generation.
func (m *Machine) startClientResolution(ctx context.Context, snap Snapshot) {
	m.clientFetchStarted = true
	gen := m.gen
	userID := snap.User.ID

	m.apply(ctx, Delta{
		SetAuthenticating: true, Authenticating: true,
		SetClientRecordStatus: true, ClientRecordStatus: RecordLoading,
	})

	m.clientRecord.arm(func() { m.post(timerEvent{gen: gen, kind: timerClientRecord}) })
	m.unified.arm(func() { m.post(timerEvent{gen: gen, kind: timerUnified}) })

	go func() {
		record, err := m.clients.GetByUserID(ctx, userID)

		d := Delta{
			SetAuthenticating: true, Authenticating: false,
			SetResolution: true, Resolution: ResolutionResolved,
		}
		switch {
		case err != nil:
			// A failed query is NOT "has no record": surface the
			// distinct error state and let consumers decide.
			m.log.Error("client record query failed", "user_id", userID, "error", err)
			d.SetClientRecordStatus = true
			d.ClientRecordStatus = RecordError
			d.SetErrorState = true
			d.ErrorState = "client-record"
		case record == nil:
			// Benign absence: a new user who has not completed
			// profile setup yet.
			d.SetClientRecordStatus = true
			d.ClientRecordStatus = RecordNotFound
			d.SetClientID = true
			d.ClientID = ""
		default:
			d.SetClientRecordStatus = true
			d.ClientRecordStatus = RecordFound
			d.SetClientID = true
			d.ClientID = record.ID
		}
		m.post(deltaEvent{gen: gen, delta: d})
	}()
}

func (m *Machine) handleTimer(ctx context.Context, kind timerKind) {
	snap := m.Snapshot()
	switch kind {
	case timerAuthInit:
		if !m.authInit.fired() || snap.Initialized {
			return
		}
		m.log.Warn("auth initialization timed out, forcing terminal state")
		m.apply(ctx, Delta{
			SetLoading: true, Loading: false,
			SetInitialized: true, Initialized: true,
			SetAuthLoadingTimeout: true, AuthLoadingTimeout: true,
			SetResolution: true, Resolution: ResolutionDegraded,
		})

	case timerClientRecord:
		if !m.clientRecord.fired() || snap.ClientRecordStatus != RecordLoading {
			return
		}
		// The unified snapshot may already know the client id (carried
		// over from login). Trust it rather than blocking dependent
		// consumers indefinitely.
		forced := RecordNotFound
		if snap.ClientID != "" {
			forced = RecordFound
		}
		m.log.Warn("client record resolution timed out", "forced_status", forced)
		m.apply(ctx, Delta{
			SetClientRecordStatus: true, ClientRecordStatus: forced,
			SetAuthenticating: true, Authenticating: false,
			SetClientAuthLoadingTimeout: true, ClientAuthLoadingTimeout: true,
			SetResolution: true, Resolution: ResolutionDegraded,
		})

	case timerUnified:
		if !m.unified.fired() || snap.Resolution != ResolutionPending {
			return
		}
		forced := snap.ClientRecordStatus
		if forced == RecordLoading {
			forced = RecordNotFound
			if snap.ClientID != "" {
				forced = RecordFound
			}
		}
		m.log.Warn("unified auth resolution timed out, escalating")
		m.apply(ctx, Delta{
			SetLoading: true, Loading: false,
			SetInitialized: true, Initialized: true,
			SetAuthenticating: true, Authenticating: false,
			SetClientRecordStatus: true, ClientRecordStatus: forced,
			SetAuthLoadingTimeout: true, AuthLoadingTimeout: true,
			SetClientAuthLoadingTimeout: true, ClientAuthLoadingTimeout: true,
			SetResolution: true, Resolution: ResolutionDegraded,
		})
	}
}

// handleAuthEvent reacts to session-change events from the auth
// service. Sign-in and sign-out are full session transitions: they
// bump the generation (discarding in-flight work), clear latched
// timeout flags and reset the escalation policies.
func (m *Machine) handleAuthEvent(ctx context.Context, ev supabase.Event) {
	switch ev.Type {
	case supabase.EventSignedOut:
		m.transition(signedOutSnapshot())

	case supabase.EventSignedIn:
		if ev.Session == nil || ev.Session.User == nil {
			m.transition(signedOutSnapshot())
			return
		}
		snap := Snapshot{
			User:               ev.Session.User,
			Session:            ev.Session,
			Initialized:        true,
			ClientRecordStatus: RecordLoading,
			Role:               DeriveRole(ev.Session.User, m.cfg.AdminEmails),
			Resolution:         ResolutionPending,
		}
		m.transition(snap)
		// transition republished a derived snapshot; resolve the
		// client record for the fresh identity.
		m.startClientResolution(ctx, m.Snapshot())

	case supabase.EventTokenRefreshed:
		if ev.Session == nil {
			return
		}
		m.apply(ctx, Delta{
			SetSession: true, Session: ev.Session,
			SetUser: true, User: ev.Session.User,
			SetRole: true, Role: DeriveRole(ev.Session.User, m.cfg.AdminEmails),
		})
	}
}

// transition replaces the snapshot wholesale. This is the only path
// that clears latched timeout flags and Degraded resolution.
func (m *Machine) transition(snap Snapshot) {
	m.gen++
	m.clientFetchStarted = false
	m.authInit.reset()
	m.clientRecord.reset()
	m.unified.reset()

	// Run the derivations once so the published snapshot honors the
	// reducer's invariants.
	snap = reduce(snap, Delta{})
	m.snap.Store(snap)
	m.broadcast(snap)
}
