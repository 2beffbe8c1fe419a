package supabase

import (
	"context"
	"errors"
	"sync"
	"time"
)

// refreshMargin is how long before expiry a session is refreshed.
const refreshMargin = 60 * time.Second

// SessionManager holds one user's cached session, keeps it fresh and
// translates token lifecycle into auth-change events. It is the
// server-side stand-in for the frontend SDK's session store: the
// session itself is owned by GoTrue, we only hold a read-only copy.
type SessionManager struct {
	client *Client

	mu      sync.Mutex
	session *Session

	events   chan Event
	stop     chan struct{}
	stopOnce sync.Once
}

func NewSessionManager(client *Client, initial *Session) *SessionManager {
	sm := &SessionManager{
		client:  client,
		session: initial,
		events:  make(chan Event, 8),
		stop:    make(chan struct{}),
	}
	go sm.refreshLoop()
	return sm
}

// Resolve returns the current session, refreshing it first when it is
// at or past its expiry margin. A nil session (signed out) is not an
// error.
func (s *SessionManager) Resolve(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()

	if session == nil {
		return nil, nil
	}
	if time.Until(session.ExpiresAt) > refreshMargin {
		return session, nil
	}

	refreshed, err := s.client.RefreshSession(ctx, session.RefreshToken)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			// Refresh token revoked or expired: the session is gone.
			s.setSession(nil)
			s.emit(Event{Type: EventSignedOut})
			return nil, nil
		}
		return nil, err
	}

	s.setSession(refreshed)
	s.emit(Event{Type: EventTokenRefreshed, Session: refreshed})
	return refreshed, nil
}

// Probe checks that the auth backend is reachable before subsequent
// queries are trusted.
func (s *SessionManager) Probe(ctx context.Context) error {
	return s.client.CheckHealth(ctx)
}

// Events returns the change stream. The channel is buffered; events
// emitted before a listener attaches are retained, which is what makes
// listen-before-fetch ordering safe for consumers.
func (s *SessionManager) Events() <-chan Event {
	return s.events
}

// SignOut revokes the session with GoTrue and emits SIGNED_OUT. The
// local copy is dropped even if the revocation call fails.
func (s *SessionManager) SignOut(ctx context.Context) error {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()

	var err error
	if session != nil {
		err = s.client.SignOut(ctx, session.AccessToken)
	}
	s.setSession(nil)
	s.emit(Event{Type: EventSignedOut})
	return err
}

// Close stops the refresh loop. Pending events stay readable.
func (s *SessionManager) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *SessionManager) setSession(session *Session) {
	s.mu.Lock()
	s.session = session
	s.mu.Unlock()
}

func (s *SessionManager) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		// Consumer has fallen 8 events behind; drop the oldest so the
		// latest lifecycle event is never lost.
		select {
		case <-s.events:
		default:
		}
		select {
		case s.events <- ev:
		default:
		}
	}
}

func (s *SessionManager) refreshLoop() {
	for {
		s.mu.Lock()
		session := s.session
		s.mu.Unlock()

		var wait time.Duration
		if session == nil {
			wait = time.Minute
		} else {
			wait = time.Until(session.ExpiresAt) - refreshMargin
			if wait < time.Second {
				wait = time.Second
			}
		}

		select {
		case <-time.After(wait):
		case <-s.stop:
			return
		}

		s.mu.Lock()
		session = s.session
		s.mu.Unlock()
		if session == nil {
			continue
		}
		if time.Until(session.ExpiresAt) > refreshMargin {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, err := s.Resolve(ctx)
		cancel()
		if err != nil {
			// Transient failure; the next iteration retries.
			continue
		}
	}
}
