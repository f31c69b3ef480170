package identity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultSessionIdleTTL bounds how long an untouched session keeps its binder.
// Matched to the refresh-token lifetime: a session idle past it cannot come
// back anyway.
const DefaultSessionIdleTTL = 7 * 24 * time.Hour

// SessionRevoker revokes an auth session server-side (refresh token family).
type SessionRevoker interface {
	RevokeSession(ctx context.Context, sessionID string) error
}

// sessionProvider adapts the shared revoker into the binder's per-session
// AuthProvider.
type sessionProvider struct {
	revoker   SessionRevoker
	sessionID string
}

func (p sessionProvider) SignOut(ctx context.Context) error {
	return p.revoker.RevokeSession(ctx, p.sessionID)
}

type sessionEntry struct {
	binder   *Binder
	lastSeen time.Time
}

// Registry owns one Binder per live auth session, keyed by the session id
// carried in the access token. Login, refresh and logout feed session events
// into the matching binder; request handlers read identity through it.
// Sessions arrive as an unbounded stream, so entries that go idle past the
// TTL are evicted; an evicted session's binder is rebuilt from token claims
// on its next request.
type Registry struct {
	deriver *Deriver
	store   ProfileStore
	revoker SessionRevoker
	timeout time.Duration
	idleTTL time.Duration

	mu      sync.Mutex
	binders map[string]*sessionEntry
}

func NewRegistry(deriver *Deriver, store ProfileStore, revoker SessionRevoker, timeout, idleTTL time.Duration) *Registry {
	if idleTTL <= 0 {
		idleTTL = DefaultSessionIdleTTL
	}
	return &Registry{
		deriver: deriver,
		store:   store,
		revoker: revoker,
		timeout: timeout,
		idleTTL: idleTTL,
		binders: make(map[string]*sessionEntry),
	}
}

// Bind routes a session event to the session's binder, creating the binder on
// first sight. After a server restart the binder is rebuilt lazily from token
// claims, which re-runs profile resolution.
func (r *Registry) Bind(sessionID string, sess *Session) *Binder {
	r.mu.Lock()
	entry, ok := r.binders[sessionID]
	if !ok {
		entry = &sessionEntry{
			binder: NewBinder(r.deriver, r.store, sessionProvider{r.revoker, sessionID}, r.timeout),
		}
		r.binders[sessionID] = entry
	}
	entry.lastSeen = time.Now()
	r.mu.Unlock()

	entry.binder.OnSessionChange(sess)
	return entry.binder
}

// Get returns the session's binder and refreshes its idle clock.
func (r *Registry) Get(sessionID string) (*Binder, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.binders[sessionID]
	if !ok {
		return nil, false
	}
	entry.lastSeen = time.Now()
	return entry.binder, true
}

// Remove drops a session's binder after logout or withdrawal.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	delete(r.binders, sessionID)
	r.mu.Unlock()
}

// StartEviction runs an hourly goroutine that drops binders for sessions
// that have been idle past the TTL.
func (r *Registry) StartEviction(done chan struct{}) {
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := r.evictIdle(time.Now()); n > 0 {
					slog.Info("evicted idle session binders", "count", n)
				}
			case <-done:
				return
			}
		}
	}()
}

func (r *Registry) evictIdle(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for sessionID, entry := range r.binders {
		if now.Sub(entry.lastSeen) > r.idleTTL {
			delete(r.binders, sessionID)
			evicted++
		}
	}
	return evicted
}

// Len reports how many sessions currently hold a binder.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.binders)
}
