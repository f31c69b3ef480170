package identity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrProfileNotFound  = errors.New("profile not found")
)

// WithdrawnNickname replaces the nickname of a withdrawn profile so historical
// posts and comments stay attributed without exposing the old name.
const WithdrawnNickname = "탈퇴한 사용자"

// DefaultResolveTimeout bounds how long the first profile resolution may keep
// the binder in the loading state when the store hangs.
const DefaultResolveTimeout = 5 * time.Second

// Session is what the auth provider knows about a signed-in user.
type Session struct {
	UserID        string
	Email         string
	EmailVerified bool
}

// Profile is the binder's view of the profiles row keyed by anon id.
type Profile struct {
	ID                 string
	Nickname           *string
	IsAdmin            bool
	TermsAgreedAt      *time.Time
	DeletedAt          *time.Time
	WithdrawnEmailHash *string
}

// ProfileStore is the row-storage contract the binder resolves against.
// GetByID returns ErrProfileNotFound when no row exists yet.
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (*Profile, error)
	Upsert(ctx context.Context, id string, nickname *string, termsAgreedAt *time.Time) error
	UpdateByID(ctx context.Context, id string, fields map[string]interface{}) error
}

// AuthProvider is the slice of the authentication layer the binder needs.
type AuthProvider interface {
	SignOut(ctx context.Context) error
}

type State int

const (
	Initializing State = iota
	Unauthenticated
	AuthenticatedPending  // signed in, no profile row yet (onboarding)
	AuthenticatedResolved // signed in, profile loaded
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Unauthenticated:
		return "unauthenticated"
	case AuthenticatedPending:
		return "authenticated_pending"
	case AuthenticatedResolved:
		return "authenticated_resolved"
	}
	return "unknown"
}

// ProfileStateKind makes the "not yet onboarded" case explicit instead of
// inferring it from nullable fields.
type ProfileStateKind int

const (
	ProfileAbsent ProfileStateKind = iota
	ProfilePending
	ProfileResolved
)

type ProfileState struct {
	Kind    ProfileStateKind
	AnonID  string
	Profile *Profile
}

// Snapshot is the read-only identity view handed to callers. Content writes
// use AnonID; RawUserID never reaches a content table.
type Snapshot struct {
	State     State
	RawUserID string
	Email     string
	AnonID    string
	Nickname  string
	IsAdmin   bool
	TermsOK   bool
	Loading   bool
}

// CanWrite reports whether content creation is allowed: an authenticated,
// onboarded identity with both a nickname and a terms agreement on record.
func (s Snapshot) CanWrite() bool {
	return s.State == AuthenticatedResolved && s.Nickname != "" && s.TermsOK
}

// Binder keeps one session's identity state synchronized with auth events.
// Session changes resolve asynchronously; a generation counter makes sure a
// slow resolution for an older event never overwrites a newer one.
type Binder struct {
	deriver  *Deriver
	store    ProfileStore
	provider AuthProvider
	timeout  time.Duration

	mu          sync.Mutex
	gen         uint64
	state       State
	session     *Session
	anonID      string
	nickname    string
	isAdmin     bool
	termsAt     *time.Time
	profile     ProfileState
	loading     bool
	loadingDone bool
	stagedTerms *time.Time
	watchdog    *time.Timer
}

func NewBinder(deriver *Deriver, store ProfileStore, provider AuthProvider, timeout time.Duration) *Binder {
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}
	b := &Binder{
		deriver:  deriver,
		store:    store,
		provider: provider,
		timeout:  timeout,
		state:    Initializing,
		loading:  true,
		profile:  ProfileState{Kind: ProfileAbsent},
	}
	// Availability over consistency: the caller must never wait on loading
	// past the timeout, even if no session event ever arrives.
	b.watchdog = time.AfterFunc(timeout, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.finishLoadingLocked()
	})
	return b
}

// OnSessionChange feeds an auth-provider event into the binder. A nil session
// means signed out. Resolution runs in the background; only the most recent
// event's result is committed.
func (b *Binder) OnSessionChange(sess *Session) {
	b.mu.Lock()
	b.gen++
	gen := b.gen

	if sess == nil {
		b.resetLocked()
		b.finishLoadingLocked()
		b.mu.Unlock()
		return
	}

	anonID := b.deriver.Derive(sess.Email)
	b.session = sess
	b.anonID = anonID
	b.nickname = ""
	b.isAdmin = false
	b.termsAt = nil
	b.state = AuthenticatedPending
	b.profile = ProfileState{Kind: ProfilePending, AnonID: anonID}
	b.mu.Unlock()

	go b.resolve(gen, anonID)
}

func (b *Binder) resolve(gen uint64, anonID string) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	profile, err := b.store.GetByID(ctx, anonID)

	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.gen {
		// A newer session event won; drop this resolution.
		return
	}

	switch {
	case err == nil:
		if profile.Nickname != nil {
			b.nickname = *profile.Nickname
		}
		b.isAdmin = profile.IsAdmin
		b.termsAt = profile.TermsAgreedAt
		b.state = AuthenticatedResolved
		b.profile = ProfileState{Kind: ProfileResolved, AnonID: anonID, Profile: profile}
	case errors.Is(err, ErrProfileNotFound):
		b.state = AuthenticatedPending
		b.profile = ProfileState{Kind: ProfilePending, AnonID: anonID}
	default:
		// Transient read failure: stay signed in with a degraded profile
		// rather than forcing the user out.
		slog.Warn("profile resolution failed", "anon_id", anonID, "error", err)
		b.state = AuthenticatedPending
		b.profile = ProfileState{Kind: ProfilePending, AnonID: anonID}
	}
	b.finishLoadingLocked()
}

// AgreeTerms records the terms-agreement timestamp on the profile row and
// stages it so a following SetNickname carries it as well.
func (b *Binder) AgreeTerms(ctx context.Context) error {
	b.mu.Lock()
	if b.session == nil || b.anonID == "" {
		b.mu.Unlock()
		return ErrNotAuthenticated
	}
	anonID := b.anonID
	b.mu.Unlock()

	now := time.Now().UTC()
	if err := b.store.Upsert(ctx, anonID, nil, &now); err != nil {
		return err
	}

	b.mu.Lock()
	if b.anonID == anonID {
		b.termsAt = &now
		b.stagedTerms = &now
	}
	b.mu.Unlock()
	return nil
}

// SetNickname upserts the profile row for the current identity. In-memory
// state only changes after the write is confirmed.
func (b *Binder) SetNickname(ctx context.Context, nickname string) error {
	b.mu.Lock()
	if b.session == nil || b.anonID == "" {
		b.mu.Unlock()
		return ErrNotAuthenticated
	}
	anonID := b.anonID
	staged := b.stagedTerms
	b.mu.Unlock()

	if err := b.store.Upsert(ctx, anonID, &nickname, staged); err != nil {
		return err
	}

	b.mu.Lock()
	if b.anonID == anonID {
		b.nickname = nickname
		b.stagedTerms = nil
		if staged != nil {
			b.termsAt = staged
		}
		b.state = AuthenticatedResolved
		if b.profile.Kind != ProfileResolved {
			b.profile = ProfileState{
				Kind:    ProfileResolved,
				AnonID:  anonID,
				Profile: &Profile{ID: anonID, Nickname: &nickname, TermsAgreedAt: b.termsAt},
			}
		} else if b.profile.Profile != nil {
			b.profile.Profile.Nickname = &nickname
		}
	}
	b.mu.Unlock()
	return nil
}

// Withdraw soft-deletes the profile: sentinel nickname, deletion timestamp and
// a one-way email hash that blocks re-registration. Content rows keep their
// anon id references untouched. The auth session is then signed out.
func (b *Binder) Withdraw(ctx context.Context) error {
	b.mu.Lock()
	if b.session == nil || b.anonID == "" {
		b.mu.Unlock()
		return ErrNotAuthenticated
	}
	anonID := b.anonID
	email := b.session.Email
	b.mu.Unlock()

	fields := map[string]interface{}{
		"nickname":             WithdrawnNickname,
		"deleted_at":           time.Now().UTC(),
		"withdrawn_email_hash": WithdrawnEmailHash(email),
	}
	err := b.store.UpdateByID(ctx, anonID, fields)
	if errors.Is(err, ErrProfileNotFound) {
		// A member who never onboarded has no row yet; the withdrawal
		// markers (and the re-registration block) must still be recorded.
		if err = b.store.Upsert(ctx, anonID, nil, nil); err != nil {
			return err
		}
		err = b.store.UpdateByID(ctx, anonID, fields)
	}
	if err != nil {
		return err
	}

	if err := b.provider.SignOut(ctx); err != nil {
		slog.Warn("provider sign-out after withdrawal failed", "error", err)
	}

	b.mu.Lock()
	b.gen++
	b.resetLocked()
	b.finishLoadingLocked()
	b.mu.Unlock()
	return nil
}

// SignOut delegates to the auth provider and clears identity state.
func (b *Binder) SignOut(ctx context.Context) error {
	err := b.provider.SignOut(ctx)

	b.mu.Lock()
	b.gen++
	b.resetLocked()
	b.finishLoadingLocked()
	b.mu.Unlock()
	return err
}

func (b *Binder) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := Snapshot{
		State:    b.state,
		AnonID:   b.anonID,
		Nickname: b.nickname,
		IsAdmin:  b.isAdmin,
		TermsOK:  b.termsAt != nil,
		Loading:  b.loading,
	}
	if b.session != nil {
		snap.RawUserID = b.session.UserID
		snap.Email = b.session.Email
	}
	return snap
}

func (b *Binder) ProfileState() ProfileState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.profile
}

func (b *Binder) resetLocked() {
	b.session = nil
	b.anonID = ""
	b.nickname = ""
	b.isAdmin = false
	b.termsAt = nil
	b.stagedTerms = nil
	b.state = Unauthenticated
	b.profile = ProfileState{Kind: ProfileAbsent}
}

// finishLoadingLocked flips loading exactly once over the binder's lifetime.
func (b *Binder) finishLoadingLocked() {
	if b.loadingDone {
		return
	}
	b.loadingDone = true
	b.loading = false
	if b.watchdog != nil {
		b.watchdog.Stop()
	}
}
