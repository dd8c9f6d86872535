// Package session holds the process-wide authentication state and the
// gate that protects authenticated views.
package session

import (
	"context"
	"errors"
	"sync"
)

// ErrProfileNotFound is returned by ProfileService.GetProfile when the
// user has no profile row yet. The store treats it as benign.
var ErrProfileNotFound = errors.New("profile not found")

// User is the authenticated identity.
type User struct {
	ID    string
	Email string
}

// Profile is the public-facing identity attached to a user.
type Profile struct {
	ID        string
	Username  string
	AvatarURL string
}

// Session is a live token bundle for a user.
type Session struct {
	User        User
	AccessToken string
}

// EventKind identifies a pushed auth state change.
type EventKind int

const (
	EventSignedIn EventKind = iota
	EventTokenRefreshed
	EventSignedOut
)

// Event is a pushed auth state change. Session is set for sign-in and
// token-refresh events and nil for sign-out.
type Event struct {
	Kind    EventKind
	Session *Session
}

// AuthService is the authentication backend the store drives.
type AuthService interface {
	CurrentSession(ctx context.Context) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password, username string) (*Session, error)
	SignOut(ctx context.Context) error
	SubscribeAuthEvents(handler func(Event)) (unsubscribe func())
}

// ProfileService loads and updates the profile for a user.
type ProfileService interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	UpdateProfile(ctx context.Context, update ProfileUpdate) (*Profile, error)
}

// ProfileUpdate carries the fields to change; nil means leave alone.
type ProfileUpdate struct {
	Username  *string
	AvatarKey *string
}

// Phase is where the store is in its lifecycle.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseLoading
	PhaseAuthenticated
	PhaseAnonymous
	PhaseError
)

// Snapshot is a point-in-time copy of the store's state.
type Snapshot struct {
	Phase   Phase
	User    *User
	Profile *Profile
	Session *Session
	Err     string
}

// IsAuthenticated reports whether the snapshot carries a live session.
func (s Snapshot) IsAuthenticated() bool {
	return s.Phase == PhaseAuthenticated && s.Session != nil
}

// Result is the outcome of an explicit store operation. Error is a
// human-readable message suitable for direct display.
type Result struct {
	OK    bool
	Error string
}

// Store is the single process-wide auth state machine.
type Store struct {
	auth     AuthService
	profiles ProfileService

	mu          sync.Mutex
	phase       Phase
	user        *User
	profile     *Profile
	session     *Session
	errMsg      string
	mounted     bool
	unsubscribe func()
}

// NewStore wires a store to its backends. Call Start to initialize.
func NewStore(auth AuthService, profiles ProfileService) *Store {
	return &Store{auth: auth, profiles: profiles, phase: PhaseUninitialized}
}

// Start resolves any existing session and subscribes to pushed auth
// events. It is called once at application start.
func (s *Store) Start(ctx context.Context) {
	s.mu.Lock()
	s.phase = PhaseLoading
	s.mounted = true
	s.mu.Unlock()

	s.unsubscribe = s.auth.SubscribeAuthEvents(func(ev Event) {
		s.handleEvent(ctx, ev)
	})

	sess, err := s.auth.CurrentSession(ctx)
	if err != nil {
		s.setError(err.Error())
		return
	}
	if sess == nil {
		s.setAnonymous()
		return
	}
	s.setAuthenticated(ctx, sess)
}

// Close drops the event subscription. Events arriving after Close are
// ignored; closing twice is safe.
func (s *Store) Close() {
	s.mu.Lock()
	s.mounted = false
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Phase:   s.phase,
		User:    s.user,
		Profile: s.profile,
		Session: s.session,
		Err:     s.errMsg,
	}
}

func (s *Store) handleEvent(ctx context.Context, ev Event) {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	switch ev.Kind {
	case EventSignedIn, EventTokenRefreshed:
		if ev.Session != nil {
			s.setAuthenticated(ctx, ev.Session)
		}
	case EventSignedOut:
		s.setAnonymous()
	}
}

func (s *Store) setAuthenticated(ctx context.Context, sess *Session) {
	profile, err := s.profiles.GetProfile(ctx, sess.User.ID)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		profile = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return
	}
	user := sess.User
	s.phase = PhaseAuthenticated
	s.session = sess
	s.user = &user
	s.profile = profile
	s.errMsg = ""
}

func (s *Store) setAnonymous() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return
	}
	s.phase = PhaseAnonymous
	s.session = nil
	s.user = nil
	s.profile = nil
	s.errMsg = ""
}

func (s *Store) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return
	}
	s.phase = PhaseError
	s.errMsg = msg
}

// SignIn authenticates with email and password. State moves through the
// pushed sign-in event; the returned Result only reports the call.
func (s *Store) SignIn(ctx context.Context, email, password string) Result {
	if _, err := s.auth.SignIn(ctx, email, password); err != nil {
		return Result{Error: err.Error()}
	}
	return Result{OK: true}
}

// SignUp registers a new account.
func (s *Store) SignUp(ctx context.Context, email, password, username string) Result {
	if _, err := s.auth.SignUp(ctx, email, password, username); err != nil {
		return Result{Error: err.Error()}
	}
	return Result{OK: true}
}

// SignOut ends the session. Local state is cleared immediately as well,
// in case the pushed sign-out event is delayed or dropped.
func (s *Store) SignOut(ctx context.Context) Result {
	err := s.auth.SignOut(ctx)
	s.setAnonymous()
	if err != nil {
		return Result{Error: err.Error()}
	}
	return Result{OK: true}
}

// UpdateProfile applies a partial profile update for the signed-in user
// and refreshes the stored profile on success.
func (s *Store) UpdateProfile(ctx context.Context, update ProfileUpdate) Result {
	s.mu.Lock()
	authenticated := s.phase == PhaseAuthenticated && s.user != nil
	s.mu.Unlock()
	if !authenticated {
		return Result{Error: "you must be signed in to update your profile"}
	}

	profile, err := s.profiles.UpdateProfile(ctx, update)
	if err != nil {
		return Result{Error: err.Error()}
	}

	s.mu.Lock()
	if s.mounted {
		s.profile = profile
	}
	s.mu.Unlock()
	return Result{OK: true}
}
