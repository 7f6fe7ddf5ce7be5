// Package session holds the in-memory view of the signed-in user, backed by a
// store.Store. A Session is created once by the host and passed explicitly to
// every component that needs it.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vaintrub/hrsession/models"
	"github.com/vaintrub/hrsession/store"
	"github.com/vaintrub/hrsession/token"
)

// State is an immutable snapshot of the session handed to listeners.
type State struct {
	Token string
	User  *models.UserSnapshot
}

// SignedIn reports whether a credential is present. It does not check expiry;
// use Session.IsAuthenticated for that.
func (s State) SignedIn() bool {
	return s.Token != "" && s.User != nil
}

// Listener is called synchronously after every mutation. Listeners must not
// call back into the Session that notifies them.
type Listener func(State)

// Option configures a Session.
type Option func(*Session)

// WithClock injects the time source used for expiry checks (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used to report persistence failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// Session is the observable session state. It is safe for concurrent use.
type Session struct {
	store  store.Store
	now    func() time.Time
	logger *zap.Logger

	mu    sync.RWMutex
	state State

	lmu       sync.Mutex // serializes mutation + notification
	listeners map[uint64]Listener
	order     []uint64
	nextID    uint64
}

// New creates a Session seeded from st. A read failure leaves the session signed out.
func New(ctx context.Context, st store.Store, opts ...Option) *Session {
	s := &Session{
		store:     st,
		now:       time.Now,
		logger:    zap.NewNop(),
		listeners: make(map[uint64]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = s.load(ctx)
	return s
}

// Store returns the backing store.
func (s *Session) Store() store.Store {
	return s.store
}

// Now returns the session clock's current time.
func (s *Session) Now() time.Time {
	return s.now()
}

// Token returns the current bearer token, or "".
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

// User returns a copy of the current user snapshot, or nil.
func (s *Session) User() *models.UserSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.User.Clone()
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{Token: s.state.Token, User: s.state.User.Clone()}
}

// IsAuthenticated reads the persisted credential and checks that its token
// has not expired. The result is never cached: elapsed time alone can end a session.
func (s *Session) IsAuthenticated(ctx context.Context) bool {
	cred, err := s.store.Read(ctx)
	if err != nil {
		s.logger.Warn("read credential", zap.Error(err))
		return false
	}
	if cred == nil || cred.Token == "" {
		return false
	}
	return token.Valid(cred.Token, s.now())
}

// Write replaces the whole credential and notifies listeners.
// Persistence failures are logged; the in-memory state is updated regardless.
func (s *Session) Write(ctx context.Context, tok string, user *models.UserSnapshot) {
	if tok == "" || user == nil {
		s.logger.Warn("ignoring incomplete credential write",
			zap.Bool("has_token", tok != ""), zap.Bool("has_user", user != nil))
		return
	}

	s.lmu.Lock()
	defer s.lmu.Unlock()

	if err := s.store.Write(ctx, models.Credential{Token: tok, User: user}); err != nil {
		s.logger.Error("persist credential", zap.Error(err))
	}
	s.set(State{Token: tok, User: user.Clone()})
}

// Clear removes the credential and any pending invitation and notifies listeners.
// Clearing an empty session is a no-op apart from the notification.
func (s *Session) Clear(ctx context.Context) {
	s.lmu.Lock()
	defer s.lmu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		s.logger.Error("clear credential", zap.Error(err))
	}
	s.set(State{})
}

// ReplaceUser overwrites the user half of the credential, keeping the token.
// The write happens only if the persisted token still equals expectedToken;
// a concurrent logout, 401 or re-login in between wins. Reports whether it wrote.
func (s *Session) ReplaceUser(ctx context.Context, expectedToken string, user *models.UserSnapshot) bool {
	return s.ReplaceCredential(ctx, expectedToken, expectedToken, user)
}

// ReplaceCredential writes tok and user together if the persisted token still
// equals expectedToken, and reports whether it wrote.
func (s *Session) ReplaceCredential(ctx context.Context, expectedToken, tok string, user *models.UserSnapshot) bool {
	if expectedToken == "" || tok == "" || user == nil {
		return false
	}

	s.lmu.Lock()
	defer s.lmu.Unlock()

	cred, err := s.store.Read(ctx)
	if err != nil {
		s.logger.Warn("read credential before replacing it", zap.Error(err))
		return false
	}
	if cred == nil || cred.Token != expectedToken {
		s.logger.Debug("skipping credential replacement, credential changed")
		return false
	}
	if err := s.store.Write(ctx, models.Credential{Token: tok, User: user}); err != nil {
		s.logger.Error("persist replaced credential", zap.Error(err))
	}
	s.set(State{Token: tok, User: user.Clone()})
	return true
}

// Reload re-seeds the in-memory state from the store and notifies listeners.
func (s *Session) Reload(ctx context.Context) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.set(s.load(ctx))
}

// Subscribe registers l and returns a function that removes it.
func (s *Session) Subscribe(l Listener) (unsubscribe func()) {
	s.lmu.Lock()
	defer s.lmu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.order = append(s.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lmu.Lock()
			defer s.lmu.Unlock()
			delete(s.listeners, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Watch re-seeds the session whenever the store reports a change made by
// another process. It returns when ctx is done or the store cannot be watched.
func (s *Session) Watch(ctx context.Context) error {
	w, ok := s.store.(store.Watcher)
	if !ok {
		return nil
	}
	events, err := w.Watch(ctx)
	if err != nil {
		return err
	}
	for range events {
		s.Reload(ctx)
	}
	return ctx.Err()
}

// set stores next and notifies listeners in registration order. Callers hold s.lmu.
func (s *Session) set(next State) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	for _, id := range s.order {
		if l, ok := s.listeners[id]; ok {
			l(State{Token: next.Token, User: next.User.Clone()})
		}
	}
}

func (s *Session) load(ctx context.Context) State {
	cred, err := s.store.Read(ctx)
	if err != nil {
		s.logger.Warn("seed session from store", zap.Error(err))
		return State{}
	}
	if cred == nil {
		return State{}
	}
	return State{Token: cred.Token, User: cred.User.Clone()}
}
