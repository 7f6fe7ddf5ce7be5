// Package invitation drives the invitation acceptance handshake and the
// sign-in and registration flows that redeem a carried invitation.
package invitation

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/vaintrub/hrsession/client"
	"github.com/vaintrub/hrsession/models"
	"github.com/vaintrub/hrsession/navigation"
	"github.com/vaintrub/hrsession/session"
)

// Snapshot is a point-in-time view of a handshake.
type Snapshot struct {
	State   State
	Token   string                 // invitation token, kept after failures so the view can retry
	Info    *models.InvitationInfo // nil until info has loaded
	Err     error
	Failure FailureKind
}

// Listener receives every snapshot the handshake moves through.
type Listener func(Snapshot)

type subscription struct {
	id int
	fn Listener
}

// Handshake is the state machine behind the invitation view. Each Start or
// Retry begins a new generation; results of an older generation, or results
// that arrive after the wait budget ran out, are discarded.
type Handshake struct {
	api     client.InvitationAPI
	session *session.Session
	opts    *options
	logger  *zap.Logger

	mu        sync.Mutex
	snap      Snapshot
	gen       uint64
	listeners []subscription
	nextID    int
}

// New returns a handshake in the Idle state.
func New(api client.InvitationAPI, sess *session.Session, opts ...Option) *Handshake {
	o := buildOptions(opts)
	return &Handshake{
		api:     api,
		session: sess,
		opts:    o,
		logger:  o.logger,
		snap:    Snapshot{State: StateIdle},
	}
}

// Snapshot returns the current state.
func (h *Handshake) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snap
}

// Subscribe registers l and returns a function that removes it.
// Listeners are called in registration order after every state change.
func (h *Handshake) Subscribe(l Listener) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.listeners = append(h.listeners, subscription{id: id, fn: l})
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, s := range h.listeners {
			if s.id == id {
				h.listeners = append(h.listeners[:i:i], h.listeners[i+1:]...)
				return
			}
		}
	}
}

// Start loads the invitation identified by tok and runs the handshake until
// it needs the user: Expired, AwaitingAuthentication, Accepted or Failed.
// An empty token fails right away without any request.
// The returned error is non-nil only when the handshake cannot start from its
// current state; outcomes are reported on the snapshot.
func (h *Handshake) Start(ctx context.Context, tok string) (Snapshot, error) {
	if tok == "" {
		snap, _, err := h.begin(Snapshot{State: StateFailed, Err: ErrNoToken, Failure: FailureNoToken})
		return snap, err
	}

	snap, gen, err := h.begin(Snapshot{State: StateLoadingInfo, Token: tok})
	if err != nil {
		return snap, err
	}
	return h.run(ctx, gen, tok), nil
}

// Retry reloads the invitation after an expiry or a failure.
func (h *Handshake) Retry(ctx context.Context) (Snapshot, error) {
	h.mu.Lock()
	snap := h.snap
	h.mu.Unlock()

	if snap.State != StateExpired && snap.State != StateFailed {
		return snap, errors.Wrapf(ErrInvalidTransition, "retry from %s", snap.State)
	}
	return h.Start(ctx, snap.Token)
}

// ChooseSignIn stores the invitation as the pending carry and sends the user
// to sign in, returning to the invitation view afterwards.
func (h *Handshake) ChooseSignIn(ctx context.Context) error {
	return h.leave(ctx, h.opts.signInPath)
}

// ChooseRegister stores the invitation as the pending carry and sends the user
// to registration.
func (h *Handshake) ChooseRegister(ctx context.Context) error {
	return h.leave(ctx, h.opts.registerPath)
}

func (h *Handshake) leave(ctx context.Context, path string) error {
	snap := h.Snapshot()
	if snap.State != StateAwaitingAuthentication {
		return errors.Wrapf(ErrInvalidTransition, "cannot leave for %s from %s", path, snap.State)
	}

	if err := h.session.Store().PutPendingInvitation(ctx, snap.Token); err != nil {
		return errors.Wrap(err, "persist pending invitation")
	}
	h.logger.Debug("invitation carried", zap.String("to", path))

	if h.opts.navigator != nil {
		back := navigation.WithParam(h.opts.invitationPath, h.opts.invitationParam, snap.Token)
		h.opts.navigator.Navigate(navigation.WithParam(path, h.opts.returnParam, back))
	}
	return nil
}

func (h *Handshake) run(ctx context.Context, gen uint64, tok string) Snapshot {
	info, err := client.Bounded(ctx, "load invitation", h.opts.budget, func(ctx context.Context) (*models.InvitationInfo, error) {
		return h.api.GetInvitationInfo(ctx, tok)
	})
	if err != nil {
		return h.fail(gen, tok, nil, err)
	}
	if info == nil {
		return h.fail(gen, tok, nil, errors.New("empty invitation info"))
	}

	switch {
	case info.IsExpired():
		return h.advance(gen, Snapshot{State: StateExpired, Token: tok, Info: info, Err: client.ErrExpiredInvitation, Failure: FailureExpired})
	case info.IsClosed():
		return h.advance(gen, Snapshot{State: StateFailed, Token: tok, Info: info, Err: errors.Wrapf(ErrClosed, "status %s", info.Status), Failure: FailureClosed})
	case info.Role != "" && !info.Role.Invitable():
		return h.advance(gen, Snapshot{State: StateFailed, Token: tok, Info: info, Err: errors.Wrapf(ErrRole, "role %s", info.Role), Failure: FailureError})
	case !h.session.IsAuthenticated(ctx):
		return h.advance(gen, Snapshot{State: StateAwaitingAuthentication, Token: tok, Info: info})
	}

	signedInAs := h.session.Token()
	snap := h.advance(gen, Snapshot{State: StateAutoAccepting, Token: tok, Info: info})
	if snap.State != StateAutoAccepting {
		return snap
	}
	return h.accept(ctx, gen, signedInAs, tok, info)
}

// accept redeems tok for the session opened with signedInAs.
func (h *Handshake) accept(ctx context.Context, gen uint64, signedInAs, tok string, info *models.InvitationInfo) Snapshot {
	payload, err := client.Bounded(ctx, "accept invitation", h.opts.budget, func(ctx context.Context) (*models.AuthPayload, error) {
		return h.api.AcceptInvitation(ctx, tok)
	})
	if err != nil {
		return h.fail(gen, tok, info, err)
	}
	if !payload.Issued() {
		return h.fail(gen, tok, info, errors.New("accept returned no credential"))
	}
	if !h.current(gen) {
		return h.Snapshot()
	}
	if !h.session.ReplaceCredential(ctx, signedInAs, payload.Token, payload.User) {
		return h.fail(gen, tok, info, errors.Wrap(client.ErrUnauthorized, "session changed while accepting invitation"))
	}

	h.logger.Info("invitation accepted",
		zap.String("user_id", payload.User.ID),
		zap.String("company", info.CompanyName))
	return h.advance(gen, Snapshot{State: StateAccepted, Token: tok, Info: info})
}

// fail records err, telling an expired invitation and a timeout apart from other failures.
func (h *Handshake) fail(gen uint64, tok string, info *models.InvitationInfo, err error) Snapshot {
	next := Snapshot{State: StateFailed, Token: tok, Info: info, Err: err, Failure: FailureError}
	switch {
	case errors.Is(err, client.ErrExpiredInvitation):
		next.State = StateExpired
		next.Failure = FailureExpired
	case errors.Is(err, client.ErrTimeout):
		next.Failure = FailureTimeout
	}
	h.logger.Debug("invitation handshake failed",
		zap.Stringer("failure", next.Failure), zap.Error(err))
	return h.advance(gen, next)
}

// begin opens a new generation with next as its first state.
func (h *Handshake) begin(next Snapshot) (Snapshot, uint64, error) {
	h.mu.Lock()
	if err := checkTransition(h.snap.State, next.State); err != nil {
		snap := h.snap
		h.mu.Unlock()
		return snap, 0, err
	}
	h.gen++
	gen := h.gen
	h.snap = next
	listeners := h.listenersLocked()
	h.mu.Unlock()

	notify(listeners, next)
	return next, gen, nil
}

// advance moves to next if gen is still the current generation.
// It returns the snapshot in effect afterwards.
func (h *Handshake) advance(gen uint64, next Snapshot) Snapshot {
	h.mu.Lock()
	if gen != h.gen {
		snap := h.snap
		h.mu.Unlock()
		h.logger.Debug("discarding stale invitation result", zap.Stringer("state", next.State))
		return snap
	}
	if err := checkTransition(h.snap.State, next.State); err != nil {
		snap := h.snap
		h.mu.Unlock()
		h.logger.Error("invitation handshake", zap.Error(err))
		return snap
	}
	h.snap = next
	listeners := h.listenersLocked()
	h.mu.Unlock()

	notify(listeners, next)
	return next
}

func (h *Handshake) current(gen uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gen == gen
}

func (h *Handshake) listenersLocked() []Listener {
	out := make([]Listener, len(h.listeners))
	for i, s := range h.listeners {
		out[i] = s.fn
	}
	return out
}

func notify(listeners []Listener, snap Snapshot) {
	for _, l := range listeners {
		l(snap)
	}
}
