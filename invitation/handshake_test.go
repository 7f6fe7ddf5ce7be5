package invitation

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaintrub/hrsession/client"
	"github.com/vaintrub/hrsession/models"
	"github.com/vaintrub/hrsession/navigation"
	"github.com/vaintrub/hrsession/session"
	"github.com/vaintrub/hrsession/store"
)

func newSession(t *testing.T) (*session.Session, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	return session.New(context.Background(), st), st
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateLoadingInfo, true},
		{StateIdle, StateFailed, true},
		{StateIdle, StateAccepted, false},
		{StateLoadingInfo, StateExpired, true},
		{StateLoadingInfo, StateAwaitingAuthentication, true},
		{StateLoadingInfo, StateAutoAccepting, true},
		{StateLoadingInfo, StateAccepted, false},
		{StateExpired, StateLoadingInfo, true},
		{StateExpired, StateAutoAccepting, false},
		{StateAutoAccepting, StateAccepted, true},
		{StateAutoAccepting, StateExpired, true},
		{StateAccepted, StateLoadingInfo, false},
		{StateFailed, StateLoadingInfo, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestStart_NoToken(t *testing.T) {
	sess, _ := newSession(t)
	api := &fakeAPI{info: openInvitation()}
	h := New(api, sess)

	snap, err := h.Start(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, FailureNoToken, snap.Failure)
	assert.ErrorIs(t, snap.Err, ErrNoToken)
	assert.Empty(t, api.Calls())
}

func TestStart_ExpiredNeverAccepts(t *testing.T) {
	sess, _ := newSession(t)
	info := openInvitation()
	info.Expired = true
	api := &fakeAPI{info: info, accept: &models.AuthPayload{Token: "x", User: member("c2")}}
	h := New(api, sess)

	snap, err := h.Start(context.Background(), "ABC")
	require.NoError(t, err)
	assert.Equal(t, StateExpired, snap.State)
	assert.Equal(t, FailureExpired, snap.Failure)
	assert.Equal(t, "ABC", snap.Token)
	assert.Equal(t, []string{"info:ABC"}, api.Calls())

	t.Run("retry reloads but still never accepts", func(t *testing.T) {
		snap, err := h.Retry(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StateExpired, snap.State)
		assert.Equal(t, []string{"info:ABC", "info:ABC"}, api.Calls())
	})
}

func TestStart_ExpiredEvenWhenAuthenticated(t *testing.T) {
	sess, _ := newSession(t)
	sess.Write(context.Background(), mintToken(t, "c1"), member("c1"))
	info := openInvitation()
	info.Status = models.InvitationExpired
	api := &fakeAPI{info: info}

	snap, err := New(api, sess).Start(context.Background(), "ABC")
	require.NoError(t, err)
	assert.Equal(t, StateExpired, snap.State)
	assert.NotContains(t, api.Calls(), "accept:ABC")
}

func TestStart_ClosedInvitation(t *testing.T) {
	sess, _ := newSession(t)
	info := openInvitation()
	info.Status = models.InvitationCancelled
	api := &fakeAPI{info: info}

	snap, err := New(api, sess).Start(context.Background(), "ABC")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, FailureClosed, snap.Failure)
	assert.ErrorIs(t, snap.Err, ErrClosed)
}

func TestStart_Unauthenticated(t *testing.T) {
	ctx := context.Background()
	sess, st := newSession(t)
	nav := navigation.NewHistory("/accept-invitation?token=ABC")
	api := &fakeAPI{info: openInvitation()}
	h := New(api, sess, WithNavigator(nav))

	snap, err := h.Start(ctx, "ABC")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingAuthentication, snap.State)
	require.NotNil(t, snap.Info)
	assert.Equal(t, "Acme", snap.Info.CompanyName)
	assert.Equal(t, models.RoleManager, snap.Info.Role)
	assert.Equal(t, []string{"info:ABC"}, api.Calls())

	t.Run("choosing sign in carries the invitation", func(t *testing.T) {
		require.NoError(t, h.ChooseSignIn(ctx))

		carried, err := st.PendingInvitation(ctx)
		require.NoError(t, err)
		assert.Equal(t, "ABC", carried)
		assert.Equal(t, "/login?returnUrl=%2Faccept-invitation%3Ftoken%3DABC", nav.Location())
	})

	t.Run("choosing register carries the invitation", func(t *testing.T) {
		require.NoError(t, h.ChooseRegister(ctx))
		assert.Equal(t, "/register?returnUrl=%2Faccept-invitation%3Ftoken%3DABC", nav.Location())
	})
}

func TestStart_AuthenticatedAutoAccepts(t *testing.T) {
	ctx := context.Background()
	sess, st := newSession(t)
	before := mintToken(t, "c1")
	sess.Write(ctx, before, member("c1"))

	after := mintToken(t, "c2")
	api := &fakeAPI{info: openInvitation(), accept: &models.AuthPayload{Token: after, User: member("c1", "c2")}}
	h := New(api, sess)

	var states []State
	h.Subscribe(func(s Snapshot) { states = append(states, s.State) })

	snap, err := h.Start(ctx, "ABC")
	require.NoError(t, err)
	assert.Equal(t, StateAccepted, snap.State)
	assert.Equal(t, []State{StateLoadingInfo, StateAutoAccepting, StateAccepted}, states)
	assert.Equal(t, []string{"info:ABC", "accept:ABC"}, api.Calls())

	cred, err := st.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, after, cred.Token)
	assert.True(t, cred.User.HasMembership("c2"))

	_, err = h.Retry(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStart_AcceptFailures(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantState   State
		wantFailure FailureKind
	}{
		{"expired on accept", &client.APIError{StatusCode: 410, Message: "gone"}, StateExpired, FailureExpired},
		{"conflict", &client.APIError{StatusCode: 409, Message: "already a member"}, StateFailed, FailureError},
		{"network", &client.NetworkError{Op: "POST /invitations/accept", Err: errors.New("reset")}, StateFailed, FailureError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			sess, _ := newSession(t)
			tok := mintToken(t, "c1")
			sess.Write(ctx, tok, member("c1"))

			api := &fakeAPI{info: openInvitation(), acceptErr: tt.err}
			snap, err := New(api, sess).Start(ctx, "ABC")
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, snap.State)
			assert.Equal(t, tt.wantFailure, snap.Failure)
			assert.Equal(t, "ABC", snap.Token)
			assert.Equal(t, tok, sess.Token(), "a failed accept must not touch the session")
		})
	}
}

func TestStart_InfoTimeout(t *testing.T) {
	sess, _ := newSession(t)
	gate := make(chan struct{})
	api := &fakeAPI{info: openInvitation(), infoGate: gate}
	h := New(api, sess, WithBudget(20*time.Millisecond))

	snap, err := h.Start(context.Background(), "ABC")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, FailureTimeout, snap.Failure)
	assert.ErrorIs(t, snap.Err, client.ErrTimeout)

	// a late answer changes nothing
	close(gate)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateFailed, h.Snapshot().State)
	assert.Equal(t, FailureTimeout, h.Snapshot().Failure)
}

func TestStart_AcceptTimeout(t *testing.T) {
	ctx := context.Background()
	sess, st := newSession(t)
	tok := mintToken(t, "c1")
	sess.Write(ctx, tok, member("c1"))

	gate := make(chan struct{})
	api := &fakeAPI{
		info:       openInvitation(),
		accept:     &models.AuthPayload{Token: mintToken(t, "c2"), User: member("c1", "c2")},
		acceptGate: gate,
	}
	h := New(api, sess, WithBudget(20*time.Millisecond))

	snap, err := h.Start(ctx, "ABC")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, FailureTimeout, snap.Failure)
	assert.ErrorIs(t, snap.Err, client.ErrTimeout)

	// the accept resolves after the budget; nothing it returns is applied
	close(gate)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, StateFailed, h.Snapshot().State)
	assert.Equal(t, FailureTimeout, h.Snapshot().Failure)
	assert.Equal(t, tok, sess.Token())

	cred, err := st.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, tok, cred.Token)
	assert.False(t, cred.User.HasMembership("c2"))
}

func TestStart_RoleNotInvitable(t *testing.T) {
	ctx := context.Background()
	sess, _ := newSession(t)
	sess.Write(ctx, mintToken(t, "c1"), member("c1"))

	info := openInvitation()
	info.Role = models.RoleSuperAdmin
	api := &fakeAPI{info: info}

	snap, err := New(api, sess).Start(ctx, "ABC")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, FailureError, snap.Failure)
	assert.ErrorIs(t, snap.Err, ErrRole)
	assert.Equal(t, []string{"info:ABC"}, api.Calls(), "no accept for a role that cannot be granted")
}

func TestStart_InfoError(t *testing.T) {
	sess, _ := newSession(t)
	api := &fakeAPI{infoErr: &client.APIError{StatusCode: 404, Message: "unknown invitation"}}

	snap, err := New(api, sess).Start(context.Background(), "ABC")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, FailureError, snap.Failure)
	assert.ErrorIs(t, snap.Err, client.ErrNotFound)
}

func TestStart_SessionEndedDuringAccept(t *testing.T) {
	ctx := context.Background()
	sess, st := newSession(t)
	sess.Write(ctx, mintToken(t, "c1"), member("c1"))

	api := &fakeAPI{info: openInvitation()}
	api.accept = &models.AuthPayload{Token: mintToken(t, "c2"), User: member("c2")}
	h := New(api, sess)

	// the user signs out as soon as the handshake starts accepting
	h.Subscribe(func(s Snapshot) {
		if s.State == StateAutoAccepting {
			sess.Clear(ctx)
		}
	})

	snap, err := h.Start(ctx, "ABC")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, snap.State)
	assert.ErrorIs(t, snap.Err, client.ErrUnauthorized)

	cred, err := st.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestInvalidActions(t *testing.T) {
	ctx := context.Background()
	sess, st := newSession(t)
	h := New(&fakeAPI{info: openInvitation()}, sess)

	assert.ErrorIs(t, h.ChooseSignIn(ctx), ErrInvalidTransition)
	assert.ErrorIs(t, h.ChooseRegister(ctx), ErrInvalidTransition)
	_, err := h.Retry(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	carried, err := st.PendingInvitation(ctx)
	require.NoError(t, err)
	assert.Empty(t, carried)
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	sess, _ := newSession(t)
	h := New(&fakeAPI{info: openInvitation()}, sess)

	var first, second int
	unsubscribe := h.Subscribe(func(Snapshot) { first++ })
	h.Subscribe(func(Snapshot) { second++ })
	unsubscribe()

	_, err := h.Start(context.Background(), "ABC")
	require.NoError(t, err)
	assert.Zero(t, first)
	assert.Equal(t, 2, second)
}
