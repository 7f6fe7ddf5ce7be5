package invitation

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaintrub/hrsession/client"
	"github.com/vaintrub/hrsession/models"
	"github.com/vaintrub/hrsession/navigation"
)

func TestSignIn_RedeemsCarriedInvitation(t *testing.T) {
	ctx := context.Background()
	sess, st := newSession(t)
	nav := navigation.NewHistory("/accept-invitation?token=ABC")

	api := &fakeAPI{info: openInvitation()}
	h := New(api, sess, WithNavigator(nav))
	snap, err := h.Start(ctx, "ABC")
	require.NoError(t, err)
	require.Equal(t, StateAwaitingAuthentication, snap.State)
	require.NoError(t, h.ChooseSignIn(ctx))

	carried, err := st.PendingInvitation(ctx)
	require.NoError(t, err)
	require.Equal(t, "ABC", carried)

	loginToken := mintToken(t, "c1")
	redeemedToken := mintToken(t, "c2")
	auth := &fakeAuth{sess: sess, payload: &models.AuthPayload{Token: loginToken, User: member("c1")}}
	api.accept = &models.AuthPayload{Token: redeemedToken, User: member("c1", "c2")}

	flow := NewSignInFlow(auth, api, sess, WithNavigator(nav))
	env, err := flow.SignIn(ctx, "ada@example.com", "s3cret", "/dashboard")
	require.NoError(t, err)
	assert.Equal(t, loginToken, env.Data.Token)

	assert.Equal(t, []string{"info:ABC", "accept:ABC"}, api.Calls())
	assert.Equal(t, redeemedToken, sess.Token())
	assert.True(t, sess.User().HasMembership("c2"))

	carried, err = st.PendingInvitation(ctx)
	require.NoError(t, err)
	assert.Empty(t, carried)
	assert.Equal(t, "/dashboard", nav.Location())
}

func TestSignIn_FailedLoginStillConsumesCarry(t *testing.T) {
	ctx := context.Background()
	sess, st := newSession(t)
	require.NoError(t, st.PutPendingInvitation(ctx, "ABC"))
	nav := navigation.NewHistory("/login")

	api := &fakeAPI{}
	auth := &fakeAuth{sess: sess, err: &client.APIError{StatusCode: 401, Message: "invalid credentials"}}
	flow := NewSignInFlow(auth, api, sess, WithNavigator(nav))

	_, err := flow.SignIn(ctx, "ada@example.com", "wrong", "/dashboard")
	assert.ErrorIs(t, err, client.ErrUnauthorized)

	carried, err := st.PendingInvitation(ctx)
	require.NoError(t, err)
	assert.Empty(t, carried)
	assert.Empty(t, api.Calls())
	assert.Equal(t, "/login", nav.Location(), "a failed sign-in stays on the form")
}

func TestSignIn_EmptyInputKeepsCarry(t *testing.T) {
	ctx := context.Background()
	sess, st := newSession(t)
	require.NoError(t, st.PutPendingInvitation(ctx, "ABC"))

	flow := NewSignInFlow(&fakeAuth{sess: sess}, &fakeAPI{}, sess)
	_, err := flow.SignIn(ctx, "", "", "/")
	assert.ErrorIs(t, err, client.ErrInvalidInput)

	carried, err := st.PendingInvitation(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ABC", carried)
}

func TestSignIn_RedemptionFailureIsIgnored(t *testing.T) {
	ctx := context.Background()
	sess, st := newSession(t)
	require.NoError(t, st.PutPendingInvitation(ctx, "ABC"))
	nav := navigation.NewHistory("/login")

	loginToken := mintToken(t, "c1")
	auth := &fakeAuth{sess: sess, payload: &models.AuthPayload{Token: loginToken, User: member("c1")}}
	api := &fakeAPI{acceptErr: &client.APIError{StatusCode: 400, Code: "invitation.expired", Message: "expired"}}
	flow := NewSignInFlow(auth, api, sess, WithNavigator(nav))

	_, err := flow.SignIn(ctx, "ada@example.com", "s3cret", "/team")
	require.NoError(t, err)

	assert.Equal(t, []string{"accept:ABC"}, api.Calls())
	assert.Equal(t, loginToken, sess.Token())
	assert.Equal(t, "/team", nav.Location())

	carried, err := st.PendingInvitation(ctx)
	require.NoError(t, err)
	assert.Empty(t, carried)
}

func TestSignIn_RedemptionTimeout(t *testing.T) {
	ctx := context.Background()
	sess, st := newSession(t)
	require.NoError(t, st.PutPendingInvitation(ctx, "ABC"))
	nav := navigation.NewHistory("/login")

	loginToken := mintToken(t, "c1")
	auth := &fakeAuth{sess: sess, payload: &models.AuthPayload{Token: loginToken, User: member("c1")}}
	gate := make(chan struct{})
	api := &fakeAPI{
		accept:     &models.AuthPayload{Token: mintToken(t, "c2"), User: member("c1", "c2")},
		acceptGate: gate,
	}
	flow := NewSignInFlow(auth, api, sess, WithNavigator(nav), WithBudget(20*time.Millisecond))

	_, err := flow.SignIn(ctx, "ada@example.com", "s3cret", "/team")
	require.NoError(t, err)
	assert.Equal(t, "/team", nav.Location())
	assert.Equal(t, loginToken, sess.Token())

	carried, err := st.PendingInvitation(ctx)
	require.NoError(t, err)
	assert.Empty(t, carried)

	close(gate)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, loginToken, sess.Token(), "a late redemption is dropped")
	assert.False(t, sess.User().HasMembership("c2"))
}

func TestSignIn_CancelledAttemptConsumesCarry(t *testing.T) {
	sess, st := newSession(t)
	require.NoError(t, st.PutPendingInvitation(context.Background(), "ABC"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	auth := &fakeAuth{sess: sess, err: &client.NetworkError{Op: "POST /auth/login", Err: context.Canceled}}
	flow := NewSignInFlow(auth, &fakeAPI{}, sess)

	_, err := flow.SignIn(ctx, "ada@example.com", "s3cret", "/dashboard")
	require.Error(t, err)

	carried, err := st.PendingInvitation(context.Background())
	require.NoError(t, err)
	assert.Empty(t, carried)
}

func TestSignIn_RedeemedReturnToInvitationGoesHome(t *testing.T) {
	ctx := context.Background()
	sess, st := newSession(t)
	nav := navigation.NewHistory("/accept-invitation?token=ABC")

	api := &fakeAPI{info: openInvitation()}
	h := New(api, sess, WithNavigator(nav))
	_, err := h.Start(ctx, "ABC")
	require.NoError(t, err)
	require.NoError(t, h.ChooseSignIn(ctx))

	// the sign-in view hands its return parameter to the flow
	back := nav.Location()
	dest := mustQuery(t, back, navigation.DefaultReturnParam)
	require.True(t, navigation.IsAt(dest, navigation.DefaultInvitationPath))

	auth := &fakeAuth{sess: sess, payload: &models.AuthPayload{Token: mintToken(t, "c1"), User: member("c1")}}
	api.accept = &models.AuthPayload{Token: mintToken(t, "c2"), User: member("c1", "c2")}

	flow := NewSignInFlow(auth, api, sess, WithNavigator(nav), WithHomePath("/home"))
	_, err = flow.SignIn(ctx, "ada@example.com", "s3cret", dest)
	require.NoError(t, err)
	assert.Equal(t, "/home", nav.Location())
	assert.True(t, sess.User().HasMembership("c2"))

	carried, err := st.PendingInvitation(ctx)
	require.NoError(t, err)
	assert.Empty(t, carried)
}

func TestSignIn_FailedRedemptionReturnsToInvitation(t *testing.T) {
	ctx := context.Background()
	sess, st := newSession(t)
	require.NoError(t, st.PutPendingInvitation(ctx, "ABC"))
	nav := navigation.NewHistory("/login")

	auth := &fakeAuth{sess: sess, payload: &models.AuthPayload{Token: mintToken(t, "c1"), User: member("c1")}}
	api := &fakeAPI{acceptErr: &client.APIError{StatusCode: 410, Message: "gone"}}
	flow := NewSignInFlow(auth, api, sess, WithNavigator(nav), WithHomePath("/home"))

	_, err := flow.SignIn(ctx, "ada@example.com", "s3cret", "/accept-invitation?token=ABC")
	require.NoError(t, err)
	assert.Equal(t, "/accept-invitation?token=ABC", nav.Location(), "the view explains the expiry")
}

func mustQuery(t *testing.T, location, param string) string {
	t.Helper()
	u, err := url.Parse(location)
	require.NoError(t, err)
	return u.Query().Get(param)
}

func TestSignIn_UnsafeDestination(t *testing.T) {
	ctx := context.Background()
	sess, _ := newSession(t)
	nav := navigation.NewHistory("/login")
	auth := &fakeAuth{sess: sess, payload: &models.AuthPayload{Token: mintToken(t, ""), User: member()}}

	flow := NewSignInFlow(auth, &fakeAPI{}, sess, WithNavigator(nav), WithHomePath("/home"))
	_, err := flow.SignIn(ctx, "ada@example.com", "s3cret", "https://evil.example/steal")
	require.NoError(t, err)
	assert.Equal(t, "/home", nav.Location())
}

func TestSignIn_AutoApply(t *testing.T) {
	ctx := context.Background()

	t.Run("enabled without carry", func(t *testing.T) {
		sess, _ := newSession(t)
		auth := &fakeAuth{sess: sess, payload: &models.AuthPayload{Token: mintToken(t, ""), User: member()}}
		api := &fakeAPI{}

		flow := NewSignInFlow(auth, api, sess, WithAutoApply(true))
		_, err := flow.SignIn(ctx, "ada@example.com", "s3cret", "/")
		require.NoError(t, err)
		assert.Equal(t, []string{"auto-accept"}, api.Calls())
	})

	t.Run("failure does not fail sign-in", func(t *testing.T) {
		sess, _ := newSession(t)
		auth := &fakeAuth{sess: sess, payload: &models.AuthPayload{Token: mintToken(t, ""), User: member()}}
		api := &fakeAPI{autoErr: errors.New("boom")}

		flow := NewSignInFlow(auth, api, sess, WithAutoApply(true))
		_, err := flow.SignIn(ctx, "ada@example.com", "s3cret", "/")
		require.NoError(t, err)
	})

	t.Run("disabled by default", func(t *testing.T) {
		sess, _ := newSession(t)
		auth := &fakeAuth{sess: sess, payload: &models.AuthPayload{Token: mintToken(t, ""), User: member()}}
		api := &fakeAPI{}

		_, err := NewSignInFlow(auth, api, sess).SignIn(ctx, "ada@example.com", "s3cret", "/")
		require.NoError(t, err)
		assert.Empty(t, api.Calls())
	})
}

func TestRegister_Carry(t *testing.T) {
	ctx := context.Background()
	req := client.RegisterRequest{Email: "ada@example.com", Password: "pw", FirstName: "Ada"}

	t.Run("left for the next sign-in by default", func(t *testing.T) {
		sess, st := newSession(t)
		require.NoError(t, st.PutPendingInvitation(ctx, "ABC"))
		auth := &fakeAuth{sess: sess, payload: &models.AuthPayload{Token: mintToken(t, ""), User: member()}}
		api := &fakeAPI{}
		nav := navigation.NewHistory("/register")

		_, err := NewRegisterFlow(auth, api, sess, WithNavigator(nav)).Register(ctx, req, "/welcome")
		require.NoError(t, err)

		carried, err := st.PendingInvitation(ctx)
		require.NoError(t, err)
		assert.Equal(t, "ABC", carried)
		assert.Empty(t, api.Calls())
		assert.Equal(t, "/welcome", nav.Location())
	})

	t.Run("redeemed when enabled", func(t *testing.T) {
		sess, st := newSession(t)
		require.NoError(t, st.PutPendingInvitation(ctx, "ABC"))
		auth := &fakeAuth{sess: sess, payload: &models.AuthPayload{Token: mintToken(t, ""), User: member()}}
		redeemed := mintToken(t, "c2")
		api := &fakeAPI{accept: &models.AuthPayload{Token: redeemed, User: member("c2")}}

		_, err := NewRegisterFlow(auth, api, sess, WithRedeemOnRegister(true)).Register(ctx, req, "/")
		require.NoError(t, err)

		carried, err := st.PendingInvitation(ctx)
		require.NoError(t, err)
		assert.Empty(t, carried)
		assert.Equal(t, redeemed, sess.Token())
	})

	t.Run("failed registration keeps the carry", func(t *testing.T) {
		sess, st := newSession(t)
		require.NoError(t, st.PutPendingInvitation(ctx, "ABC"))
		auth := &fakeAuth{sess: sess, err: &client.APIError{StatusCode: 409, Message: "email taken"}}

		_, err := NewRegisterFlow(auth, &fakeAPI{}, sess, WithRedeemOnRegister(true)).Register(ctx, req, "/")
		assert.ErrorIs(t, err, client.ErrConflict)

		carried, err := st.PendingInvitation(ctx)
		require.NoError(t, err)
		assert.Equal(t, "ABC", carried)
	})
}
