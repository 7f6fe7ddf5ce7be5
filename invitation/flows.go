package invitation

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/vaintrub/hrsession/client"
	"github.com/vaintrub/hrsession/models"
	"github.com/vaintrub/hrsession/navigation"
	"github.com/vaintrub/hrsession/session"
)

// SignInFlow signs a user in and redeems the invitation carried from the
// invitation view, if any, before navigating to the destination.
type SignInFlow struct {
	auth    client.Authenticator
	invites client.InvitationAPI
	session *session.Session
	opts    *options
	logger  *zap.Logger
}

// NewSignInFlow returns a sign-in flow.
func NewSignInFlow(auth client.Authenticator, invites client.InvitationAPI, sess *session.Session, opts ...Option) *SignInFlow {
	o := buildOptions(opts)
	return &SignInFlow{auth: auth, invites: invites, session: sess, opts: o, logger: o.logger}
}

// SignIn logs in and, once the attempt has completed, takes the pending
// invitation carry whatever the outcome. On success a carried invitation is
// accepted within the wait budget and its credential replaces the fresh one;
// redemption failures are logged and otherwise ignored. The flow then
// navigates to destination when it is a relative path, or home otherwise.
// Once the carry is redeemed, a destination back at the invitation view
// is replaced by home since that invitation is closed now.
// On a failed login the error is returned and nothing is navigated.
func (f *SignInFlow) SignIn(ctx context.Context, email, password, destination string) (*models.Envelope[models.AuthPayload], error) {
	env, err := f.auth.Login(ctx, email, password)
	if err != nil && errors.Is(err, client.ErrInvalidInput) {
		// rejected before any request; not an attempt
		return nil, err
	}

	carried, takeErr := f.session.Store().TakePendingInvitation(context.WithoutCancel(ctx))
	if takeErr != nil {
		f.logger.Warn("take pending invitation", zap.Error(takeErr))
	}
	if err != nil {
		if carried != "" {
			f.logger.Info("sign-in failed, pending invitation discarded")
		}
		return nil, err
	}

	redeemed := false
	switch {
	case carried != "":
		redeemed = redeem(ctx, f.invites, f.session, env.Data.Token, carried, f.opts)
	case f.opts.autoApply:
		f.autoApply(ctx)
	}

	navigate(f.opts, destination, redeemed)
	return env, nil
}

func (f *SignInFlow) autoApply(ctx context.Context) {
	payload, err := client.Bounded(ctx, "auto-accept invitations", f.opts.budget, f.invites.AutoAcceptInvitations)
	if err != nil {
		f.logger.Warn("auto-accept invitations failed", zap.Error(err))
		return
	}
	if payload != nil {
		f.logger.Info("pending invitations applied")
	}
}

// RegisterFlow creates an account and navigates to the destination. It can
// redeem a carried invitation as well (WithRedeemOnRegister); otherwise the
// carry is left in place for the next sign-in.
type RegisterFlow struct {
	auth    client.Authenticator
	invites client.InvitationAPI
	session *session.Session
	opts    *options
	logger  *zap.Logger
}

// NewRegisterFlow returns a registration flow.
func NewRegisterFlow(auth client.Authenticator, invites client.InvitationAPI, sess *session.Session, opts ...Option) *RegisterFlow {
	o := buildOptions(opts)
	return &RegisterFlow{auth: auth, invites: invites, session: sess, opts: o, logger: o.logger}
}

// Register creates the account. Failures are returned without navigating.
func (f *RegisterFlow) Register(ctx context.Context, req client.RegisterRequest, destination string) (*models.Envelope[models.AuthPayload], error) {
	env, err := f.auth.Register(ctx, req)
	if err != nil {
		return nil, err
	}

	redeemed := false
	if f.opts.redeemOnRegister {
		carried, err := f.session.Store().TakePendingInvitation(context.WithoutCancel(ctx))
		if err != nil {
			f.logger.Warn("take pending invitation", zap.Error(err))
		}
		if carried != "" {
			redeemed = redeem(ctx, f.invites, f.session, env.Data.Token, carried, f.opts)
		}
	}

	navigate(f.opts, destination, redeemed)
	return env, nil
}

// redeem accepts a carried invitation for the session that was just opened
// with signedInAs and reports whether its credential was written. It never
// fails the calling flow.
func redeem(ctx context.Context, invites client.InvitationAPI, sess *session.Session, signedInAs, tok string, o *options) bool {
	payload, err := client.Bounded(ctx, "redeem invitation", o.budget, func(ctx context.Context) (*models.AuthPayload, error) {
		return invites.AcceptInvitation(ctx, tok)
	})
	if err != nil {
		o.logger.Warn("pending invitation not redeemed", zap.Error(err))
		return false
	}
	if !payload.Issued() {
		o.logger.Warn("pending invitation redeemed without a credential")
		return false
	}
	if !sess.ReplaceCredential(ctx, signedInAs, payload.Token, payload.User) {
		o.logger.Info("session changed while redeeming invitation, result dropped")
		return false
	}
	o.logger.Info("pending invitation redeemed", zap.String("user_id", payload.User.ID))
	return true
}

func navigate(o *options, destination string, redeemed bool) {
	if o.navigator == nil {
		return
	}
	to := navigation.SafeReturn(destination, o.homePath)
	if redeemed && navigation.IsAt(to, o.invitationPath) {
		to = o.homePath
	}
	o.navigator.Navigate(to)
}
