package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/vaintrub/hrsession/models"
)

// GetInvitationInfo returns the public projection of an invitation.
// It needs no credential. Bounded by the wait budget.
// GET /invitations/info?token=
func (a *Adapter) GetInvitationInfo(ctx context.Context, invitationToken string) (*models.InvitationInfo, error) {
	if err := requireField("token", invitationToken); err != nil {
		return nil, err
	}
	cfg := requestConfig{
		method: http.MethodGet,
		path:   "/invitations/info",
		query:  url.Values{"token": {invitationToken}},
	}
	return Bounded(ctx, cfg.op(), a.opts.waitBudget, func(ctx context.Context) (*models.InvitationInfo, error) {
		env, err := doEnvelope[models.InvitationInfo](ctx, a, cfg)
		if err != nil {
			return nil, err
		}
		return &env.Data, nil
	})
}

// AcceptInvitation redeems an invitation for the signed-in user and returns
// the re-issued credential. It does not write the session; the caller decides
// whether the result is still wanted. Bounded by the wait budget.
// POST /invitations/accept
func (a *Adapter) AcceptInvitation(ctx context.Context, invitationToken string) (*models.AuthPayload, error) {
	if err := requireField("token", invitationToken); err != nil {
		return nil, err
	}
	cfg := requestConfig{
		method: http.MethodPost,
		path:   "/invitations/accept",
		body:   map[string]string{"token": invitationToken},
	}
	return Bounded(ctx, cfg.op(), a.opts.waitBudget, func(ctx context.Context) (*models.AuthPayload, error) {
		env, err := doEnvelope[models.AuthPayload](ctx, a, cfg)
		if err != nil {
			return nil, err
		}
		return authPayload(cfg.op(), env)
	})
}

// AutoAcceptInvitations applies every pending invitation addressed to the
// signed-in user's email. When the server applied at least one, it returns a
// re-issued credential which is written to the session; otherwise it returns nil.
// Bounded by the wait budget.
// POST /invitations/auto-accept
func (a *Adapter) AutoAcceptInvitations(ctx context.Context) (*models.AuthPayload, error) {
	cfg := requestConfig{
		method: http.MethodPost,
		path:   "/invitations/auto-accept",
	}
	tok := a.session.Token()
	payload, err := Bounded(ctx, cfg.op(), a.opts.waitBudget, func(ctx context.Context) (*models.AuthPayload, error) {
		env, err := doEnvelope[models.AuthPayload](ctx, a, cfg)
		if err != nil {
			return nil, err
		}
		if !env.Data.Issued() {
			return nil, nil
		}
		return &env.Data, nil
	})
	if err != nil || payload == nil {
		return nil, err
	}

	// A logout or 401 while waiting must not be undone by a late result.
	if !a.session.ReplaceCredential(ctx, tok, payload.Token, payload.User) {
		return nil, errors.Wrap(ErrUnauthorized, "session changed while applying invitations")
	}
	a.logger.Info("pending invitations applied", zap.String("user_id", payload.User.ID))
	return payload, nil
}
