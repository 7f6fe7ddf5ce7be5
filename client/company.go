package client

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/vaintrub/hrsession/models"
	"github.com/vaintrub/hrsession/token"
)

// SwitchCompany makes companyID the active company. The server re-issues a
// token bound to that company; token and user are written together.
// POST /company/switch
func (a *Adapter) SwitchCompany(ctx context.Context, companyID string) (*models.AuthPayload, error) {
	if err := requireField("companyId", companyID); err != nil {
		return nil, err
	}
	return a.rescope(ctx, requestConfig{
		method: http.MethodPost,
		path:   "/company/switch",
		body:   map[string]string{"companyId": companyID},
	}, companyID)
}

// ClearCompanyContext drops the active company (platform-wide view for super admins).
// POST /company/clear-context
func (a *Adapter) ClearCompanyContext(ctx context.Context) (*models.AuthPayload, error) {
	return a.rescope(ctx, requestConfig{
		method: http.MethodPost,
		path:   "/company/clear-context",
	}, "")
}

// rescope performs a company-context request and writes the re-issued credential.
// The credential is rejected when the user's company disagrees with the
// requested one. The token is checked too, but only when it carries a
// company claim; servers that name the claim differently are not rejected.
func (a *Adapter) rescope(ctx context.Context, cfg requestConfig, want string) (*models.AuthPayload, error) {
	env, err := doEnvelope[models.AuthPayload](ctx, a, cfg)
	if err != nil {
		return nil, err
	}
	payload, err := authPayload(cfg.op(), env)
	if err != nil {
		return nil, err
	}

	if got := payload.User.CompanyScope(); got != want {
		return nil, errors.Wrapf(ErrScopeMismatch, "%s: requested company %q, user is scoped to %q", cfg.op(), want, got)
	}
	if info, err := token.Parse(payload.Token); err == nil {
		if info.CompanyID != "" && info.CompanyID != want {
			return nil, errors.Wrapf(ErrScopeMismatch, "%s: requested company %q, token is scoped to %q", cfg.op(), want, info.CompanyID)
		}
	} else {
		a.logger.Debug("re-issued token is not decodable, skipping scope check", zap.Error(err))
	}

	a.session.Write(ctx, payload.Token, payload.User)
	a.logger.Info("company context changed", zap.String("company_id", want))
	return payload, nil
}
