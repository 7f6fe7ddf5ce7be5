package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/vaintrub/hrsession/models"
)

// Register creates an account and signs the new user in.
// POST /auth/register
func (a *Adapter) Register(ctx context.Context, req RegisterRequest) (*models.Envelope[models.AuthPayload], error) {
	if err := requireField("email", req.Email); err != nil {
		return nil, err
	}
	if err := requireField("password", req.Password); err != nil {
		return nil, err
	}

	cfg := requestConfig{
		method:      http.MethodPost,
		path:        "/auth/register",
		body:        req,
		expectCodes: []int{http.StatusOK, http.StatusCreated},
	}
	env, err := doEnvelope[models.AuthPayload](ctx, a, cfg)
	if err != nil {
		return nil, err
	}
	payload, err := authPayload(cfg.op(), env)
	if err != nil {
		return nil, err
	}

	a.session.Write(ctx, payload.Token, payload.User)
	a.logger.Info("registered", zap.String("user_id", payload.User.ID))
	return env, nil
}

// Login exchanges credentials for a session.
// POST /auth/login
func (a *Adapter) Login(ctx context.Context, email, password string) (*models.Envelope[models.AuthPayload], error) {
	if err := requireField("email", email); err != nil {
		return nil, err
	}
	if err := requireField("password", password); err != nil {
		return nil, err
	}

	cfg := requestConfig{
		method: http.MethodPost,
		path:   "/auth/login",
		body: map[string]string{
			"email":    email,
			"password": password,
		},
	}
	env, err := doEnvelope[models.AuthPayload](ctx, a, cfg)
	if err != nil {
		return nil, err
	}
	payload, err := authPayload(cfg.op(), env)
	if err != nil {
		return nil, err
	}

	a.session.Write(ctx, payload.Token, payload.User)
	a.logger.Info("signed in", zap.String("user_id", payload.User.ID))
	return env, nil
}

// Logout ends the session. The remote call is best effort: the local
// credential is cleared whatever the server answers, and a remote failure is
// only logged.
// POST /auth/logout
func (a *Adapter) Logout(ctx context.Context) error {
	defer a.session.Clear(context.WithoutCancel(ctx))

	if a.session.Token() == "" {
		return nil
	}
	if _, err := doEnvelope[json.RawMessage](ctx, a, requestConfig{
		method: http.MethodPost,
		path:   "/auth/logout",
	}); err != nil {
		a.logger.Warn("remote logout failed, session cleared locally", zap.Error(err))
	}
	return nil
}

// FetchCurrentUser refreshes the user half of the credential. The refreshed
// user is written only if the token used for the request is still the stored
// one when the response arrives.
// GET /auth/me
func (a *Adapter) FetchCurrentUser(ctx context.Context) (*models.UserSnapshot, error) {
	tok := a.session.Token()

	env, err := doEnvelope[meData](ctx, a, requestConfig{
		method: http.MethodGet,
		path:   "/auth/me",
	})
	if err != nil {
		return nil, err
	}
	if env.Data.User == nil {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "response carries no user"}
	}

	if !a.session.ReplaceUser(ctx, tok, env.Data.User) {
		a.logger.Debug("current user fetched but credential changed meanwhile")
	}
	return env.Data.User.Clone(), nil
}

type meData struct {
	User *models.UserSnapshot `json:"user"`
}

// ForgotPassword asks the server to email a password reset link.
// POST /auth/forgot-password
func (a *Adapter) ForgotPassword(ctx context.Context, email string) (*models.Ack, error) {
	if err := requireField("email", email); err != nil {
		return nil, err
	}
	return doEnvelope[json.RawMessage](ctx, a, requestConfig{
		method: http.MethodPost,
		path:   "/auth/forgot-password",
		body:   map[string]string{"email": email},
	})
}

// ResetPassword sets a new password using the token from the reset email.
// POST /auth/reset-password
func (a *Adapter) ResetPassword(ctx context.Context, resetToken, password string) (*models.Ack, error) {
	if err := requireField("token", resetToken); err != nil {
		return nil, err
	}
	if err := requireField("password", password); err != nil {
		return nil, err
	}
	return doEnvelope[json.RawMessage](ctx, a, requestConfig{
		method: http.MethodPost,
		path:   "/auth/reset-password",
		body: map[string]string{
			"token":    resetToken,
			"password": password,
		},
	})
}

// ChangePassword changes the signed-in user's password.
// POST /auth/change-password
func (a *Adapter) ChangePassword(ctx context.Context, currentPassword, newPassword string) (*models.Ack, error) {
	if err := requireField("currentPassword", currentPassword); err != nil {
		return nil, err
	}
	if err := requireField("newPassword", newPassword); err != nil {
		return nil, err
	}
	return doEnvelope[json.RawMessage](ctx, a, requestConfig{
		method: http.MethodPost,
		path:   "/auth/change-password",
		body: map[string]string{
			"currentPassword": currentPassword,
			"newPassword":     newPassword,
		},
	})
}

// VerifyEmail confirms an email address. The call is bounded by the wait
// budget and fails with a TimeoutError instead of hanging.
// GET /auth/verify-email?token=
func (a *Adapter) VerifyEmail(ctx context.Context, verificationToken string) (*models.Ack, error) {
	if err := requireField("token", verificationToken); err != nil {
		return nil, err
	}
	cfg := requestConfig{
		method: http.MethodGet,
		path:   "/auth/verify-email",
		query:  url.Values{"token": {verificationToken}},
	}
	return Bounded(ctx, cfg.op(), a.opts.waitBudget, func(ctx context.Context) (*models.Ack, error) {
		return doEnvelope[json.RawMessage](ctx, a, cfg)
	})
}

// ResendVerification sends a new verification email.
// POST /auth/resend-verification
func (a *Adapter) ResendVerification(ctx context.Context, email string) (*models.Ack, error) {
	if err := requireField("email", email); err != nil {
		return nil, err
	}
	return doEnvelope[json.RawMessage](ctx, a, requestConfig{
		method: http.MethodPost,
		path:   "/auth/resend-verification",
		body:   map[string]string{"email": email},
	})
}
