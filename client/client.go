// Package client talks to the HR API on behalf of the session: it wraps the
// authentication, invitation and company-context endpoints, writes their
// results through the session, and provides the request interceptor used by
// every outbound call.
package client

import (
	"context"

	"github.com/vaintrub/hrsession/models"
)

// Gateway defines the remote operations the session orchestrator relies on.
type Gateway interface {
	// Auth (POST /auth/register, /auth/login, /auth/logout, GET /auth/me)
	Register(ctx context.Context, req RegisterRequest) (*models.Envelope[models.AuthPayload], error)
	Login(ctx context.Context, email, password string) (*models.Envelope[models.AuthPayload], error)
	Logout(ctx context.Context) error
	FetchCurrentUser(ctx context.Context) (*models.UserSnapshot, error)

	// Passwords and email verification (no session side effects)
	ForgotPassword(ctx context.Context, email string) (*models.Ack, error)
	ResetPassword(ctx context.Context, resetToken, password string) (*models.Ack, error)
	ChangePassword(ctx context.Context, currentPassword, newPassword string) (*models.Ack, error)
	VerifyEmail(ctx context.Context, verificationToken string) (*models.Ack, error)
	ResendVerification(ctx context.Context, email string) (*models.Ack, error)

	// Invitations (GET /invitations/info, POST /invitations/accept, /invitations/auto-accept)
	InvitationAPI

	// Company context (POST /company/switch, /company/clear-context)
	SwitchCompany(ctx context.Context, companyID string) (*models.AuthPayload, error)
	ClearCompanyContext(ctx context.Context) (*models.AuthPayload, error)
}

// InvitationAPI is the subset of the Gateway used by the invitation handshake.
type InvitationAPI interface {
	GetInvitationInfo(ctx context.Context, invitationToken string) (*models.InvitationInfo, error)
	AcceptInvitation(ctx context.Context, invitationToken string) (*models.AuthPayload, error)
	AutoAcceptInvitations(ctx context.Context) (*models.AuthPayload, error)
}

// Authenticator is the subset of the Gateway used by the sign-in and registration flows.
type Authenticator interface {
	Register(ctx context.Context, req RegisterRequest) (*models.Envelope[models.AuthPayload], error)
	Login(ctx context.Context, email, password string) (*models.Envelope[models.AuthPayload], error)
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	CompanyName string `json:"companyName,omitempty"` // creates a company owned by the new admin
}

var _ Gateway = (*Adapter)(nil)
