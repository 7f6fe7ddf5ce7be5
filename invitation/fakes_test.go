package invitation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/vaintrub/hrsession/client"
	"github.com/vaintrub/hrsession/models"
	"github.com/vaintrub/hrsession/session"
	"github.com/vaintrub/hrsession/token"
)

// fakeAPI is an in-memory client.InvitationAPI. A non-nil gate blocks the
// matching call until it is closed or the call's context ends.
type fakeAPI struct {
	mu    sync.Mutex
	calls []string

	info      *models.InvitationInfo
	infoErr   error
	infoGate  chan struct{}
	accept     *models.AuthPayload
	acceptErr  error
	acceptGate chan struct{}
	auto      *models.AuthPayload
	autoErr   error
}

var _ client.InvitationAPI = (*fakeAPI)(nil)

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeAPI) GetInvitationInfo(ctx context.Context, tok string) (*models.InvitationInfo, error) {
	f.record("info:" + tok)
	if f.infoGate != nil {
		select {
		case <-f.infoGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	info := *f.info
	return &info, nil
}

func (f *fakeAPI) AcceptInvitation(ctx context.Context, tok string) (*models.AuthPayload, error) {
	f.record("accept:" + tok)
	if f.acceptGate != nil {
		// a late answer still arrives after the gate opens, whatever ctx says
		<-f.acceptGate
	}
	if f.acceptErr != nil {
		return nil, f.acceptErr
	}
	return f.accept, nil
}

func (f *fakeAPI) AutoAcceptInvitations(context.Context) (*models.AuthPayload, error) {
	f.record("auto-accept")
	return f.auto, f.autoErr
}

// fakeAuth writes the session on success the way the HTTP adapter does.
type fakeAuth struct {
	sess    *session.Session
	payload *models.AuthPayload
	err     error
	logins  int
}

func (f *fakeAuth) Login(ctx context.Context, email, password string) (*models.Envelope[models.AuthPayload], error) {
	if email == "" || password == "" {
		return nil, &client.ValidationError{Field: "email", Message: "cannot be empty"}
	}
	f.logins++
	return f.issue(ctx)
}

func (f *fakeAuth) Register(ctx context.Context, _ client.RegisterRequest) (*models.Envelope[models.AuthPayload], error) {
	return f.issue(ctx)
}

func (f *fakeAuth) issue(ctx context.Context) (*models.Envelope[models.AuthPayload], error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sess.Write(ctx, f.payload.Token, f.payload.User)
	return &models.Envelope[models.AuthPayload]{Success: true, Data: *f.payload}, nil
}

func mintToken(t *testing.T, companyID string) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, token.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		CompanyID:        companyID,
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func member(companies ...string) *models.UserSnapshot {
	u := &models.UserSnapshot{ID: "user-1", Email: "ada@example.com", Role: models.RoleStaff, IsActive: true}
	for _, c := range companies {
		u.CompanyMemberships = append(u.CompanyMemberships, models.CompanyMembership{CompanyID: c, CompanyName: c, Role: models.RoleStaff})
	}
	if len(companies) > 0 {
		last := companies[len(companies)-1]
		u.CompanyID = &last
	}
	return u
}

func openInvitation() *models.InvitationInfo {
	return &models.InvitationInfo{
		Email:       "ada@example.com",
		Role:        models.RoleManager,
		CompanyName: "Acme",
		Status:      models.InvitationPending,
	}
}
