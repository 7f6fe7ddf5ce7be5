package hrsession

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaintrub/hrsession/config"
	"github.com/vaintrub/hrsession/invitation"
	"github.com/vaintrub/hrsession/models"
	"github.com/vaintrub/hrsession/navigation"
	"github.com/vaintrub/hrsession/token"
)

func mintToken(t *testing.T, companyID string, exp time.Time) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, token.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: jwt.NewNumericDate(exp)},
		CompanyID:        companyID,
	}).SignedString([]byte("server-secret"))
	require.NoError(t, err)
	return raw
}

func userIn(companies ...string) *models.UserSnapshot {
	u := &models.UserSnapshot{ID: "user-1", Email: "ada@example.com", Role: models.RoleStaff, IsActive: true, EmailVerified: true}
	for _, c := range companies {
		u.CompanyMemberships = append(u.CompanyMemberships, models.CompanyMembership{CompanyID: c, CompanyName: c, Role: models.RoleStaff})
	}
	if len(companies) > 0 {
		u.CompanyID = &companies[len(companies)-1]
	}
	return u
}

func reply(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// hrServer is a minimal HR API: one account, one invitation "ABC" to company c2.
type hrServer struct {
	t        *testing.T
	expired  bool
	accepted atomic.Int32
}

func (s *hrServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method + " " + r.URL.Path {
	case "POST /auth/login":
		reply(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"token": mintToken(s.t, "c1", time.Now().Add(time.Hour)), "user": userIn("c1")},
		})
	case "GET /invitations/info":
		status := "pending"
		if s.accepted.Load() > 0 {
			status = "accepted"
		}
		reply(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"email": "ada@example.com", "role": "manager", "companyName": "Beta", "expired": s.expired, "status": status},
		})
	case "POST /invitations/accept":
		if r.Header.Get("Authorization") == "" {
			reply(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "message": "sign in first"})
			return
		}
		s.accepted.Add(1)
		reply(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"token": mintToken(s.t, "c2", time.Now().Add(time.Hour)), "user": userIn("c1", "c2")},
		})
	default:
		reply(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "message": "token expired"})
	}
}

func newOrchestrator(t *testing.T, endpoint string, nav navigation.Navigator) *Orchestrator {
	t.Helper()
	t.Setenv("HRSESSION_STORE_BACKEND", config.BackendFile)
	t.Setenv("HRSESSION_STORE_DIR", t.TempDir())
	t.Setenv("HRSESSION_ENDPOINT", endpoint)

	cfg, err := config.Load("")
	require.NoError(t, err)

	orch, err := New(context.Background(), cfg, WithNavigator(nav))
	require.NoError(t, err)
	t.Cleanup(func() { _ = orch.Close() })
	return orch
}

func TestInvitationThroughSignIn(t *testing.T) {
	ctx := context.Background()
	srv := &hrServer{t: t}
	server := httptest.NewServer(srv)
	defer server.Close()

	nav := navigation.NewHistory("/accept-invitation?token=ABC")
	orch := newOrchestrator(t, server.URL, nav)

	h := orch.NewHandshake()
	snap, err := h.Start(ctx, "ABC")
	require.NoError(t, err)
	require.Equal(t, invitation.StateAwaitingAuthentication, snap.State)
	require.NoError(t, h.ChooseSignIn(ctx))

	carried, err := orch.Store.PendingInvitation(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ABC", carried)

	_, err = orch.SignIn.SignIn(ctx, "ada@example.com", "s3cret", "/dashboard")
	require.NoError(t, err)

	assert.EqualValues(t, 1, srv.accepted.Load())
	assert.True(t, orch.Session.IsAuthenticated(ctx))
	assert.True(t, orch.Session.User().HasMembership("c2"))
	assert.Equal(t, "c2", orch.Session.User().CompanyScope())

	carried, err = orch.Store.PendingInvitation(ctx)
	require.NoError(t, err)
	assert.Empty(t, carried)
	assert.Equal(t, "/dashboard", nav.Location())
}

func TestInvitationReturnURLRoundTrip(t *testing.T) {
	ctx := context.Background()
	srv := &hrServer{t: t}
	server := httptest.NewServer(srv)
	defer server.Close()

	nav := navigation.NewHistory("/accept-invitation?token=ABC")
	orch := newOrchestrator(t, server.URL, nav)

	h := orch.NewHandshake()
	_, err := h.Start(ctx, "ABC")
	require.NoError(t, err)
	require.NoError(t, h.ChooseSignIn(ctx))

	signInURL, err := url.Parse(nav.Location())
	require.NoError(t, err)
	assert.Equal(t, "/login", signInURL.Path)
	returnURL := signInURL.Query().Get("returnUrl")
	assert.Equal(t, "/accept-invitation?token=ABC", returnURL)

	_, err = orch.SignIn.SignIn(ctx, "ada@example.com", "s3cret", returnURL)
	require.NoError(t, err)
	assert.EqualValues(t, 1, srv.accepted.Load())
	assert.True(t, orch.Session.User().HasMembership("c2"))

	// the invitation is closed on the server now, so the user lands home instead of on its view
	assert.Equal(t, "/", nav.Location())
}

func TestExpiredInvitationNeverAccepted(t *testing.T) {
	srv := &hrServer{t: t, expired: true}
	server := httptest.NewServer(srv)
	defer server.Close()

	orch := newOrchestrator(t, server.URL, navigation.NewHistory("/accept-invitation?token=ABC"))
	snap, err := orch.NewHandshake().Start(context.Background(), "ABC")
	require.NoError(t, err)
	assert.Equal(t, invitation.StateExpired, snap.State)
	assert.Zero(t, srv.accepted.Load())
}

func TestUnauthorizedEndsSession(t *testing.T) {
	ctx := context.Background()
	server := httptest.NewServer(&hrServer{t: t})
	defer server.Close()

	nav := navigation.NewHistory("/login")
	orch := newOrchestrator(t, server.URL, nav)

	_, err := orch.SignIn.SignIn(ctx, "ada@example.com", "s3cret", "/employees")
	require.NoError(t, err)
	require.True(t, orch.Session.IsAuthenticated(ctx))

	resp, err := orch.Client.HTTPClient().Get(server.URL + "/employees")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	cred, err := orch.Store.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, cred)
	assert.False(t, orch.Session.IsAuthenticated(ctx))
	assert.Equal(t, "/login?returnUrl=%2Femployees", nav.Location())
}

func TestOpenStore(t *testing.T) {
	st, closer, err := OpenStore(config.StoreConfig{Backend: config.BackendMemory}, nil)
	require.NoError(t, err)
	assert.NotNil(t, st)
	assert.Nil(t, closer)

	_, _, err = OpenStore(config.StoreConfig{Backend: "etcd"}, nil)
	assert.Error(t, err)
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.Error(t, err)
}
