package client

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vaintrub/hrsession/navigation"
	"github.com/vaintrub/hrsession/session"
)

// Transport is the request interceptor. It attaches the stored bearer token to
// every outbound request and ends the session when the server answers 401.
// The response is always returned unchanged; Transport observes failures but
// never swallows them.
type Transport struct {
	base        http.RoundTripper
	session     *session.Session
	navigator   navigation.Navigator
	signInPath  string
	returnParam string
	logger      *zap.Logger

	mu sync.Mutex // serializes clear-and-redirect so overlapping 401s redirect once
}

var _ http.RoundTripper = (*Transport)(nil)

// NewTransport returns an interceptor for use with any http.Client.
// Only the transport-related options apply (WithBaseTransport, WithNavigator,
// WithSignInPath, WithReturnParam, WithLogger and the connection timeouts).
func NewTransport(sess *session.Session, opts ...Option) *Transport {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return newTransport(sess, o)
}

func newTransport(sess *session.Session, o *options) *Transport {
	base := o.baseTransport
	if base == nil {
		// Clone default transport and increase connection pool limits
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.MaxIdleConns = 100
		transport.MaxIdleConnsPerHost = 100
		transport.ResponseHeaderTimeout = o.responseHeaderTimeout
		transport.IdleConnTimeout = o.idleConnTimeout
		base = transport
	}
	return &Transport{
		base:        base,
		session:     sess,
		navigator:   o.navigator,
		signInPath:  o.signInPath,
		returnParam: o.returnParam,
		logger:      o.logger,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	// RoundTrippers must not modify the caller's request
	out := req.Clone(ctx)
	if out.Header.Get("Authorization") == "" {
		if tok := t.storedToken(ctx); tok != "" {
			out.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	if out.Header.Get("X-Request-Id") == "" {
		out.Header.Set("X-Request-Id", uuid.NewString())
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		t.handleUnauthorized(context.WithoutCancel(ctx), req)
	}
	return resp, nil
}

// storedToken reads the token from the credential store on every request,
// so a credential written by another process is picked up immediately.
func (t *Transport) storedToken(ctx context.Context) string {
	cred, err := t.session.Store().Read(ctx)
	if err != nil {
		t.logger.Warn("read credential for request", zap.Error(err))
		return ""
	}
	if cred == nil {
		return ""
	}
	return cred.Token
}

// handleUnauthorized clears the session and redirects to sign-in unless the
// user is already there. Both steps are no-ops when repeated.
func (t *Transport) handleUnauthorized(ctx context.Context, req *http.Request) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.logger.Info("credential rejected, ending session",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path))

	t.session.Clear(ctx)

	if t.navigator == nil {
		return
	}
	location := t.navigator.Location()
	if navigation.IsAt(location, t.signInPath) {
		return
	}
	t.navigator.Navigate(navigation.WithParam(t.signInPath, t.returnParam, location))
}
