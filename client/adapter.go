package client

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vaintrub/hrsession/session"
)

// Adapter implements the Gateway interface over the HR REST API.
type Adapter struct {
	endpoint   string
	session    *session.Session
	httpClient *http.Client
	transport  *Transport
	opts       *options
	logger     *zap.Logger
}

// New creates a new HR API client bound to sess.
// Returns an error if required parameters are missing.
func New(endpoint string, sess *session.Session, opts ...Option) (*Adapter, error) {
	if endpoint == "" {
		return nil, &ValidationError{Field: "endpoint", Message: "cannot be empty"}
	}
	if sess == nil {
		return nil, &ValidationError{Field: "session", Message: "cannot be nil"}
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	transport := newTransport(sess, o)
	httpClient := &http.Client{
		Timeout:   o.timeout,
		Transport: transport,
	}

	// Normalize endpoint: remove trailing slash to prevent double slashes in URL concatenation
	endpoint = strings.TrimSuffix(endpoint, "/")

	return &Adapter{
		endpoint:   endpoint,
		session:    sess,
		httpClient: httpClient,
		transport:  transport,
		opts:       o,
		logger:     o.logger,
	}, nil
}

// HTTPClient returns the intercepted client. Feature code issuing its own
// requests must use it so that credentials are attached and 401s end the session.
func (a *Adapter) HTTPClient() *http.Client {
	return a.httpClient
}

// Transport returns the request interceptor.
func (a *Adapter) Transport() *Transport {
	return a.transport
}

// Session returns the session the adapter writes through.
func (a *Adapter) Session() *session.Session {
	return a.session
}

// WaitBudget returns the budget applied to invitation and verification calls.
func (a *Adapter) WaitBudget() time.Duration {
	return a.opts.waitBudget
}
