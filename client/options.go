package client

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vaintrub/hrsession/navigation"
)

// Configuration constants
const (
	// DefaultWaitBudget bounds invitation and email-verification calls.
	DefaultWaitBudget = 15 * time.Second

	// Default configuration values
	defaultTimeout               = 30 * time.Second
	defaultResponseHeaderTimeout = 30 * time.Second
	defaultIdleConnTimeout       = 90 * time.Second
	defaultRetryMax              = 1
	defaultRetryBackoff          = 500 * time.Millisecond
)

// Option configures the Adapter.
type Option func(*options)

// options holds the configuration for the Adapter.
type options struct {
	timeout               time.Duration        // HTTP client timeout (default: 30s)
	responseHeaderTimeout time.Duration        // Timeout for waiting for response headers (default: 30s)
	idleConnTimeout       time.Duration        // How long idle connections stay in pool (default: 90s)
	baseTransport         http.RoundTripper    // Transport wrapped by the interceptor (default: cloned http.DefaultTransport)
	waitBudget            time.Duration        // Budget for invitation and verify-email calls (default: 15s)
	retryMax              int                  // Attempts for idempotent GETs (default: 1, no retry)
	retryBackoff          time.Duration        // Initial backoff (default: 500ms)
	navigator             navigation.Navigator // Where 401 redirects go (default: none)
	signInPath            string               // Sign-in view (default: /login)
	returnParam           string               // Query parameter carrying the return destination (default: returnUrl)
	logger                *zap.Logger
}

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		timeout:               defaultTimeout,
		responseHeaderTimeout: defaultResponseHeaderTimeout,
		idleConnTimeout:       defaultIdleConnTimeout,
		waitBudget:            DefaultWaitBudget,
		retryMax:              defaultRetryMax,
		retryBackoff:          defaultRetryBackoff,
		signInPath:            navigation.DefaultSignInPath,
		returnParam:           navigation.DefaultReturnParam,
		logger:                zap.NewNop(),
	}
}

// WithTimeout sets the HTTP client timeout.
// Values <= 0 are ignored (default is used).
// Default: 30s
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithResponseHeaderTimeout sets the timeout for waiting for response headers.
// Default: 30s. Values <= 0 are ignored.
// Note: This option is ignored when WithBaseTransport is used.
func WithResponseHeaderTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.responseHeaderTimeout = d
		}
	}
}

// WithIdleConnTimeout sets how long idle connections stay in the connection pool.
// Default: 90s. Values <= 0 are ignored.
// Note: This option is ignored when WithBaseTransport is used.
func WithIdleConnTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.idleConnTimeout = d
		}
	}
}

// WithBaseTransport sets the transport the interceptor wraps.
// Nil values are ignored.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		if rt != nil {
			o.baseTransport = rt
		}
	}
}

// WithWaitBudget sets the budget for invitation info/accept and email verification.
// Default: 15s. Values <= 0 are ignored.
func WithWaitBudget(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.waitBudget = d
		}
	}
}

// WithRetry configures retry behavior with exponential backoff for idempotent GETs.
// maxAttempts is the total number of attempts (including the first one).
// Default: 1 attempt (no retries), 500ms initial backoff
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(o *options) {
		if maxAttempts > 0 {
			o.retryMax = maxAttempts
		}
		if backoff > 0 {
			o.retryBackoff = backoff
		}
	}
}

// WithNavigator sets where the interceptor sends the user on a 401.
// Without a navigator the session is still cleared but nothing is redirected.
func WithNavigator(n navigation.Navigator) Option {
	return func(o *options) {
		if n != nil {
			o.navigator = n
		}
	}
}

// WithSignInPath overrides the sign-in view path.
// Default: /login
func WithSignInPath(path string) Option {
	return func(o *options) {
		if path != "" {
			o.signInPath = path
		}
	}
}

// WithReturnParam overrides the query parameter used for the return destination.
// Default: returnUrl
func WithReturnParam(param string) Option {
	return func(o *options) {
		if param != "" {
			o.returnParam = param
		}
	}
}

// WithLogger sets a structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
