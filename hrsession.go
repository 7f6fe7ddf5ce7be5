// Package hrsession wires the credential store, the session, the HR API
// client and the invitation flows into one orchestrator.
//
// Basic usage:
//
//	cfg, err := config.Load("hrsession.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	orch, err := hrsession.New(ctx, cfg, hrsession.WithNavigator(nav))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer orch.Close()
//
//	_, err = orch.SignIn.SignIn(ctx, email, password, "/dashboard")
package hrsession

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vaintrub/hrsession/client"
	"github.com/vaintrub/hrsession/config"
	"github.com/vaintrub/hrsession/invitation"
	"github.com/vaintrub/hrsession/models"
	"github.com/vaintrub/hrsession/navigation"
	"github.com/vaintrub/hrsession/session"
	"github.com/vaintrub/hrsession/store"
)

// Re-export the types hosts touch most.
type (
	// Credential is a bearer token paired with its user snapshot.
	Credential = models.Credential
	// UserSnapshot is the signed-in user as issued with the token.
	UserSnapshot = models.UserSnapshot
	// InvitationInfo is the public projection of an invitation.
	InvitationInfo = models.InvitationInfo

	// APIError represents an error from the HR API.
	APIError = client.APIError
	// ValidationError represents a client-side validation error.
	ValidationError = client.ValidationError
	// TimeoutError reports an exceeded wait budget.
	TimeoutError = client.TimeoutError

	// Navigator reports and changes the host's location.
	Navigator = navigation.Navigator
)

// Re-export sentinel errors
var (
	ErrNetwork           = client.ErrNetwork
	ErrUnauthorized      = client.ErrUnauthorized
	ErrValidation        = client.ErrValidation
	ErrExpiredInvitation = client.ErrExpiredInvitation
	ErrTimeout           = client.ErrTimeout
	ErrUnknownServer     = client.ErrUnknownServer
	ErrInvalidInput      = client.ErrInvalidInput
	ErrScopeMismatch     = client.ErrScopeMismatch
)

// Option configures the orchestrator.
type Option func(*options)

type options struct {
	navigator     navigation.Navigator
	logger        *zap.Logger
	store         store.Store
	baseTransport http.RoundTripper
}

// WithNavigator sets the host navigator. Default: an in-memory History at the home path.
func WithNavigator(n navigation.Navigator) Option {
	return func(o *options) {
		if n != nil {
			o.navigator = n
		}
	}
}

// WithLogger sets the logger passed to every component.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithStore overrides the store selected by the configuration.
func WithStore(st store.Store) Option {
	return func(o *options) {
		if st != nil {
			o.store = st
		}
	}
}

// WithBaseTransport sets the transport wrapped by the request interceptor.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		if rt != nil {
			o.baseTransport = rt
		}
	}
}

// Orchestrator owns one session and everything that acts on it.
type Orchestrator struct {
	Store     store.Store
	Session   *session.Session
	Client    *client.Adapter
	Navigator navigation.Navigator
	SignIn    *invitation.SignInFlow
	Register  *invitation.RegisterFlow

	invitationOpts []invitation.Option
	closers        []func() error
}

// New builds an orchestrator from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	o := &options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	if o.navigator == nil {
		o.navigator = navigation.NewHistory(cfg.Paths.Home)
	}

	orch := &Orchestrator{Navigator: o.navigator}

	st := o.store
	if st == nil {
		var (
			closer func() error
			err    error
		)
		st, closer, err = OpenStore(cfg.Store, o.logger)
		if err != nil {
			return nil, err
		}
		if closer != nil {
			orch.closers = append(orch.closers, closer)
		}
	}
	orch.Store = st
	orch.Session = session.New(ctx, st, session.WithLogger(o.logger.Named("session")))

	clientOpts := []client.Option{
		client.WithTimeout(cfg.HTTP.Timeout),
		client.WithWaitBudget(cfg.HTTP.WaitBudget),
		client.WithRetry(cfg.HTTP.RetryMax, cfg.HTTP.RetryBackoff),
		client.WithNavigator(o.navigator),
		client.WithSignInPath(cfg.Paths.SignIn),
		client.WithReturnParam(cfg.Paths.ReturnParam),
		client.WithLogger(o.logger.Named("client")),
	}
	if o.baseTransport != nil {
		clientOpts = append(clientOpts, client.WithBaseTransport(o.baseTransport))
	}
	adapter, err := client.New(cfg.Endpoint, orch.Session, clientOpts...)
	if err != nil {
		_ = orch.Close()
		return nil, err
	}
	orch.Client = adapter

	orch.invitationOpts = []invitation.Option{
		invitation.WithBudget(cfg.HTTP.WaitBudget),
		invitation.WithNavigator(o.navigator),
		invitation.WithPaths(cfg.Paths.SignIn, cfg.Paths.Register, cfg.Paths.Invitation),
		invitation.WithHomePath(cfg.Paths.Home),
		invitation.WithReturnParam(cfg.Paths.ReturnParam),
		invitation.WithAutoApply(cfg.Invitations.AutoApply),
		invitation.WithRedeemOnRegister(cfg.Invitations.RedeemOnRegister),
		invitation.WithLogger(o.logger.Named("invitation")),
	}
	orch.SignIn = invitation.NewSignInFlow(adapter, adapter, orch.Session, orch.invitationOpts...)
	orch.Register = invitation.NewRegisterFlow(adapter, adapter, orch.Session, orch.invitationOpts...)

	return orch, nil
}

// NewHandshake returns a fresh invitation handshake bound to this session.
func (o *Orchestrator) NewHandshake() *invitation.Handshake {
	return invitation.New(o.Client, o.Session, o.invitationOpts...)
}

// Close releases the store's connections.
func (o *Orchestrator) Close() error {
	var errs error
	for _, c := range o.closers {
		errs = errors.CombineErrors(errs, c())
	}
	o.closers = nil
	return errs
}

// OpenStore opens the store cfg selects. The returned closer, if any,
// releases the backend's connections.
func OpenStore(cfg config.StoreConfig, logger *zap.Logger) (store.Store, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Backend {
	case config.BackendMemory:
		return store.NewMemory(), nil, nil
	case config.BackendFile, "":
		st, err := store.NewFile(cfg.Dir, store.WithFileLogger(logger.Named("store")))
		if err != nil {
			return nil, nil, errors.Wrap(err, "open file store")
		}
		return st, nil, nil
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		st, err := store.NewRedis(rdb,
			store.WithRedisPrefix(cfg.Redis.Prefix),
			store.WithRedisLogger(logger.Named("store")))
		if err != nil {
			_ = rdb.Close()
			return nil, nil, errors.Wrap(err, "open redis store")
		}
		return st, rdb.Close, nil
	}
	return nil, nil, errors.Newf("unknown store backend %q", cfg.Backend)
}
