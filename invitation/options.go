package invitation

import (
	"time"

	"go.uber.org/zap"

	"github.com/vaintrub/hrsession/client"
	"github.com/vaintrub/hrsession/navigation"
)

// Option configures a Handshake, a SignInFlow or a RegisterFlow.
type Option func(*options)

type options struct {
	budget           time.Duration
	navigator        navigation.Navigator
	signInPath       string
	registerPath     string
	invitationPath   string
	homePath         string
	returnParam      string
	invitationParam  string
	autoApply        bool
	redeemOnRegister bool
	logger           *zap.Logger
}

func defaultOptions() *options {
	return &options{
		budget:          client.DefaultWaitBudget,
		signInPath:      navigation.DefaultSignInPath,
		registerPath:    navigation.DefaultRegisterPath,
		invitationPath:  navigation.DefaultInvitationPath,
		homePath:        navigation.DefaultHomePath,
		returnParam:     navigation.DefaultReturnParam,
		invitationParam: navigation.DefaultInvitationParam,
		logger:          zap.NewNop(),
	}
}

func buildOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithBudget bounds each invitation info, accept and auto-accept call.
// Default: 15s. Values <= 0 are ignored.
func WithBudget(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.budget = d
		}
	}
}

// WithNavigator sets the navigator used to leave the invitation view and to
// reach the destination after sign-in.
func WithNavigator(n navigation.Navigator) Option {
	return func(o *options) {
		if n != nil {
			o.navigator = n
		}
	}
}

// WithPaths overrides the sign-in, register and invitation view paths.
// Empty values keep their defaults.
func WithPaths(signIn, register, invitation string) Option {
	return func(o *options) {
		if signIn != "" {
			o.signInPath = signIn
		}
		if register != "" {
			o.registerPath = register
		}
		if invitation != "" {
			o.invitationPath = invitation
		}
	}
}

// WithHomePath sets where flows go when the requested destination is unsafe or empty.
func WithHomePath(path string) Option {
	return func(o *options) {
		if path != "" {
			o.homePath = path
		}
	}
}

// WithReturnParam overrides the query parameter carrying the return destination.
func WithReturnParam(param string) Option {
	return func(o *options) {
		if param != "" {
			o.returnParam = param
		}
	}
}

// WithAutoApply makes the sign-in flow apply every pending invitation for the
// user's email when no invitation was carried.
func WithAutoApply(enabled bool) Option {
	return func(o *options) {
		o.autoApply = enabled
	}
}

// WithRedeemOnRegister makes the registration flow redeem a carried invitation.
// Off by default: only sign-in redeems.
func WithRedeemOnRegister(enabled bool) Option {
	return func(o *options) {
		o.redeemOnRegister = enabled
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
