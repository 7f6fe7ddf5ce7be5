// Package config loads hrsession settings from a TOML/YAML/JSON file and
// HRSESSION_* environment variables.
package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/vaintrub/hrsession/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g. HRSESSION_STORE_BACKEND.
const EnvPrefix = "HRSESSION"

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Config holds all configuration settings.
type Config struct {
	Endpoint    string           `mapstructure:"endpoint"`
	HTTP        HTTPConfig       `mapstructure:"http"`
	Paths       PathsConfig      `mapstructure:"paths"`
	Store       StoreConfig      `mapstructure:"store"`
	Invitations InvitationConfig `mapstructure:"invitations"`
	Log         logging.Conf     `mapstructure:"log"`
}

// HTTPConfig configures the API client.
type HTTPConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	WaitBudget   time.Duration `mapstructure:"waitBudget"` // invitation and email verification calls
	RetryMax     int           `mapstructure:"retryMax"`   // attempts for idempotent GETs
	RetryBackoff time.Duration `mapstructure:"retryBackoff"`
}

// PathsConfig names the views the orchestrator navigates to.
type PathsConfig struct {
	SignIn      string `mapstructure:"signIn"`
	Register    string `mapstructure:"register"`
	Invitation  string `mapstructure:"invitation"`
	Home        string `mapstructure:"home"`
	ReturnParam string `mapstructure:"returnParam"`
}

// StoreConfig selects and configures the credential store.
type StoreConfig struct {
	Backend string      `mapstructure:"backend"`
	Dir     string      `mapstructure:"dir"` // file backend
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// InvitationConfig controls when carried invitations are redeemed.
type InvitationConfig struct {
	RedeemOnRegister bool `mapstructure:"redeemOnRegister"`
	AutoApply        bool `mapstructure:"autoApply"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("endpoint", "http://localhost:8080/api")

	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.waitBudget", 15*time.Second)
	v.SetDefault("http.retryMax", 1)
	v.SetDefault("http.retryBackoff", 500*time.Millisecond)

	v.SetDefault("paths.signIn", "/login")
	v.SetDefault("paths.register", "/register")
	v.SetDefault("paths.invitation", "/accept-invitation")
	v.SetDefault("paths.home", "/")
	v.SetDefault("paths.returnParam", "returnUrl")

	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.dir", defaultStoreDir())
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "hrsession")

	v.SetDefault("invitations.redeemOnRegister", false)
	v.SetDefault("invitations.autoApply", false)

	logDefaults := logging.Defaults()
	v.SetDefault("log.level", logDefaults.Level)
	v.SetDefault("log.encoding", logDefaults.Encoding)
	v.SetDefault("log.output", logDefaults.Output)
	v.SetDefault("log.path", logDefaults.Path)
	v.SetDefault("log.filename", logDefaults.Filename)
	v.SetDefault("log.rotateSize", logDefaults.RotateSize)
	v.SetDefault("log.rotateNum", logDefaults.RotateNum)
	v.SetDefault("log.keepDays", logDefaults.KeepDays)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if u, err := url.Parse(c.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Newf("endpoint %q is not an absolute URL", c.Endpoint)
	}
	if c.HTTP.WaitBudget <= 0 {
		return errors.New("http.waitBudget must be positive")
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Store.Dir == "" {
			return errors.New("store.dir is required for the file backend")
		}
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			return errors.New("store.redis.addr is required for the redis backend")
		}
	default:
		return errors.Newf("unknown store backend %q", c.Store.Backend)
	}
	if !strings.HasPrefix(c.Paths.SignIn, "/") {
		return errors.Newf("paths.signIn %q must be a relative path", c.Paths.SignIn)
	}
	return c.Log.Validate()
}

// Loader reads configuration and can follow changes of the config file.
type Loader struct {
	v      *viper.Viper
	path   string
	logger *zap.Logger
}

// NewLoader returns a loader for path. An empty path uses defaults and
// environment variables only.
func NewLoader(path string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
	}
	return &Loader{v: v, path: path, logger: logger}
}

// Load reads and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	if l.path != "" {
		if err := l.v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", l.path)
		}
	}
	return l.decode()
}

// Watch calls onChange with the reloaded configuration whenever the config
// file changes. Invalid revisions are logged and skipped.
func (l *Loader) Watch(onChange func(*Config)) error {
	if l.path == "" {
		return errors.New("no config file to watch")
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		l.logger.Info("configuration changed, reloading", zap.String("file", e.Name))
		cfg, err := l.decode()
		if err != nil {
			l.logger.Error("reload configuration", zap.Error(err))
			return
		}
		onChange(cfg)
	})
	l.v.WatchConfig()
	return nil
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return &cfg, nil
}

// Load is a shorthand for NewLoader(path, nil).Load().
func Load(path string) (*Config, error) {
	return NewLoader(path, nil).Load()
}
