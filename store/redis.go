package store

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vaintrub/hrsession/models"
)

// DefaultRedisPrefix namespaces the keys written by the Redis store.
const DefaultRedisPrefix = "hrsession"

// Redis persists the session in three keys sharing a prefix and publishes a
// message on <prefix>:events after every mutation, so other processes that
// share the prefix can re-seed their session state.
type Redis struct {
	rdb    redis.UniversalClient
	prefix string
	logger *zap.Logger
}

var (
	_ Store   = (*Redis)(nil)
	_ Watcher = (*Redis)(nil)
)

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithRedisPrefix overrides DefaultRedisPrefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithRedisLogger sets the logger used to report unreadable snapshots.
func WithRedisLogger(l *zap.Logger) RedisOption {
	return func(r *Redis) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRedis wraps an existing client. The caller owns the client's lifecycle.
func NewRedis(rdb redis.UniversalClient, opts ...RedisOption) (*Redis, error) {
	if rdb == nil {
		return nil, &FieldError{Field: "client", Message: "cannot be nil"}
	}
	r := &Redis{
		rdb:    rdb,
		prefix: DefaultRedisPrefix,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Redis) tokenKey() string      { return r.prefix + ":token" }
func (r *Redis) userKey() string       { return r.prefix + ":user" }
func (r *Redis) invitationKey() string { return r.prefix + ":invitation" }
func (r *Redis) channel() string       { return r.prefix + ":events" }

func (r *Redis) Read(ctx context.Context) (*models.Credential, error) {
	vals, err := r.rdb.MGet(ctx, r.tokenKey(), r.userKey()).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis read credential")
	}

	tok, _ := vals[0].(string)
	raw, _ := vals[1].(string)
	if tok == "" || raw == "" {
		return nil, nil
	}

	var user models.UserSnapshot
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		r.logger.Warn("discarding malformed user snapshot", zap.String("key", r.userKey()), zap.Error(err))
		return nil, nil
	}
	return &models.Credential{Token: tok, User: &user}, nil
}

func (r *Redis) Write(ctx context.Context, cred models.Credential) error {
	if err := validCredential(cred); err != nil {
		return err
	}
	raw, err := json.Marshal(cred.User)
	if err != nil {
		return errors.Wrap(err, "encode user snapshot")
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.tokenKey(), cred.Token, 0)
		pipe.Set(ctx, r.userKey(), raw, 0)
		pipe.Publish(ctx, r.channel(), "write")
		return nil
	})
	return errors.Wrap(err, "redis write credential")
}

func (r *Redis) Clear(ctx context.Context) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.tokenKey(), r.userKey(), r.invitationKey())
		pipe.Publish(ctx, r.channel(), "clear")
		return nil
	})
	return errors.Wrap(err, "redis clear credential")
}

func (r *Redis) PutPendingInvitation(ctx context.Context, token string) error {
	if token == "" {
		return errors.Wrap(r.rdb.Del(ctx, r.invitationKey()).Err(), "redis clear pending invitation")
	}
	return errors.Wrap(r.rdb.Set(ctx, r.invitationKey(), token, 0).Err(), "redis put pending invitation")
}

func (r *Redis) PendingInvitation(ctx context.Context) (string, error) {
	token, err := r.rdb.Get(ctx, r.invitationKey()).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return token, errors.Wrap(err, "redis get pending invitation")
}

// TakePendingInvitation uses GETDEL so two processes cannot both redeem the carry.
func (r *Redis) TakePendingInvitation(ctx context.Context) (string, error) {
	token, err := r.rdb.GetDel(ctx, r.invitationKey()).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return token, errors.Wrap(err, "redis take pending invitation")
}

// Watch subscribes to the mutation channel shared by every process using this prefix.
func (r *Redis) Watch(ctx context.Context) (<-chan struct{}, error) {
	sub := r.rdb.Subscribe(ctx, r.channel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, errors.Wrap(err, "redis subscribe")
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		defer func() { _ = sub.Close() }()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				notify(ch)
			}
		}
	}()
	return ch, nil
}
