package authkit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/devmoa/authkit/internal/rate"
	"github.com/devmoa/authkit/jwt"
	"github.com/devmoa/authkit/password"
	"github.com/devmoa/authkit/session"
)

// Builder assembles an Engine. Redis and a UserStore are mandatory; every
// other collaborator has a usable default.
type Builder struct {
	config    Config
	configSet bool
	redis     redis.UniversalClient
	users     UserStore
	mailer    Mailer
	auditSink AuditSink
	warn      func(format string, args ...any)
}

func New() *Builder {
	return &Builder{}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	b.configSet = true
	return b
}

func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithWarnFunc sets the hook for non-fatal anomalies (for example a failed
// password rehash after login). Printf-style.
func (b *Builder) WithWarnFunc(fn func(format string, args ...any)) *Builder {
	b.warn = fn
	return b
}

// Build validates the configuration, constructs every subsystem, and returns
// a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.redis == nil {
		return nil, errors.New("builder: redis client is required")
	}
	if b.users == nil {
		return nil, errors.New("builder: user store is required")
	}

	cfg := b.config
	if !b.configSet {
		cfg = DefaultConfig()
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	tokens, err := jwt.NewManager(jwt.Config{
		Secret:    cfg.JWT.Secret,
		AccessTTL: cfg.JWT.AccessTTL,
		Issuer:    cfg.JWT.Issuer,
		Leeway:    cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	mailer := b.mailer
	if mailer == nil {
		mailer = noopMailer{}
	}

	return &Engine{
		config:    cfg,
		users:     b.users,
		mailer:    mailer,
		passwords: hasher,
		tokens:    tokens,
		sessions:  session.NewStore(b.redis, cfg.Session.KeyPrefix),
		retry: rate.New(b.redis, rate.Config{
			EnableThrottle: cfg.Retry.EnableThrottle,
			MaxPerWindow:   cfg.Retry.MaxPerWindow,
			Window:         cfg.Retry.Window,
		}),
		audit:   newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		warn:    b.warn,
		now:     time.Now,
	}, nil
}

type noopMailer struct{}

func (noopMailer) Send(context.Context, string, string) error { return nil }
