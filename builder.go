package authcore

import (
	"errors"

	"github.com/campustrack/authcore/token"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Construction is allocation-only: no I/O
// happens until the first Engine call.
type Builder struct {
	config    Config
	redis     *redis.Client
	directory AccountDirectory
	sender    CodeSender
	auditSink AuditSink

	built bool
}

// New returns a Builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the builder's configuration. Zero-valued fields are
// filled from defaults during Build.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the Redis client backing the challenge store. Required.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithDirectory sets the account directory collaborator. Required.
func (b *Builder) WithDirectory(dir AccountDirectory) *Builder {
	b.directory = dir
	return b
}

// WithCodeSender sets the out-of-band code delivery hook. Optional; without
// one, EchoCode is the only way a code reaches the user.
func (b *Builder) WithCodeSender(s CodeSender) *Builder {
	b.sender = s
	return b
}

// WithAuditSink sets the audit event sink. Optional.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// Build validates the configuration, wires the stores, and returns a ready
// Engine. A missing token signing secret fails with [ErrNoSigningSecret];
// that is a deployment fault and should abort startup.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already consumed")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.directory == nil {
		return nil, errors.New("account directory required")
	}

	cfg := b.config
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	tokens, err := token.NewManager(token.Config{
		Secret: cfg.Token.Secret,
		TTL:    cfg.Token.TTL,
		Issuer: cfg.Token.Issuer,
	})
	if err != nil {
		if errors.Is(err, token.ErrMissingSecret) {
			return nil, ErrNoSigningSecret
		}
		return nil, err
	}

	engine := &Engine{
		config:    cfg,
		store:     newChallengeStore(b.redis, cfg.Challenge),
		directory: b.directory,
		tokens:    tokens,
		sender:    b.sender,
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:   NewMetrics(cfg.Metrics),
	}

	b.built = true
	return engine, nil
}
