package authcore

import (
	"errors"
	"time"
)

// Config holds the full engine configuration. It is read once by Build and
// treated as immutable afterwards; zero fields take engine defaults.
type Config struct {
	Challenge ChallengeConfig
	Token     TokenConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
CHALLENGE CONFIG
====================================
*/

// ChallengeConfig controls OTP challenge issuance and verification.
type ChallengeConfig struct {
	// Digits is the code length. Defaults to 6.
	Digits int
	// TTL is the window in which a challenge can be verified. Defaults to
	// 5 minutes.
	TTL time.Duration
	// Cooldown is the minimum spacing between two issuances for the same
	// contact. Defaults to 60 seconds.
	Cooldown time.Duration
	// Retention keeps an expired challenge visible in the store past its
	// expiry so verification can report expiry instead of a miss. The
	// backing Redis TTL is TTL+Retention. Defaults to 1 hour.
	Retention time.Duration
	// RedisPrefix namespaces challenge keys. Defaults to "otp".
	RedisPrefix string
	// EchoCode returns the issued code to the caller. Development shortcut:
	// production deployments set this false and wire a CodeSender.
	EchoCode bool
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls session token issuance. Tokens are stateless: there
// is no revocation list, logout is a client-side discard.
type TokenConfig struct {
	// Secret is the HS256 signing secret. Required.
	Secret []byte
	// TTL is the fixed token lifetime from issuance. Defaults to 21 days.
	TTL time.Duration
	// Issuer is the optional iss claim.
	Issuer string
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher. With DropIfFull set,
// events past the buffer are counted and discarded instead of blocking the
// hot path.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultSessionTTL is the fixed session token lifetime.
const DefaultSessionTTL = 21 * 24 * time.Hour

func defaultConfig() Config {
	return Config{
		Challenge: ChallengeConfig{
			Digits:      6,
			TTL:         5 * time.Minute,
			Cooldown:    60 * time.Second,
			Retention:   time.Hour,
			RedisPrefix: "otp",
			EchoCode:    true,
		},
		Token: TokenConfig{
			TTL: DefaultSessionTTL,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func (c *Config) applyDefaults() {
	d := defaultConfig()
	if c.Challenge.Digits == 0 {
		c.Challenge.Digits = d.Challenge.Digits
	}
	if c.Challenge.TTL == 0 {
		c.Challenge.TTL = d.Challenge.TTL
	}
	if c.Challenge.Cooldown == 0 {
		c.Challenge.Cooldown = d.Challenge.Cooldown
	}
	if c.Challenge.Retention == 0 {
		c.Challenge.Retention = d.Challenge.Retention
	}
	if c.Challenge.RedisPrefix == "" {
		c.Challenge.RedisPrefix = d.Challenge.RedisPrefix
	}
	if c.Token.TTL == 0 {
		c.Token.TTL = d.Token.TTL
	}
	if c.Audit.BufferSize == 0 {
		c.Audit.BufferSize = d.Audit.BufferSize
	}
}

func (c *Config) validate() error {
	if c.Challenge.Digits < 6 || c.Challenge.Digits > 10 {
		return errors.New("challenge digits must be between 6 and 10")
	}
	if c.Challenge.TTL <= 0 {
		return errors.New("challenge TTL must be positive")
	}
	if c.Challenge.Cooldown <= 0 {
		return errors.New("challenge cooldown must be positive")
	}
	if c.Challenge.Cooldown >= c.Challenge.TTL {
		return errors.New("challenge cooldown must be shorter than challenge TTL")
	}
	if c.Challenge.Retention < 0 {
		return errors.New("challenge retention must not be negative")
	}
	if c.Token.TTL <= 0 {
		return errors.New("token TTL must be positive")
	}
	return nil
}
