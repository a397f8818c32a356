package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingSecret reports a Manager configured without a signing
	// secret.
	ErrMissingSecret = errors.New("signing secret required")
	// ErrInvalidToken reports a missing, malformed, tampered, or expired
	// token.
	ErrInvalidToken = errors.New("invalid session token")
)

// DefaultTTL is the fixed session token lifetime from issuance.
const DefaultTTL = 21 * 24 * time.Hour

// Config holds the signing parameters for a Manager. It is read once by
// NewManager and never mutated afterwards.
type Config struct {
	// Secret is the HS256 signing secret. Required.
	Secret []byte
	// TTL is the token lifetime. Defaults to DefaultTTL.
	TTL time.Duration
	// Issuer is the optional iss claim, validated on parse when set.
	Issuer string
	// Leeway tolerates clock skew during validation. At most 2 minutes.
	Leeway time.Duration
}

// Manager mints and validates session tokens. A Manager is immutable after
// NewManager and safe for concurrent use.
type Manager struct {
	config Config
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

// NewManager validates the configuration and returns a ready Manager. It
// fails with [ErrMissingSecret] when no signing secret is configured.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrMissingSecret
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.TTL < 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Manager{config: cfg}, nil
}

// Issue mints a signed token bound to principalID with expiry
// now + configured TTL.
func (m *Manager) Issue(principalID string) (string, error) {
	if m == nil {
		return "", ErrMissingSecret
	}
	if principalID == "" {
		return "", errors.New("principal id required")
	}

	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
			Issuer:    m.config.Issuer,
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
}

// Validate checks signature and expiry and returns the bound principal id.
// Every failure mode collapses to [ErrInvalidToken]: callers must not be
// able to distinguish a tampered token from an expired one.
func (m *Manager) Validate(raw string) (string, error) {
	if m == nil || raw == "" {
		return "", ErrInvalidToken
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(raw, &sessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}
