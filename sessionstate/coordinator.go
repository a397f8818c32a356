package sessionstate

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/campustrack/authcore"
)

const (
	tokenKey   = "token"
	profileKey = "user"
)

// Config wires the coordinator's persistence mirrors and backend clients.
type Config struct {
	// Cookie is the TTL-bearing mirror. Required.
	Cookie Mirror
	// Local is the unrestricted mirror. Required.
	Local Mirror
	// Resolver hydrates a profile from a contact identifier. Required.
	Resolver authcore.ProfileResolver
	// Fetcher hydrates a profile from a recovered token. Required.
	Fetcher authcore.ProfileFetcher
	// CookieTTL bounds cookie mirror entries. Defaults to the session
	// token lifetime (21 days).
	CookieTTL time.Duration
	// Logger receives non-fatal hydration failures. Defaults to the
	// standard logger.
	Logger *log.Logger
}

// Seed is the input to [Coordinator.SetSession]: either a full profile
// (login response carried everything) or just a contact identifier that
// needs hydration.
type Seed struct {
	Contact string
	Profile *authcore.Profile
}

// State is a point-in-time copy of the coordinator's canonical session.
type State struct {
	Profile       *authcore.Profile
	Kind          authcore.ProfileKind
	Token         string
	Authenticated bool
}

// persistedProfile is the cookie mirror payload. Kind is stored for wire
// compatibility but always recomputed from the profile on restore.
type persistedProfile struct {
	Kind    authcore.ProfileKind `json:"userType"`
	Profile authcore.Profile     `json:"profile"`
}

// Coordinator is the single authority for client session state. The
// in-memory copy is canonical; the cookie and local-storage mirrors are
// write-through, best-effort derivations.
type Coordinator struct {
	cookie    Mirror
	local     Mirror
	resolver  authcore.ProfileResolver
	fetcher   authcore.ProfileFetcher
	cookieTTL time.Duration
	logger    *log.Logger

	// opMu serializes mutations end to end, including their network
	// calls, so an in-flight hydration cannot overwrite a newer login.
	opMu sync.Mutex

	// mu guards the canonical fields; held only for field access, never
	// across a network call.
	mu      sync.Mutex
	profile *authcore.Profile
	kind    authcore.ProfileKind
	token   string

	loading atomic.Bool
}

// New validates the configuration and returns an empty coordinator.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Cookie == nil || cfg.Local == nil {
		return nil, errors.New("both mirrors required")
	}
	if cfg.Resolver == nil || cfg.Fetcher == nil {
		return nil, errors.New("profile resolver and fetcher required")
	}
	if cfg.CookieTTL == 0 {
		cfg.CookieTTL = authcore.DefaultSessionTTL
	}
	if cfg.CookieTTL < 0 {
		return nil, errors.New("cookie TTL must not be negative")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	return &Coordinator{
		cookie:    cfg.Cookie,
		local:     cfg.Local,
		resolver:  cfg.Resolver,
		fetcher:   cfg.Fetcher,
		cookieTTL: cfg.CookieTTL,
		logger:    cfg.Logger,
	}, nil
}

// Loading reports whether an asynchronous mutation is in flight. It is
// deasserted on every exit path.
func (c *Coordinator) Loading() bool {
	return c.loading.Load()
}

// Snapshot returns a copy of the canonical session state.
func (c *Coordinator) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := State{
		Kind:          c.kind,
		Token:         c.token,
		Authenticated: c.profile != nil,
	}
	if c.profile != nil {
		copied := *c.profile
		state.Profile = &copied
	}
	return state
}

// SetSession installs a session after an explicit login or signup.
//
// A non-empty token is persisted to both mirrors immediately, before any
// hydration is attempted; a hydration failure leaves the token mirrors
// as-is. A seed carrying only a contact identifier is hydrated through the
// resolver; on failure the coordinator ends empty (profile cleared), and
// the error is returned for logging. A seed with full profile data is
// adopted directly.
func (c *Coordinator) SetSession(ctx context.Context, seed Seed, token string) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.loading.Store(true)
	defer c.loading.Store(false)

	if token != "" {
		c.mu.Lock()
		c.token = token
		c.mu.Unlock()
		c.cookie.Set(tokenKey, token, c.cookieTTL)
		c.local.Set(tokenKey, token, 0)
	}

	if seed.Profile != nil {
		c.adopt(*seed.Profile)
		return nil
	}

	if seed.Contact == "" {
		c.mu.Lock()
		c.profile = nil
		c.kind = ""
		c.mu.Unlock()
		return nil
	}

	contact, err := authcore.NormalizeContact(seed.Contact)
	if err != nil {
		return err
	}
	email, phone := authcore.SplitContact(contact)

	resolved, err := c.resolver.ResolveByContact(ctx, email, phone)
	if err != nil {
		c.logger.Printf("sessionstate: profile hydration failed: %v", err)
		c.mu.Lock()
		c.profile = nil
		c.kind = ""
		c.mu.Unlock()
		return err
	}

	c.adopt(resolved.Profile)
	return nil
}

// Refresh re-resolves the held profile by its contact identifier. Success
// replaces the profile and cookie mirror in a single state update; failure
// is logged and leaves the session unchanged. A coordinator without a
// profile is a no-op.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.loading.Store(true)
	defer c.loading.Store(false)

	c.mu.Lock()
	held := c.profile
	c.mu.Unlock()
	if held == nil || held.Contact() == "" {
		return nil
	}

	resolved, err := c.resolver.ResolveByContact(ctx, held.Email, held.Phone)
	if err != nil {
		c.logger.Printf("sessionstate: refresh failed: %v", err)
		return err
	}

	c.adopt(resolved.Profile)
	return nil
}

// HydrateFromStorage restores a session from the mirrors at client start.
//
// With no in-memory profile, a cookie-mirrored profile is parsed first; a
// malformed payload deletes the cookie entry and hydration proceeds as
// empty. A token is then recovered with in-memory > cookie > local-storage
// precedence. When a token exists and no profile was restored, the fetcher
// is called; success populates the session and writes through to the
// cookie mirror, any failure (including an authorization rejection) empties
// the coordinator and deletes token and profile from both mirrors.
func (c *Coordinator) HydrateFromStorage(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.loading.Store(true)
	defer c.loading.Store(false)

	c.mu.Lock()
	haveProfile := c.profile != nil
	recovered := c.token
	c.mu.Unlock()

	if !haveProfile {
		if raw, ok := c.cookie.Get(profileKey); ok {
			var persisted persistedProfile
			if err := json.Unmarshal([]byte(raw), &persisted); err != nil {
				c.cookie.Delete(profileKey)
			} else {
				restored := persisted.Profile
				c.mu.Lock()
				c.profile = &restored
				c.kind = restored.Kind()
				c.mu.Unlock()
				haveProfile = true
			}
		}
	}

	if recovered == "" {
		if v, ok := c.cookie.Get(tokenKey); ok {
			recovered = v
		} else if v, ok := c.local.Get(tokenKey); ok {
			recovered = v
		}
	}

	if recovered == "" || haveProfile {
		if recovered != "" {
			c.mu.Lock()
			c.token = recovered
			c.mu.Unlock()
		}
		return nil
	}

	fetched, err := c.fetcher.FetchByToken(ctx, recovered)
	if err != nil {
		c.logger.Printf("sessionstate: authenticated fetch failed: %v", err)
		c.reset()
		return err
	}

	c.mu.Lock()
	c.token = recovered
	c.mu.Unlock()
	c.adopt(fetched)
	return nil
}

// Clear empties the session and deletes token and profile from both
// mirrors. Idempotent.
func (c *Coordinator) Clear() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.reset()
}

// adopt installs profile and its derived kind as one state update and
// writes through to the cookie mirror.
func (c *Coordinator) adopt(profile authcore.Profile) {
	kind := profile.Kind()

	c.mu.Lock()
	c.profile = &profile
	c.kind = kind
	c.mu.Unlock()

	if payload, err := json.Marshal(persistedProfile{Kind: kind, Profile: profile}); err == nil {
		c.cookie.Set(profileKey, string(payload), c.cookieTTL)
	}
}

func (c *Coordinator) reset() {
	c.mu.Lock()
	c.profile = nil
	c.kind = ""
	c.token = ""
	c.mu.Unlock()

	c.cookie.Delete(tokenKey)
	c.cookie.Delete(profileKey)
	c.local.Delete(tokenKey)
	c.local.Delete(profileKey)
}
