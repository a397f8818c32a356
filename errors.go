package authcore

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineNotReady reports an Engine used before Build wired its
	// dependencies.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrContactInvalid reports a missing or malformed contact identifier.
	ErrContactInvalid = errors.New("contact identifier required")
	// ErrCodeInvalid reports a submitted code that is not a well-formed
	// numeric code of the configured length.
	ErrCodeInvalid = errors.New("malformed challenge code")
	// ErrAccountExists reports a signup challenge request for a contact that
	// already has an account.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountNotFound reports a login challenge request for a contact
	// with no account.
	ErrAccountNotFound = errors.New("account not found")
	// ErrDuplicateContact reports a concurrent uniqueness violation during
	// account creation.
	ErrDuplicateContact = errors.New("duplicate contact")
	// ErrChallengeThrottled reports an issuance attempt inside the
	// per-contact cooldown window.
	ErrChallengeThrottled = errors.New("challenge request throttled")
	// ErrChallengeInvalid reports a verification attempt with a wrong code
	// or no live challenge for the contact.
	ErrChallengeInvalid = errors.New("invalid challenge code")
	// ErrChallengeExpired reports a verification attempt after the
	// challenge's expiry instant.
	ErrChallengeExpired = errors.New("challenge expired")
	// ErrChallengeUnavailable reports a challenge store backend failure.
	ErrChallengeUnavailable = errors.New("challenge backend unavailable")
	// ErrProfileNotFound reports a contact with no matching teacher or
	// student profile.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrUnauthorized reports a missing, malformed, expired, or orphaned
	// session token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNoSigningSecret reports a token issuer configured without a
	// signing secret. This is a deployment fault, not a user error.
	ErrNoSigningSecret = errors.New("session token signing secret not configured")
)

// ThrottledRetryError wraps [ErrChallengeThrottled] with the number of whole
// seconds the caller must wait before requesting a new challenge.
type ThrottledRetryError struct {
	WaitSeconds int
}

func (e *ThrottledRetryError) Error() string {
	return fmt.Sprintf("wait %ds before requesting new OTP", e.WaitSeconds)
}

func (e *ThrottledRetryError) Unwrap() error {
	return ErrChallengeThrottled
}
