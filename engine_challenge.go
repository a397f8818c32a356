package authcore

import (
	"context"
	"errors"

	"github.com/campustrack/authcore/internal"
)

// RequestChallenge issues a fresh OTP challenge for contact and returns the
// code. Flow gating runs first: a signup request for an existing account
// fails with [ErrAccountExists], a login request for a missing account with
// [ErrAccountNotFound]. Issuing again within the cooldown window fails with
// a [ThrottledRetryError].
//
// The new challenge unconditionally replaces any prior challenge for the
// contact; at most one unverified challenge per contact exists at any time.
//
// The returned code is only populated when Config.Challenge.EchoCode is set
// (development shortcut). With a [CodeSender] configured the code is
// delivered out of band instead.
func (e *Engine) RequestChallenge(ctx context.Context, contact string, action ChallengeAction) (string, error) {
	if e == nil || e.store == nil || e.directory == nil {
		return "", ErrEngineNotReady
	}

	normalized, err := NormalizeContact(contact)
	if err != nil {
		e.emitAudit(ctx, auditEventChallengeRequest, false, contact, "", err, nil)
		return "", err
	}

	_, lookupErr := e.directory.FindByContact(ctx, normalized)
	switch {
	case lookupErr == nil:
		if action == ActionSignup {
			e.emitAudit(ctx, auditEventChallengeRequest, false, normalized, "", ErrAccountExists, nil)
			return "", ErrAccountExists
		}
	case errors.Is(lookupErr, ErrAccountNotFound):
		if action == ActionLogin {
			e.emitAudit(ctx, auditEventChallengeRequest, false, normalized, "", ErrAccountNotFound, nil)
			return "", ErrAccountNotFound
		}
	default:
		e.emitAudit(ctx, auditEventChallengeRequest, false, normalized, "", lookupErr, nil)
		return "", lookupErr
	}

	code, err := internal.NewOTP(e.config.Challenge.Digits)
	if err != nil {
		e.emitAudit(ctx, auditEventChallengeRequest, false, normalized, "", ErrChallengeUnavailable, func() map[string]string {
			return map[string]string{
				"reason": "generation_failed",
			}
		})
		return "", ErrChallengeUnavailable
	}

	wait, err := e.store.Issue(ctx, normalized, code)
	if err != nil {
		if errors.Is(err, errChallengeCooldown) {
			e.metricInc(MetricChallengeThrottled)
			e.emitAudit(ctx, auditEventChallengeRequest, false, normalized, "", ErrChallengeThrottled, func() map[string]string {
				return map[string]string{
					"action": string(action),
				}
			})
			return "", &ThrottledRetryError{WaitSeconds: wait}
		}
		e.emitAudit(ctx, auditEventChallengeRequest, false, normalized, "", ErrChallengeUnavailable, nil)
		return "", ErrChallengeUnavailable
	}

	e.metricInc(MetricChallengeIssued)
	e.emitAudit(ctx, auditEventChallengeRequest, true, normalized, "", nil, func() map[string]string {
		return map[string]string{
			"action": string(action),
		}
	})

	if e.sender != nil {
		if sendErr := e.sender.SendCode(ctx, normalized, code); sendErr != nil {
			// Delivery is best-effort; the challenge stays live and the
			// cooldown still applies.
			e.emitAudit(ctx, auditEventChallengeRequest, false, normalized, "", sendErr, func() map[string]string {
				return map[string]string{
					"reason": "delivery_failed",
				}
			})
		}
	}

	if !e.config.Challenge.EchoCode {
		return "", nil
	}
	return code, nil
}

// VerifyChallenge checks a submitted code against the live challenge for
// contact. A wrong code (or no live challenge) fails with
// [ErrChallengeInvalid] and increments the challenge's attempt counter when
// one exists. A correct code past the expiry instant fails with
// [ErrChallengeExpired] and leaves the record in place. On success the
// challenge is deleted in the same atomic step; a second verification with
// the same code fails.
func (e *Engine) VerifyChallenge(ctx context.Context, contact, code string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	normalized, err := NormalizeContact(contact)
	if err != nil {
		e.emitAudit(ctx, auditEventChallengeVerify, false, contact, "", err, nil)
		return err
	}
	if err := e.checkCode(code); err != nil {
		e.metricInc(MetricChallengeInvalid)
		e.emitAudit(ctx, auditEventChallengeVerify, false, normalized, "", err, nil)
		return err
	}

	if err := e.store.Consume(ctx, normalized, code); err != nil {
		switch {
		case errors.Is(err, errChallengeRecordExpired):
			e.metricInc(MetricChallengeExpired)
			e.emitAudit(ctx, auditEventChallengeVerify, false, normalized, "", ErrChallengeExpired, nil)
			return ErrChallengeExpired
		case errors.Is(err, errChallengeNotFound), errors.Is(err, errChallengeCodeMismatch):
			e.metricInc(MetricChallengeInvalid)
			e.emitAudit(ctx, auditEventChallengeVerify, false, normalized, "", ErrChallengeInvalid, nil)
			return ErrChallengeInvalid
		default:
			e.emitAudit(ctx, auditEventChallengeVerify, false, normalized, "", ErrChallengeUnavailable, nil)
			return ErrChallengeUnavailable
		}
	}

	e.metricInc(MetricChallengeVerified)
	e.emitAudit(ctx, auditEventChallengeVerify, true, normalized, "", nil, nil)
	return nil
}

// Authenticate completes a challenge: it verifies the submitted code,
// resolves the principal for contact (creating one on the signup flow), and
// mints a session token bound to it. The challenge is consumed even when
// the later principal or token step fails; the caller must request a new
// code to retry.
func (e *Engine) Authenticate(ctx context.Context, contact, code string, action ChallengeAction) (*AuthResult, error) {
	if e == nil || e.store == nil || e.directory == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	normalized, err := NormalizeContact(contact)
	if err != nil {
		return nil, err
	}

	if err := e.VerifyChallenge(ctx, normalized, code); err != nil {
		return nil, err
	}

	created := false
	principal, err := e.directory.FindByContact(ctx, normalized)
	switch {
	case err == nil:
	case errors.Is(err, ErrAccountNotFound):
		if action == ActionLogin {
			return nil, ErrAccountNotFound
		}
		principal, err = e.directory.Create(ctx, normalized)
		if err != nil {
			e.emitAudit(ctx, auditEventAccountCreate, false, normalized, "", err, nil)
			return nil, err
		}
		created = true
		e.metricInc(MetricAccountCreated)
		e.emitAudit(ctx, auditEventAccountCreate, true, normalized, principal.ID, nil, nil)
	default:
		return nil, err
	}

	minted, err := e.IssueToken(ctx, principal.ID)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		Principal: principal,
		Token:     minted,
		Created:   created,
	}, nil
}
