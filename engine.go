package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/campustrack/authcore/token"
)

// Engine is the authentication core: it issues and verifies OTP challenges
// and mints session tokens. Build one with [Builder]; an Engine is immutable
// after Build and safe for concurrent use.
type Engine struct {
	config    Config
	store     *challengeStore
	directory AccountDirectory
	tokens    *token.Manager
	sender    CodeSender
	audit     *auditDispatcher
	metrics   *Metrics
}

// Close flushes and stops background workers. Safe on a nil receiver.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports audit events discarded because the dispatch buffer
// was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// ValidateToken checks a bearer session token and resolves the bound
// principal. It fails with [ErrUnauthorized] when the token is missing,
// malformed, tampered, expired, or when the principal no longer exists.
func (e *Engine) ValidateToken(ctx context.Context, raw string) (Principal, error) {
	if e == nil || e.tokens == nil || e.directory == nil {
		return Principal{}, ErrEngineNotReady
	}

	principalID, err := e.tokens.Validate(raw)
	if err != nil {
		e.metricInc(MetricTokenRejected)
		e.emitAudit(ctx, auditEventTokenValidate, false, "", "", ErrUnauthorized, nil)
		return Principal{}, ErrUnauthorized
	}

	principal, err := e.directory.FindByID(ctx, principalID)
	if err != nil {
		e.metricInc(MetricTokenRejected)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Principal{}, err
		}
		e.emitAudit(ctx, auditEventTokenValidate, false, "", principalID, ErrUnauthorized, func() map[string]string {
			return map[string]string{
				"reason": "principal_gone",
			}
		})
		return Principal{}, ErrUnauthorized
	}

	return principal, nil
}

// IssueToken mints a session token bound to principalID without a challenge
// verification. Intended for trusted internal callers; the public flows go
// through [Engine.Authenticate].
func (e *Engine) IssueToken(ctx context.Context, principalID string) (string, error) {
	if e == nil || e.tokens == nil {
		return "", ErrEngineNotReady
	}

	minted, err := e.tokens.Issue(principalID)
	if err != nil {
		e.emitAudit(ctx, auditEventTokenIssue, false, "", principalID, err, nil)
		return "", err
	}

	e.metricInc(MetricTokenIssued)
	e.emitAudit(ctx, auditEventTokenIssue, true, "", principalID, nil, nil)
	return minted, nil
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	contact, principalID string,
	failure error,
	metadata func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp:   time.Now(),
		EventType:   eventType,
		Contact:     contact,
		PrincipalID: principalID,
		Success:     success,
	}
	if failure != nil {
		event.Error = failure.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}

	e.audit.Emit(ctx, event)
}
