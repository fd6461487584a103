package otpgate

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/hexleaf/otpgate/internal"
	"github.com/hexleaf/otpgate/internal/limiters"
	"github.com/hexleaf/otpgate/internal/stores"
)

// RequestCode generates a fresh code for (identity, purpose), stores it, and
// hands it to the notifier. While a still-valid code is outstanding it
// returns [*AlreadySentError]; a delivery failure rolls the stored code back
// and returns [ErrDeliveryFailed] so the caller may request again
// immediately.
//
// For [PurposePasswordReset] an unknown identity yields a plausible success
// (no code stored, nothing delivered) so the endpoint cannot be used to
// enumerate accounts.
func (e *Engine) RequestCode(ctx context.Context, identity string, purpose Purpose) (*CodeIssue, error) {
	return e.issueCode(ctx, identity, purpose, false)
}

// ResendCode replaces any outstanding code for (identity, purpose) with a
// fresh one, discarding prior attempts and any open lockout. Unlike
// [Engine.RequestCode] it does not reject while a valid code is outstanding;
// both share the per-window send cap.
func (e *Engine) ResendCode(ctx context.Context, identity string, purpose Purpose) (*CodeIssue, error) {
	return e.issueCode(ctx, identity, purpose, true)
}

func (e *Engine) issueCode(ctx context.Context, identity string, purpose Purpose, resend bool) (*CodeIssue, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	event := auditEventCodeRequest
	metric := MetricCodeRequested
	if resend {
		event = auditEventCodeResend
		metric = MetricCodeResent
	}

	identity = normalizeIdentity(identity)
	if identity == "" {
		e.emitAudit(ctx, event, false, "", purpose, ErrValidation, func() map[string]string {
			return map[string]string{"reason": "empty_identity"}
		})
		return nil, ErrValidation
	}

	policy, ok := e.config.policyFor(purpose)
	if !ok {
		e.emitAudit(ctx, event, false, identity, purpose, ErrUnknownPurpose, nil)
		return nil, ErrUnknownPurpose
	}

	masked, err := e.checkPurposeApplies(ctx, identity, purpose)
	if err != nil {
		e.emitAudit(ctx, event, false, identity, purpose, err, nil)
		return nil, err
	}
	if masked {
		// Unknown identity on password reset: respond as if a code went
		// out, burning comparable time, and store nothing.
		if err := sleepEnumerationDelay(ctx); err != nil {
			return nil, err
		}
		if _, err := generateCode(policy); err != nil {
			return nil, ErrUnavailable
		}
		e.metricInc(MetricEnumerationMasked)
		e.emitAudit(ctx, event, true, identity, purpose, nil, func() map[string]string {
			return map[string]string{"enumeration_safe": "true"}
		})
		return &CodeIssue{ExpiresAt: time.Now().Add(policy.TTL)}, nil
	}

	now := time.Now()

	if !resend {
		current, err := e.store.Get(ctx, identity, purpose.String())
		switch {
		case err == nil:
			if remaining := time.Unix(current.ExpiresAt, 0).Sub(now); remaining > 0 {
				e.emitAudit(ctx, event, false, identity, purpose, ErrAlreadySent, func() map[string]string {
					return map[string]string{"retry_after": remaining.Round(time.Second).String()}
				})
				return nil, &AlreadySentError{RetryAfter: remaining}
			}
		case errors.Is(err, stores.ErrCodeNotFound):
		default:
			e.emitAudit(ctx, event, false, identity, purpose, ErrUnavailable, nil)
			return nil, ErrUnavailable
		}
	}

	if err := e.limiter.Allow(ctx, identity, purpose.String()); err != nil {
		if errors.Is(err, limiters.ErrIssuanceLimited) {
			e.emitRateLimit(ctx, event, identity, purpose)
			return nil, ErrRateLimited
		}
		e.emitAudit(ctx, event, false, identity, purpose, ErrUnavailable, nil)
		return nil, ErrUnavailable
	}

	code, err := generateCode(policy)
	if err != nil {
		e.emitAudit(ctx, event, false, identity, purpose, ErrUnavailable, func() map[string]string {
			return map[string]string{"reason": "generation_failed"}
		})
		return nil, ErrUnavailable
	}

	expiresAt := now.Add(policy.TTL)
	rec := &stores.CodeRecord{
		ID:        uuid.New(),
		CodeHash:  internal.HashCode(code),
		IssuedAt:  now.Unix(),
		ExpiresAt: expiresAt.Unix(),
	}
	if err := e.store.Put(ctx, identity, purpose.String(), rec, e.config.Sweep.ExpiredRetention); err != nil {
		e.emitAudit(ctx, event, false, identity, purpose, ErrUnavailable, nil)
		return nil, ErrUnavailable
	}

	if err := e.deliver(ctx, identity, Delivery{Code: code, Purpose: purpose, ExpiresAt: expiresAt}); err != nil {
		// Roll back so the already-sent gate does not trap the user behind
		// a code they never received. Conditional on the record ID: a
		// concurrent resend must not lose its fresh code here.
		rollbackErr := e.store.Delete(ctx, identity, purpose.String(), rec.ID)
		e.metricInc(MetricDeliveryFailed)
		e.emitAudit(ctx, auditEventDeliveryRollback, false, identity, purpose, ErrDeliveryFailed, func() map[string]string {
			md := map[string]string{"detail": err.Error()}
			if rollbackErr != nil {
				// The record is stuck until it expires; surface that.
				md["rollback_error"] = rollbackErr.Error()
			}
			return md
		})
		return nil, ErrDeliveryFailed
	}

	e.metricInc(metric)
	e.metricInc(MetricCodeDelivered)
	e.emitAudit(ctx, event, true, identity, purpose, nil, nil)
	return &CodeIssue{ExpiresAt: expiresAt}, nil
}

// checkPurposeApplies enforces which purposes make sense for the identity.
// The second return requests enumeration masking instead of an error.
func (e *Engine) checkPurposeApplies(ctx context.Context, identity string, purpose Purpose) (bool, error) {
	rec, err := e.identities.GetByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, err
		}
		if !errors.Is(err, ErrIdentityNotFound) {
			return false, ErrUnavailable
		}
		switch purpose {
		case PurposePasswordReset:
			return true, nil
		case PurposeLoginVerification:
			return false, ErrIdentityInvalid
		default:
			// Unknown identity may verify an email or register.
			return false, nil
		}
	}

	switch purpose {
	case PurposeEmailVerification, PurposeRegistration:
		if rec.Verified {
			return false, ErrIdentityInvalid
		}
	}
	return false, nil
}

func (e *Engine) deliver(ctx context.Context, identity string, d Delivery) error {
	ctx, cancel := context.WithTimeout(ctx, e.config.Notify.Timeout)
	defer cancel()
	return e.notifier.Deliver(ctx, identity, d)
}

func generateCode(policy CodePolicy) (string, error) {
	switch policy.Alphabet {
	case AlphabetUnambiguous:
		return internal.NewAlphaCode(policy.Length)
	case AlphabetHex:
		return internal.NewHexCode(policy.Length)
	default:
		return internal.NewNumericCode(policy.Length)
	}
}

func alphabetChars(a Alphabet) string {
	switch a {
	case AlphabetUnambiguous:
		return internal.UnambiguousAlphabet
	case AlphabetHex:
		return "0123456789ABCDEF"
	default:
		return "0123456789"
	}
}

// sleepEnumerationDelay burns 20–40 ms so the masked path is not separable
// from a real issue by response timing.
func sleepEnumerationDelay(ctx context.Context) error {
	minMs := int64(20)
	maxMs := int64(40)
	span := maxMs - minMs + 1

	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return err
	}

	timer := time.NewTimer(time.Duration(minMs+n.Int64()) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
