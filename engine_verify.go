package otpgate

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/hexleaf/otpgate/internal"
	"github.com/hexleaf/otpgate/internal/stores"
)

// VerifyCode matches a submitted code against the outstanding record for
// (identity, purpose) and, on success, consumes the record and mints a
// credential scoped to the purpose.
//
// Outcomes, in evaluation order:
//   - no active record → [ErrNotFound] (never distinguishes never-sent from
//     consumed)
//   - record past expiry → [ErrCodeExpired], even when the submitted code
//     equals the stored one
//   - key locked out → [*LockedError]
//   - mismatch → [*InvalidCodeError]; the mismatch that exhausts the attempt
//     budget reports [*LockedError] instead
//   - match → record consumed, credential returned; a replay of the same
//     code then reports [ErrNotFound]
func (e *Engine) VerifyCode(ctx context.Context, identity, code string, purpose Purpose) (*VerifyResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	identity = normalizeIdentity(identity)
	if identity == "" {
		e.metricInc(MetricVerifyInvalid)
		e.emitAudit(ctx, auditEventCodeVerify, false, "", purpose, ErrValidation, func() map[string]string {
			return map[string]string{"reason": "empty_identity"}
		})
		return nil, ErrValidation
	}

	policy, ok := e.config.policyFor(purpose)
	if !ok {
		e.emitAudit(ctx, auditEventCodeVerify, false, identity, purpose, ErrUnknownPurpose, nil)
		return nil, ErrUnknownPurpose
	}

	// Shape check before any state is touched: a malformed submission is a
	// caller bug, not a guess, and must not burn an attempt.
	if len(code) != policy.Length || !internal.InAlphabet(code, alphabetChars(policy.Alphabet)) {
		e.metricInc(MetricVerifyInvalid)
		e.emitAudit(ctx, auditEventCodeVerify, false, identity, purpose, ErrValidation, func() map[string]string {
			return map[string]string{"reason": "code_shape"}
		})
		return nil, ErrValidation
	}

	rec, err := e.store.Verify(
		ctx,
		identity,
		purpose.String(),
		internal.HashCode(code),
		e.config.Lockout.MaxAttempts,
		e.config.Lockout.Duration,
		time.Now(),
	)
	if err != nil {
		mapped := e.mapVerifyError(err)
		e.emitAudit(ctx, auditEventCodeVerify, false, identity, purpose, mapped, nil)
		return nil, mapped
	}

	credential, expiresAt, err := e.tokens.Issue(identity, purpose.String(), policy.Tier)
	if err != nil {
		// The record is already consumed; surface generically and leave the
		// detail in the audit trail.
		e.emitAudit(ctx, auditEventCodeVerify, false, identity, purpose, ErrUnavailable, func() map[string]string {
			return map[string]string{"reason": "credential_mint_failed", "detail": err.Error()}
		})
		return nil, ErrUnavailable
	}

	e.metricInc(MetricVerifySuccess)
	e.metricInc(MetricCredentialIssued)
	e.emitAudit(ctx, auditEventCodeVerify, true, identity, purpose, nil, func() map[string]string {
		return map[string]string{
			"tier":     string(policy.Tier),
			"attempts": strconv.Itoa(int(rec.Attempts)),
		}
	})

	return &VerifyResult{
		Credential: credential,
		Tier:       policy.Tier,
		ExpiresAt:  expiresAt,
	}, nil
}

func (e *Engine) mapVerifyError(err error) error {
	var (
		locked   *stores.LockedError
		mismatch *stores.MismatchError
	)
	switch {
	case errors.Is(err, stores.ErrCodeNotFound):
		e.metricInc(MetricVerifyNotFound)
		return ErrNotFound
	case errors.Is(err, stores.ErrCodeExpired):
		e.metricInc(MetricVerifyExpired)
		return ErrCodeExpired
	case errors.As(err, &locked):
		e.metricInc(MetricVerifyLocked)
		retry := time.Until(locked.Until)
		if retry < 0 {
			retry = 0
		}
		return &LockedError{RetryAfter: retry}
	case errors.As(err, &mismatch):
		e.metricInc(MetricVerifyInvalid)
		return &InvalidCodeError{AttemptsLeft: mismatch.AttemptsLeft}
	default:
		return ErrUnavailable
	}
}
