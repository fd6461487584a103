package otpgate

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventCodeRequest      = "code_request"
	auditEventCodeResend       = "code_resend"
	auditEventCodeVerify       = "code_verify"
	auditEventRateLimitHit     = "rate_limit_triggered"
	auditEventSweepCompleted   = "expiry_sweep"
	auditEventDeliveryRollback = "delivery_rollback"
)

// auditErrorCode maps engine errors to stable codes so sinks never have to
// parse error strings.
func auditErrorCode(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrUnknownPurpose):
		return "unknown_purpose"
	case errors.Is(err, ErrAlreadySent):
		return "already_sent"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrCodeExpired):
		return "code_expired"
	case errors.Is(err, ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, ErrTooManyAttempts):
		return "too_many_attempts"
	case errors.Is(err, ErrDeliveryFailed):
		return "delivery_failed"
	case errors.Is(err, ErrIdentityInvalid):
		return "identity_invalid_for_purpose"
	case errors.Is(err, ErrEngineNotReady):
		return "engine_not_ready"
	default:
		return "unavailable"
	}
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	identity string,
	purpose Purpose,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Identity:  identity,
		Purpose:   string(purpose),
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		event.Error = auditErrorCode(err)
		if metadata == nil {
			event.Metadata = map[string]string{"detail": err.Error()}
		} else if _, ok := metadata["detail"]; !ok {
			metadata["detail"] = err.Error()
		}
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope string, identity string, purpose Purpose) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitHit, false, identity, purpose, nil, func() map[string]string {
		return map[string]string{"scope": scope}
	})
}
