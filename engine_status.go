package otpgate

import (
	"context"
	"errors"
	"time"

	"github.com/hexleaf/otpgate/internal/stores"
)

// CodeStatus reports the state of the outstanding code for (identity,
// purpose) without consuming an attempt. It is intended for operator
// tooling and UX hints (countdown timers, resend buttons); responses must
// never reach unauthenticated callers, since existence of a record is
// itself a signal.
//
// Returns [ErrNotFound] when no record is live, including records already
// purged by the sweeper.
func (e *Engine) CodeStatus(ctx context.Context, identity string, purpose Purpose) (*Status, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	identity = normalizeIdentity(identity)
	if identity == "" {
		return nil, ErrValidation
	}
	if _, ok := e.config.policyFor(purpose); !ok {
		return nil, ErrUnknownPurpose
	}

	rec, err := e.store.Get(ctx, identity, purpose.String())
	switch {
	case errors.Is(err, stores.ErrCodeNotFound):
		return nil, ErrNotFound
	case errors.Is(err, stores.ErrStoreUnavailable):
		return nil, ErrUnavailable
	case err != nil:
		return nil, ErrUnavailable
	}

	now := time.Now()
	status := &Status{
		Attempts:  int(rec.Attempts),
		IssuedAt:  time.Unix(rec.IssuedAt, 0),
		ExpiresAt: time.Unix(rec.ExpiresAt, 0),
		Expired:   now.Unix() >= rec.ExpiresAt,
	}
	status.AttemptsLeft = e.config.Lockout.MaxAttempts - status.Attempts
	if status.AttemptsLeft < 0 {
		status.AttemptsLeft = 0
	}
	if rec.LockedUntil > 0 && now.Unix() < rec.LockedUntil {
		status.Locked = true
		status.LockedUntil = time.Unix(rec.LockedUntil, 0)
	}
	return status, nil
}
