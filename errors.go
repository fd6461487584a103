package otpgate

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEngineNotReady is returned when a required collaborator was not
	// wired through the [Builder].
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrValidation covers malformed input (empty identity, wrong code
	// shape) rejected before any state is touched.
	ErrValidation = errors.New("validation failed")
	// ErrUnknownPurpose is returned for a purpose the config carries no
	// policy for.
	ErrUnknownPurpose = errors.New("unknown purpose")
	// ErrAlreadySent is returned by RequestCode while a still-valid code is
	// outstanding. Match with errors.As against [*AlreadySentError] for the
	// remaining wait.
	ErrAlreadySent = errors.New("code already sent")
	// ErrRateLimited indicates the send quota for the window is exhausted.
	ErrRateLimited = errors.New("too many code requests")
	// ErrNotFound indicates no active code for the key. Deliberately
	// ambiguous between never-sent, consumed, and long-expired.
	ErrNotFound = errors.New("no active code")
	// ErrCodeExpired indicates the outstanding code's expiry has passed.
	ErrCodeExpired = errors.New("code expired")
	// ErrInvalidCode indicates a mismatch. Match with errors.As against
	// [*InvalidCodeError] for the attempts left.
	ErrInvalidCode = errors.New("invalid code")
	// ErrTooManyAttempts indicates the key is locked out. Match with
	// errors.As against [*LockedError] for the remaining lock time.
	ErrTooManyAttempts = errors.New("too many failed attempts")
	// ErrDeliveryFailed indicates the notifier could not deliver the code;
	// the stored code was rolled back.
	ErrDeliveryFailed = errors.New("code delivery failed")
	// ErrIdentityInvalid indicates the purpose does not apply to the
	// identity (already verified, or unknown for a login code).
	ErrIdentityInvalid = errors.New("identity invalid for purpose")
	// ErrIdentityNotFound is the sentinel [IdentityProvider] implementations
	// return (or wrap) for unknown identities.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrUnavailable covers backend faults. Detail is audited, never
	// surfaced to the caller.
	ErrUnavailable = errors.New("service unavailable")
)

// AlreadySentError carries the remaining validity of the outstanding code.
type AlreadySentError struct {
	RetryAfter time.Duration
}

func (e *AlreadySentError) Error() string {
	return fmt.Sprintf("code already sent, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *AlreadySentError) Unwrap() error { return ErrAlreadySent }

// InvalidCodeError carries the attempts left before lockout.
type InvalidCodeError struct {
	AttemptsLeft int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid code, %d attempts left", e.AttemptsLeft)
}

func (e *InvalidCodeError) Unwrap() error { return ErrInvalidCode }

// LockedError carries the remaining lockout duration.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("too many failed attempts, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *LockedError) Unwrap() error { return ErrTooManyAttempts }
