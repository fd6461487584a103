package otpgate

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/hexleaf/otpgate/internal/audit"
	"github.com/hexleaf/otpgate/token"
)

// Purpose is the intended use of a verification code. It gates which
// downstream action a successful verification unlocks and is embedded in the
// minted credential.
type Purpose string

const (
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"
	PurposeLoginVerification Purpose = "login_verification"
	PurposeRegistration      Purpose = "registration"
)

func (p Purpose) String() string { return string(p) }

// CredentialTier selects the lifetime class of a minted credential.
type CredentialTier = token.Tier

const (
	// TierIntermediate is the short-lived credential used to chain a
	// verification into a follow-up step (completing a registration,
	// setting a new password).
	TierIntermediate = token.TierIntermediate
	// TierSession is the long-lived credential granted after full
	// authentication.
	TierSession = token.TierSession
)

// IdentityRecord is the minimal account view the engine needs to decide
// whether a purpose applies to an identity.
type IdentityRecord struct {
	ID       string
	Identity string
	Verified bool
}

// IdentityProvider is implemented by the host application's user storage.
// GetByIdentity must return [ErrIdentityNotFound] (or an error wrapping it)
// when no account matches; any other error is treated as a backend fault.
type IdentityProvider interface {
	GetByIdentity(ctx context.Context, identity string) (IdentityRecord, error)
}

// Delivery is the payload handed to the [Notifier]. Code is the only place
// the plaintext code leaves the engine.
type Delivery struct {
	Code      string
	Purpose   Purpose
	ExpiresAt time.Time
}

// Notifier delivers a code to the identity out-of-band (email, SMS, push).
// The engine bounds each call with [NotifyConfig.Timeout]; an error return
// rolls back the just-stored code. Deliveries are not retried by the engine.
type Notifier interface {
	Deliver(ctx context.Context, identity string, d Delivery) error
}

// CodeIssue is returned by [Engine.RequestCode] and [Engine.ResendCode].
type CodeIssue struct {
	ExpiresAt time.Time
}

// VerifyResult is returned by [Engine.VerifyCode] on a successful match.
type VerifyResult struct {
	Credential string
	Tier       CredentialTier
	ExpiresAt  time.Time
}

// Status is a read-only snapshot of the outstanding code for a key,
// returned by [Engine.CodeStatus].
type Status struct {
	Attempts     int
	AttemptsLeft int
	IssuedAt     time.Time
	ExpiresAt    time.Time
	Expired      bool
	Locked       bool
	LockedUntil  time.Time
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes one JSON event per line to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
