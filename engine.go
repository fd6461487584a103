package otpgate

import (
	"strings"

	internalaudit "github.com/hexleaf/otpgate/internal/audit"
	"github.com/hexleaf/otpgate/internal/limiters"
	"github.com/hexleaf/otpgate/internal/stores"
	"github.com/hexleaf/otpgate/token"
)

// Engine is the OTP lifecycle manager. Construct via [Builder.Build]; safe
// for concurrent use afterwards.
type Engine struct {
	config     Config
	store      stores.CodeStore
	limiter    limiters.IssuanceLimiter
	identities IdentityProvider
	notifier   Notifier
	tokens     *token.Manager
	audit      *internalaudit.Dispatcher
	metrics    *Metrics
	sweeper    *sweeper
}

// Tokens returns the credential manager so callers can verify credentials
// the engine issued.
func (e *Engine) Tokens() *token.Manager {
	if e == nil {
		return nil
	}
	return e.tokens
}

// Close stops the background sweeper and drains the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.sweeper != nil {
		e.sweeper.Stop()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all counters.
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

func (e *Engine) ready() bool {
	return e != nil &&
		e.store != nil &&
		e.limiter != nil &&
		e.identities != nil &&
		e.notifier != nil &&
		e.tokens != nil
}

// normalizeIdentity lowercases and trims the key so lookups are
// case-insensitive. Returns "" for unusable input.
func normalizeIdentity(identity string) string {
	identity = strings.ToLower(strings.TrimSpace(identity))
	if identity == "" || len(identity) > 254 {
		return ""
	}
	return identity
}
