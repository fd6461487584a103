package otpgate

import (
	internalmetrics "github.com/hexleaf/otpgate/internal/metrics"
)

// MetricID identifies a specific counter in the in-process metrics system.
type MetricID = internalmetrics.MetricID

const (
	// MetricCodeRequested counts successful RequestCode issues.
	MetricCodeRequested = internalmetrics.MetricCodeRequested
	// MetricCodeResent counts successful ResendCode issues.
	MetricCodeResent = internalmetrics.MetricCodeResent
	// MetricCodeDelivered counts notifier deliveries that succeeded.
	MetricCodeDelivered = internalmetrics.MetricCodeDelivered
	// MetricDeliveryFailed counts notifier failures (each rolled back).
	MetricDeliveryFailed = internalmetrics.MetricDeliveryFailed
	// MetricVerifySuccess counts codes consumed by a matching verify.
	MetricVerifySuccess = internalmetrics.MetricVerifySuccess
	// MetricVerifyInvalid counts mismatched verify attempts.
	MetricVerifyInvalid = internalmetrics.MetricVerifyInvalid
	// MetricVerifyExpired counts verifies against expired codes.
	MetricVerifyExpired = internalmetrics.MetricVerifyExpired
	// MetricVerifyNotFound counts verifies with no active code.
	MetricVerifyNotFound = internalmetrics.MetricVerifyNotFound
	// MetricVerifyLocked counts verifies rejected by an active lockout.
	MetricVerifyLocked = internalmetrics.MetricVerifyLocked
	// MetricRateLimitHit counts issuance throttle rejections.
	MetricRateLimitHit = internalmetrics.MetricRateLimitHit
	// MetricEnumerationMasked counts enumeration-safe fake successes.
	MetricEnumerationMasked = internalmetrics.MetricEnumerationMasked
	// MetricCredentialIssued counts minted credentials.
	MetricCredentialIssued = internalmetrics.MetricCredentialIssued
	// MetricRecordsSwept counts records removed by the expiry sweep.
	MetricRecordsSwept = internalmetrics.MetricRecordsSwept
)

// Metrics holds atomic counters. All operations are no-ops when disabled.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all counters.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance configured by the given
// [MetricsConfig].
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{Enabled: cfg.Enabled})
}
