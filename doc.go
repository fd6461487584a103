// Package otpgate provides an embeddable one-time-password lifecycle engine:
// code issuance, resend, verification with attempt lockout, single-use
// consumption, and purpose-scoped credential minting.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build]. Operations on the same (identity, purpose) key behave as
// if serialized; unrelated keys never contend on a shared lock.
//
// # Architecture boundaries
//
// otpgate is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (CodeIssue, VerifyResult, Status, audit and metrics
// surfaces). Storage backends, throttle counters, and audit dispatch live
// under internal/ and are never exported. Credential signing lives in the
// token subpackage; metric export in metrics/export.
//
// # What this package must NOT do
//
//   - Expose Redis clients, store internals, or record encodings in its
//     public API.
//   - Deliver codes itself; delivery goes through the caller-supplied
//     [Notifier], with a bounded timeout and rollback on failure.
//   - Keep any state for issued credentials; validation is stateless
//     (signature + embedded expiry + purpose check).
package otpgate
