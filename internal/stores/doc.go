// Package stores provides the short-lived code-record stores backing the
// OTP lifecycle: a Redis implementation for multi-process deployments and a
// sharded in-process implementation for single-process use.
//
// # Design
//
// Each store persists a versioned, fixed-width binary record keyed by
// (identity, purpose). Verify is a single atomic step that applies the whole
// per-record state machine (expiry, lockout, attempt counting, consume), so
// two concurrent verifies can never both succeed against a single-use code or
// both increment the attempt counter from a stale read. Redis runs the step
// as one Lua script; the memory store runs it under a per-shard mutex.
//
// Expired records are retained for a grace period after ExpiresAt so a verify
// arriving just after expiry reports expired rather than not found. Retention
// collection is the redis TTL (set to TTL+grace) or [MemoryStore.SweepExpired].
//
// # What this package must NOT do
//
//   - Generate codes, enforce issuance throttles, or mint credentials.
//   - Log or expose plaintext codes; records carry only SHA-256 digests.
//   - Use non-constant-time comparisons for digest matching.
package stores
