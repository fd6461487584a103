// Package limiters provides the issuance throttle that caps how many codes
// an (identity, purpose) key may be sent per window.
//
// Two implementations share the [IssuanceLimiter] contract:
//
//   - [RedisIssuanceLimiter]: fixed-window INCR+EXPIRE counter, correct
//     across processes sharing the Redis database.
//   - [MemoryIssuanceLimiter]: per-key token bucket (golang.org/x/time/rate)
//     for single-process deployments, with stale-entry pruning.
//
// Both are counting mechanisms only; the consequence of a limited key is the
// engine's decision. The already-sent gate (reject while an unexpired code is
// outstanding) is not a limiter concern, since the engine derives it from the
// code store directly.
package limiters
