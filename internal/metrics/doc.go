// Package metrics provides lock-free counters for engine observability.
//
// # Design
//
// Counters live in cache-line-padded uint64 slots incremented atomically via
// [sync/atomic.AddUint64]; the write path is allocation-free.
//
// # Architecture boundaries
//
// This package owns metric storage and snapshot creation. Metric export
// (Prometheus, OTel) lives in metrics/export/ and reads Snapshot values.
//
// # What this package must NOT do
//
//   - Perform I/O or network calls.
//   - Import the root package or any sibling package.
//   - Expose global metric registries.
package metrics
