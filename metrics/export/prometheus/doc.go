// Package prometheus renders engine counters in Prometheus text exposition
// format.
//
// [NewExporter] accepts an [otpgate.Engine] and exposes an [net/http.Handler]
// that serves every counter plus the audit drop counter. Counter names are
// prefixed otpgate_*_total.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the
//     Handler where they want it.
//   - Mutate engine state.
package prometheus
