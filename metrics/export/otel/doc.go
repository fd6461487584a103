// Package otel binds engine counters to OpenTelemetry metric instruments.
//
// [NewExporter] registers an Int64ObservableCounter per engine counter and a
// single callback that reads [otpgate.Engine.MetricsSnapshot] on each
// collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
