// Package audit implements async event dispatching for the OTP lifecycle.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured record with timestamp, type, identity, purpose, metadata.
//
// # What this package must NOT do
//
//   - Decide which events to emit. That is the engine's responsibility.
//   - Carry plaintext codes or credentials in event payloads.
//   - Import the root package or any sibling internal package.
package audit
