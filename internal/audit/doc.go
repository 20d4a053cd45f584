// Package audit implements async dispatch of authentication events.
//
// # Components
//
//   - [Sink]: event consumers (channel, JSON lines, zap logger, no-op).
//   - [Dispatcher]: buffered relay with drop-if-full or block-if-full semantics.
//   - [Event]: timestamp, type, account, email, channel, IP, outcome, metadata.
//
// The Engine decides which events to emit; this package only delivers them.
//
// # What this package must NOT do
//
//   - Import stepAuth or any sibling internal package.
//   - Accept secrets in events (passwords, token values, codes).
package audit
