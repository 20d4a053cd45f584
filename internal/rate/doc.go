// Package rate provides the fixed-window counter behind every throttle in stepAuth.
//
// # Window semantics
//
// The first hit for a key opens a window of the requested length and sets the
// count to 1. Each further hit inside the window increments the count. A hit
// after the window elapsed opens a fresh window. A request is allowed while the
// count is at or below the limit.
//
// # Stores
//
//   - [MemoryStore]: a mutex-guarded map, process local.
//   - [RedisStore]: INCR + PEXPIRE on first hit, executed as one Lua script.
//
// # What this package must NOT do
//
//   - Decide which actions are throttled (that lives in internal/limiters).
//   - Import stepAuth or any sibling internal package.
package rate
