// Package internal holds private helpers for stepAuth: secure random codes and
// verification token values.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - limiters: per-action rate limit policies
//   - rate: fixed-window counters over memory or Redis
//   - stores: Redis-backed verification tokens and one-time codes
//
// # What this package must NOT do
//
//   - Export types that appear in the public stepAuth API.
//   - Be imported by any package outside the stepAuth module.
package internal
