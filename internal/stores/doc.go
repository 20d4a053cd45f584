// Package stores keeps single-use verification tokens and one-time codes in Redis.
//
// # Design
//
// Records are versioned binary blobs with a TTL slightly past their logical
// expiry, so an expired token is reported as expired rather than missing.
// Token records are keyed by the SHA-256 of the token value; a per
// (email, purpose) slot key enforces the one-live-token rule and is swapped in
// a WATCH/MULTI transaction. Deletion is the consumption point: only the
// caller whose DEL removed the key may treat the token as used.
//
// # What this package must NOT do
//
//   - Import stepAuth or any sibling internal package.
//   - Store raw token values or log codes.
//   - Decide expiry or purpose policy; callers inspect the returned record.
package stores
