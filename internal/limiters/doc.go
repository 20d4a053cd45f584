// Package limiters binds stepAuth actions (login, signup, code resend, code
// verify, password reset) to fixed-window policies evaluated by internal/rate.
//
// A nil [Guard] allows everything, which is how rate limiting is disabled.
//
// # What this package must NOT do
//
//   - Import stepAuth.
//   - Decide what a denial means for the caller; it only reports it.
package limiters
