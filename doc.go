// Package stepAuth resolves who is making a request, gates privileged work
// behind a one-time-code step-up, and issues the single-use tokens behind
// signup, email verification and password recovery.
//
// An [Engine] is assembled with [New] and [Builder.Build] and is safe for
// concurrent use afterwards. Callers supply an [AccountStore]; tokens and
// codes live in Redis (via [Builder.WithRedis]) or any [TokenStore].
//
// # Credentials
//
// Browsers carry a signed session token in an HttpOnly cookie. Mobile
// clients carry a signed bearer token. Both embed the account's session
// version, so [Engine.LogoutAll], password resets, role changes and
// suspensions revoke every outstanding credential without server-side
// session state.
//
// # Step-up
//
// Admin logins start in [StepUpPending]. [Engine.CompleteStepUp] verifies
// the emailed code and mints a new credential carrying the step-up flag.
// [Engine.RequireStepUp] is the check handlers and middleware use.
//
// # What this package must NOT do
//
//   - Log or audit passwords, token values or codes.
//   - Reveal whether an email is registered through login or password reset.
package stepAuth
