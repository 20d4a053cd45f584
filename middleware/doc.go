// Package middleware adapts stepAuth.Engine to net/http.
//
// # Page routes
//
// [Gate] resolves the caller once per request and applies the route
// decision table: public paths pass, anonymous callers are sent to the
// login page with a "next" parameter, privileged areas require an admin
// identity that has completed step-up, and admins are kept out of the
// standard area. [Decide] is the pure form of the same table.
//
// # API routes
//
// Paths under Routes.APIPrefix bypass the gate and authorize locally with
// [RequireIdentity], [RequireStepUp] and [RequireRole], which answer with
// JSON errors instead of redirects. [RateLimit] applies an engine policy
// to any handler.
//
// This package makes no authentication decisions of its own; credentials
// are verified by Engine.Resolve.
package middleware
