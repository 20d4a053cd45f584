// Package session reads and writes the browser session cookie.
//
// The cookie value is an opaque signed token produced by package jwt; this
// package never inspects it. Cookies are always HttpOnly.
package session
