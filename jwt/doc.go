// Package jwt signs and verifies the two token kinds issued after login: the
// browser session token stored in a cookie and the bearer token returned to
// mobile clients. Both carry the account's session version so a logout-all
// invalidates outstanding tokens without server-side session state.
package jwt
