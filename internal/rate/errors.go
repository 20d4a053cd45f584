package rate

import "errors"

var (
	// ErrRateLimited is returned by callers that turn a denied [Result] into an error.
	ErrRateLimited = errors.New("rate limited")
	// ErrStoreUnavailable wraps window store failures.
	ErrStoreUnavailable = errors.New("rate limit store unavailable")
	// ErrInvalidPolicy is returned for non-positive limits or windows.
	ErrInvalidPolicy = errors.New("invalid rate limit policy")
)
