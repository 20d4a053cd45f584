package stepAuth

import (
	"errors"

	"github.com/MrEthical07/stepAuth/internal/rate"
	"github.com/MrEthical07/stepAuth/internal/stores"
)

var (
	// ErrInvalidCredentials covers unknown email, missing password hash and wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	// ErrStepUpRequired means the caller is authenticated but has not completed the one-time-code challenge.
	ErrStepUpRequired = errors.New("step-up verification required")
	ErrForbidden      = errors.New("forbidden")

	ErrTokenNotFound     = errors.New("token not found")
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenWrongPurpose = errors.New("token purpose mismatch")
	ErrCodeMismatch      = errors.New("one-time code mismatch")
	ErrInvalidPurpose    = errors.New("invalid token purpose")

	// ErrRateLimited is returned when a throttled action exceeds its window.
	ErrRateLimited = rate.ErrRateLimited

	ErrAccountSuspended = errors.New("account suspended")
	ErrAccountExists    = errors.New("account already exists")
	ErrAccountNotFound  = errors.New("account not found")
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrInvalidRole      = errors.New("invalid account role")
	ErrPasswordPolicy   = errors.New("password policy violation")

	ErrEngineNotReady     = errors.New("engine not initialized")
	ErrBackendUnavailable = errors.New("auth backend unavailable")
)

// ErrNotFound is the record-level sentinel that AccountStore and TokenStore
// implementations return for a missing row or key.
var ErrNotFound = stores.ErrNotFound
