package stores

import (
	"errors"
	"time"
)

// Purpose scopes a verification token to one flow.
type Purpose string

const (
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"
	PurposePasswordChange    Purpose = "password_change"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeEmailVerification, PurposePasswordReset, PurposePasswordChange:
		return true
	default:
		return false
	}
}

var (
	ErrNotFound         = errors.New("record not found")
	ErrRedisUnavailable = errors.New("token redis unavailable")
	ErrMalformedRecord  = errors.New("malformed token record")
)

// VerificationToken is a single-use token bound to an email and purpose.
// At most one live token exists per (Email, Purpose).
type VerificationToken struct {
	Email     string
	Value     string
	Purpose   Purpose
	ExpiresAt time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t VerificationToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// OneTimeCode is a short numeric code, at most one per email.
type OneTimeCode struct {
	Email     string
	Code      string
	ExpiresAt time.Time
}

func (c OneTimeCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
