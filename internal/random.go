package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const tokenEntropyBytes = 32

var ErrInvalidDigits = errors.New("invalid otp digits")

// NewOTP returns a uniformly random numeric code of the given length.
func NewOTP(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", ErrInvalidDigits
	}

	var b strings.Builder
	b.Grow(digits)

	ten := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	return b.String(), nil
}

// NewTokenValue returns an opaque, URL-safe verification token. The UUID prefix
// keeps values globally unique; the random suffix carries the secret.
func NewTokenValue() (string, error) {
	var secret [tokenEntropyBytes]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return "", err
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}

	return strings.ReplaceAll(id.String(), "-", "") + base64.RawURLEncoding.EncodeToString(secret[:]), nil
}
