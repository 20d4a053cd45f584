package password

import "errors"

var (
	ErrEmptyPassword        = errors.New("password is empty")
	ErrPasswordTooLong      = errors.New("password exceeds maximum length")
	ErrMalformedHash        = errors.New("malformed password hash")
	ErrUnsupportedAlgorithm = errors.New("unsupported password hash algorithm")
	ErrInvalidConfig        = errors.New("invalid password hasher configuration")
)
