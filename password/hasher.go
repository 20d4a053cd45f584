package password

import "fmt"

// Algorithm selects the scheme used for new hashes.
type Algorithm string

const (
	AlgorithmBcrypt   Algorithm = "bcrypt"
	AlgorithmArgon2id Algorithm = "argon2id"
)

// DefaultMaxPasswordBytes caps input length before any hashing work is done.
const DefaultMaxPasswordBytes = 1024

type Config struct {
	Algorithm        Algorithm
	BcryptCost       int
	Argon2           Argon2Config
	MaxPasswordBytes int
}

// Hasher produces hashes with the configured algorithm and verifies hashes of
// either algorithm, so stored credentials keep working across a switch.
type Hasher struct {
	algorithm Algorithm
	maxBytes  int
	bcrypt    *Bcrypt
	argon2    *Argon2
}

func NewHasher(cfg Config) (*Hasher, error) {
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmBcrypt
	}
	if cfg.MaxPasswordBytes <= 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}

	h := &Hasher{
		algorithm: cfg.Algorithm,
		maxBytes:  cfg.MaxPasswordBytes,
	}

	b, err := NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	h.bcrypt = b

	switch cfg.Algorithm {
	case AlgorithmBcrypt:
		if cfg.Argon2 != (Argon2Config{}) {
			if h.argon2, err = NewArgon2(cfg.Argon2); err != nil {
				return nil, err
			}
		}
	case AlgorithmArgon2id:
		if h.argon2, err = NewArgon2(cfg.Argon2); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, cfg.Algorithm)
	}

	return h, nil
}

func (h *Hasher) Algorithm() Algorithm { return h.algorithm }

func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > h.maxBytes {
		return "", ErrPasswordTooLong
	}
	if h.algorithm == AlgorithmArgon2id {
		return h.argon2.Hash(password)
	}
	return h.bcrypt.Hash(password)
}

// Verify dispatches on the hash prefix. A mismatch is (false, nil).
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	if len(password) > h.maxBytes {
		return false, nil
	}
	switch {
	case isBcryptHash(encoded):
		return h.bcrypt.Verify(password, encoded)
	case len(encoded) > len(argon2Prefix) && encoded[:len(argon2Prefix)] == argon2Prefix:
		if h.argon2 == nil {
			return false, fmt.Errorf("%w: argon2id not configured", ErrUnsupportedAlgorithm)
		}
		return h.argon2.Verify(password, encoded)
	default:
		return false, ErrUnsupportedAlgorithm
	}
}

// NeedsRehash reports whether encoded should be replaced by a fresh hash:
// a different algorithm than configured, or weaker parameters.
func (h *Hasher) NeedsRehash(encoded string) bool {
	if isBcryptHash(encoded) {
		if h.algorithm != AlgorithmBcrypt {
			return true
		}
		upgrade, err := h.bcrypt.NeedsUpgrade(encoded)
		return err == nil && upgrade
	}
	if h.algorithm != AlgorithmArgon2id || h.argon2 == nil {
		return true
	}
	upgrade, err := h.argon2.NeedsUpgrade(encoded)
	return err == nil && upgrade
}
