package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the JWS algorithm for both token kinds.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

const (
	sessionType = "session+jwt"
	mobileType  = "JWT"

	minHMACKeyBytes = 32
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWrongKind    = errors.New("token kind mismatch")
)

type Config struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte

	// Now overrides the clock used for iat/exp. Nil means time.Now.
	Now func() time.Time
}

// Manager signs and verifies browser session tokens and mobile bearer tokens
// with one key set. The two kinds carry different "typ" headers and a token
// of one kind never parses as the other.
type Manager struct {
	config Config
	now    func() time.Time
}

// SessionClaims is the payload of the browser session cookie.
type SessionClaims struct {
	UID            string `json:"uid"`
	Email          string `json:"email"`
	Name           string `json:"name,omitempty"`
	Role           string `json:"role"`
	StepUp         bool   `json:"stepUp"`
	SessionVersion int64  `json:"sv"`
	jwt.RegisteredClaims
}

// MobileClaims is the payload of the bearer token handed to mobile clients.
// Expiry is carried in milliseconds since the epoch.
type MobileClaims struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	MFAComplete    bool   `json:"mfaComplete"`
	ExpiresAtMilli int64  `json:"exp"`
	SessionVersion int64  `json:"sv"`
	Issuer         string `json:"iss,omitempty"`
}

func (c MobileClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	if c.ExpiresAtMilli == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.UnixMilli(c.ExpiresAtMilli)), nil
}

func (c MobileClaims) GetIssuedAt() (*jwt.NumericDate, error)  { return nil, nil }
func (c MobileClaims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }
func (c MobileClaims) GetIssuer() (string, error)              { return c.Issuer, nil }
func (c MobileClaims) GetSubject() (string, error)             { return c.ID, nil }
func (c MobileClaims) GetAudience() (jwt.ClaimStrings, error)  { return nil, nil }

// ExpiresAt returns the expiry as a time.Time.
func (c MobileClaims) ExpiresAt() time.Time { return time.UnixMilli(c.ExpiresAtMilli) }

// NewManager validates key material for the chosen signing method.
//
// Ed25519 keys may be raw bytes or PEM. HS256 requires a secret of at least 32
// bytes. A verify-only manager (public key, no private key) can parse but not sign.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < minHMACKeyBytes {
			return nil, fmt.Errorf("hs256 requires a secret of at least %d bytes", minHMACKeyBytes)
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			if len(cfg.PublicKey) == 0 {
				cfg.PublicKey = priv.Public().(ed25519.PublicKey)
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{config: cfg, now: now}, nil
}

// SignSession stamps iat, exp, iss and sub onto c and signs it.
func (m *Manager) SignSession(c SessionClaims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("session ttl must be positive")
	}
	now := m.now()
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	c.Subject = c.UID
	c.Issuer = m.config.Issuer
	return m.sign(sessionType, c)
}

// SignMobile sets the millisecond expiry on c and signs it.
func (m *Manager) SignMobile(c MobileClaims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("mobile ttl must be positive")
	}
	c.ExpiresAtMilli = m.now().Add(ttl).UnixMilli()
	c.Issuer = m.config.Issuer
	return m.sign(mobileType, c)
}

// ParseSession verifies signature, kind, expiry and issuer of a session token.
func (m *Manager) ParseSession(raw string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := m.parse(raw, sessionType, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseMobile verifies a bearer token. A token without an expiry is rejected.
func (m *Manager) ParseMobile(raw string) (*MobileClaims, error) {
	claims := &MobileClaims{}
	if err := m.parse(raw, mobileType, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *Manager) sign(typ string, claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(m.method(), claims)
	token.Header["typ"] = typ
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}

	key, err := m.signKey()
	if err != nil {
		return "", err
	}
	return token.SignedString(key)
}

func (m *Manager) parse(raw, typ string, claims jwt.Claims) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	token, err := jwt.NewParser(options...).ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if got, _ := t.Header["typ"].(string); got != typ {
			return nil, ErrWrongKind
		}
		return m.verifyKeyFor(t)
	})
	if err != nil {
		if errors.Is(err, ErrWrongKind) {
			return ErrWrongKind
		}
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

func (m *Manager) verifyKeyFor(t *jwt.Token) (interface{}, error) {
	kid, _ := t.Header["kid"].(string)

	if len(m.config.VerifyKeys) > 0 {
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := m.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return m.toVerifyKey(key)
	}

	if m.config.KeyID != "" && kid != m.config.KeyID {
		return nil, errors.New("unknown kid")
	}

	if m.config.SigningMethod == MethodHS256 {
		return m.config.PrivateKey, nil
	}
	return parseEdPublicKey(m.config.PublicKey)
}

func (m *Manager) method() jwt.SigningMethod {
	if m.config.SigningMethod == MethodHS256 {
		return jwt.SigningMethodHS256
	}
	return jwt.SigningMethodEdDSA
}

func (m *Manager) signKey() (interface{}, error) {
	if m.config.SigningMethod == MethodHS256 {
		return m.config.PrivateKey, nil
	}
	if len(m.config.PrivateKey) == 0 {
		return nil, errors.New("manager has no signing key")
	}
	return parseEdPrivateKey(m.config.PrivateKey)
}

func (m *Manager) toVerifyKey(key []byte) (interface{}, error) {
	if m.config.SigningMethod == MethodHS256 {
		return key, nil
	}
	return parseEdPublicKey(key)
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
