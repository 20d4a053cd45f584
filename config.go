package stepAuth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/stepAuth/internal/limiters"
	"github.com/MrEthical07/stepAuth/password"
)

// Config is the full engine configuration. Start from DefaultConfig and
// override what you need; Build validates the result.
type Config struct {
	JWT               JWTConfig
	Session           SessionConfig
	Mobile            MobileConfig
	Password          PasswordConfig
	Tokens            TokensConfig
	EmailVerification EmailVerificationConfig
	RateLimits        RateLimitConfig
	Routes            RoutesConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
	Redis             RedisConfig
}

/*
====================================
JWT CONFIG
====================================
*/

type JWTConfig struct {
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the browser session cookie.
type SessionConfig struct {
	CookieName string
	Path       string
	Domain     string
	Secure     bool
	SameSite   http.SameSite
	TTL        time.Duration
}

// MobileConfig controls bearer tokens issued to mobile clients. They are
// never refreshed; a client logs in again after TTL.
type MobileConfig struct {
	TTL time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

type PasswordConfig struct {
	Algorithm      string // "bcrypt" (default) or "argon2id"
	BcryptCost     int
	Argon2         password.Argon2Config
	MinLength      int
	MaxLength      int
	UpgradeOnLogin bool
}

/*
====================================
TOKENS CONFIG
====================================
*/

type TokensConfig struct {
	VerificationTTL time.Duration
	CodeTTL         time.Duration
	CodeDigits      int
	// SendCodeOnLogin issues and sends a step-up code as part of a privileged login.
	SendCodeOnLogin bool
}

// EmailVerificationConfig makes Signup issue an email-verification token.
type EmailVerificationConfig struct {
	Enabled bool
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

type RateLimitPolicy struct {
	Limit  int
	Window time.Duration
}

// RateLimitConfig holds one policy per throttled action. Login is keyed by
// client address and LoginAccount by the submitted email, so rotating
// addresses cannot bypass the per-account window.
type RateLimitConfig struct {
	Enabled            bool
	Login              RateLimitPolicy
	LoginAccount       RateLimitPolicy
	Signup             RateLimitPolicy
	CodeResend         RateLimitPolicy
	CodeVerify         RateLimitPolicy
	VerificationResend RateLimitPolicy
	PasswordReset      RateLimitPolicy
}

func (c RateLimitConfig) policies() map[limiters.Action]limiters.Policy {
	return map[limiters.Action]limiters.Policy{
		limiters.ActionLogin:              {Limit: c.Login.Limit, Window: c.Login.Window},
		limiters.ActionLoginAccount:       {Limit: c.LoginAccount.Limit, Window: c.LoginAccount.Window},
		limiters.ActionSignup:             {Limit: c.Signup.Limit, Window: c.Signup.Window},
		limiters.ActionCodeResend:         {Limit: c.CodeResend.Limit, Window: c.CodeResend.Window},
		limiters.ActionCodeVerify:         {Limit: c.CodeVerify.Limit, Window: c.CodeVerify.Window},
		limiters.ActionVerificationResend: {Limit: c.VerificationResend.Limit, Window: c.VerificationResend.Window},
		limiters.ActionPasswordReset:      {Limit: c.PasswordReset.Limit, Window: c.PasswordReset.Window},
	}
}

/*
====================================
ROUTES CONFIG
====================================
*/

// RoutesConfig describes the page layout the route gate enforces.
type RoutesConfig struct {
	PublicPaths    []string
	PublicPrefixes []string
	LoginPath      string
	SignupPath     string
	StepUpPath     string
	AdminPrefix    string
	AdminHome      string
	UserHome       string
	// APIPrefix marks routes that authorize locally and bypass the page gate.
	APIPrefix string
}

/*
====================================
AUDIT / METRICS / REDIS
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

type RedisConfig struct {
	KeyPrefix string
}

// DefaultConfig returns a configuration with production defaults. Signing
// keys are left empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: "hs256",
			Issuer:        "stepauth",
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			CookieName: "stepauth_session",
			Path:       "/",
			Secure:     true,
			SameSite:   http.SameSiteLaxMode,
			TTL:        7 * 24 * time.Hour,
		},
		Mobile: MobileConfig{
			TTL: 30 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Algorithm:  string(password.AlgorithmBcrypt),
			BcryptCost: password.DefaultBcryptCost,
			Argon2: password.Argon2Config{
				Memory:      64 * 1024,
				Time:        3,
				Parallelism: 2,
				SaltLength:  16,
				KeyLength:   32,
			},
			MinLength:      8,
			MaxLength:      72,
			UpgradeOnLogin: true,
		},
		Tokens: TokensConfig{
			VerificationTTL: time.Hour,
			CodeTTL:         10 * time.Minute,
			CodeDigits:      6,
			SendCodeOnLogin: true,
		},
		EmailVerification: EmailVerificationConfig{
			Enabled: true,
		},
		RateLimits: RateLimitConfig{
			Enabled:            true,
			Login:              RateLimitPolicy{Limit: 5, Window: time.Minute},
			LoginAccount:       RateLimitPolicy{Limit: 10, Window: 15 * time.Minute},
			Signup:             RateLimitPolicy{Limit: 5, Window: time.Hour},
			CodeResend:         RateLimitPolicy{Limit: 3, Window: 10 * time.Minute},
			CodeVerify:         RateLimitPolicy{Limit: 5, Window: 10 * time.Minute},
			VerificationResend: RateLimitPolicy{Limit: 3, Window: 10 * time.Minute},
			PasswordReset:      RateLimitPolicy{Limit: 3, Window: time.Hour},
		},
		Routes: RoutesConfig{
			PublicPaths:    []string{"/", "/verify-email", "/forgot-password", "/reset-password"},
			PublicPrefixes: []string{"/static/", "/jobs"},
			LoginPath:      "/login",
			SignupPath:     "/signup",
			StepUpPath:     "/verify-otp",
			AdminPrefix:    "/admin",
			AdminHome:      "/admin",
			UserHome:       "/dashboard",
			APIPrefix:      "/api/",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Redis: RedisConfig{
			KeyPrefix: "sa",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.Routes.PublicPaths = append([]string(nil), cfg.Routes.PublicPaths...)
	out.Routes.PublicPrefixes = append([]string(nil), cfg.Routes.PublicPrefixes...)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first invalid field. It does not check key material
// beyond presence; the token manager does that at Build.
func (c *Config) Validate() error {
	// JWT
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("hs256 requires PrivateKey")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Session / mobile
	if strings.TrimSpace(c.Session.CookieName) == "" {
		return errors.New("Session CookieName must be set")
	}
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.SameSite == http.SameSiteNoneMode && !c.Session.Secure {
		return errors.New("Session SameSite=None requires Secure")
	}
	if c.Mobile.TTL <= 0 {
		return errors.New("Mobile TTL must be > 0")
	}

	// Password
	switch password.Algorithm(c.Password.Algorithm) {
	case password.AlgorithmBcrypt, password.AlgorithmArgon2id:
	default:
		return errors.New("unsupported Password Algorithm")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}
	if password.Algorithm(c.Password.Algorithm) == password.AlgorithmBcrypt && c.Password.MaxLength > 72 {
		return errors.New("Password MaxLength must be <= 72 for bcrypt")
	}

	// Tokens
	if c.Tokens.VerificationTTL <= 0 {
		return errors.New("Tokens VerificationTTL must be > 0")
	}
	if c.Tokens.CodeTTL <= 0 {
		return errors.New("Tokens CodeTTL must be > 0")
	}
	if c.Tokens.CodeDigits < 6 || c.Tokens.CodeDigits > 10 {
		return errors.New("Tokens CodeDigits must be between 6 and 10")
	}

	// Rate limits
	if c.RateLimits.Enabled {
		for action, p := range c.RateLimits.policies() {
			if p.Limit <= 0 || p.Window <= 0 {
				return fmt.Errorf("RateLimits %s requires Limit > 0 and Window > 0", action)
			}
		}
	}

	// Routes
	for name, path := range map[string]string{
		"LoginPath":   c.Routes.LoginPath,
		"SignupPath":  c.Routes.SignupPath,
		"StepUpPath":  c.Routes.StepUpPath,
		"AdminPrefix": c.Routes.AdminPrefix,
		"AdminHome":   c.Routes.AdminHome,
		"UserHome":    c.Routes.UserHome,
	} {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("Routes %s must start with /", name)
		}
	}
	if strings.HasPrefix(c.Routes.UserHome, c.Routes.AdminPrefix) {
		return errors.New("Routes UserHome must not be inside AdminPrefix")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}
