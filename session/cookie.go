package session

import (
	"net/http"
	"strings"
	"time"
)

// DefaultCookieName is the cookie carrying the browser session token.
const DefaultCookieName = "stepauth_session"

type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

func (c CookieConfig) name() string {
	if c.Name == "" {
		return DefaultCookieName
	}
	return c.Name
}

func (c CookieConfig) path() string {
	if c.Path == "" {
		return "/"
	}
	return c.Path
}

func (c CookieConfig) sameSite() http.SameSite {
	if c.SameSite == 0 {
		return http.SameSiteLaxMode
	}
	return c.SameSite
}

// Write sets the session cookie. The cookie is always HttpOnly and expires
// together with the token it carries.
func Write(w http.ResponseWriter, cfg CookieConfig, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.name(),
		Value:    token,
		Path:     cfg.path(),
		Domain:   cfg.Domain,
		Expires:  expiresAt.UTC(),
		MaxAge:   maxAge,
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: cfg.sameSite(),
	})
}

// Read returns the session token from r, or false if the cookie is absent or empty.
func Read(r *http.Request, cfg CookieConfig) (string, bool) {
	c, err := r.Cookie(cfg.name())
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	if v == "" {
		return "", false
	}
	return v, true
}

// Clear expires the session cookie on the client.
func Clear(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.name(),
		Value:    "",
		Path:     cfg.path(),
		Domain:   cfg.Domain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: cfg.sameSite(),
	})
}

// ParseSameSite maps a config string to an http.SameSite value. Unknown
// values fall back to Lax.
func ParseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
