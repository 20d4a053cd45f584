package middleware

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	stepAuth "github.com/MrEthical07/stepAuth"
	"go.uber.org/zap"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: code})
}

// WriteError maps an engine error onto a JSON error response.
func WriteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, stepAuth.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, stepAuth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
	case errors.Is(err, stepAuth.ErrStepUpRequired):
		writeError(w, http.StatusForbidden, "step_up_required")
	case errors.Is(err, stepAuth.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, stepAuth.ErrAccountSuspended):
		writeError(w, http.StatusForbidden, "account_suspended")
	case errors.Is(err, stepAuth.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate_limited")
	case errors.Is(err, stepAuth.ErrAccountExists):
		writeError(w, http.StatusConflict, "account_exists")
	case errors.Is(err, stepAuth.ErrTokenNotFound),
		errors.Is(err, stepAuth.ErrTokenExpired),
		errors.Is(err, stepAuth.ErrTokenWrongPurpose):
		writeError(w, http.StatusBadRequest, "invalid_token")
	case errors.Is(err, stepAuth.ErrCodeMismatch):
		writeError(w, http.StatusBadRequest, "invalid_code")
	case errors.Is(err, stepAuth.ErrInvalidEmail),
		errors.Is(err, stepAuth.ErrInvalidRole),
		errors.Is(err, stepAuth.ErrPasswordPolicy):
		writeError(w, http.StatusBadRequest, "invalid_request")
	case errors.Is(err, stepAuth.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	default:
		writeError(w, http.StatusServiceUnavailable, "unavailable")
	}
}

// RequireIdentity resolves the caller and stores the identity on the
// request context. Anonymous callers get 401.
func RequireIdentity(engine *stepAuth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeError(w, http.StatusServiceUnavailable, "unavailable")
				return
			}
			if _, ok := stepAuth.IdentityFromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}

			id, err := engine.Resolve(r.Context(), r)
			if err != nil {
				if !errors.Is(err, stepAuth.ErrUnauthenticated) {
					engine.Logger().Warn("api resolve failed", zap.Error(err))
				}
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(stepAuth.WithIdentity(r.Context(), id)))
		})
	}
}

// RequireStepUp rejects privileged identities that have not completed
// step-up. It must run after RequireIdentity.
func RequireStepUp() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := stepAuth.IdentityFromContext(r.Context())
			if err := stepAuth.RequireStepUp(id); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole admits identities holding one of roles. It must run after
// RequireIdentity.
func RequireRole(roles ...stepAuth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := stepAuth.IdentityFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}
			for _, role := range roles {
				if id.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "forbidden")
		})
	}
}

// ClientIP returns the host part of r.RemoteAddr. Run a trusted proxy
// header rewriter (such as chi's RealIP) first when behind a proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// WithClientIP stores ClientIP(r) on the request context for engine
// throttling and audit.
func WithClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(stepAuth.WithClientIP(r.Context(), ClientIP(r))))
	})
}

// RateLimit applies the engine policy for action, keyed by key(r).
// Rejected requests get 429; a failing rate store gets 503.
func RateLimit(engine *stepAuth.Engine, action stepAuth.RateLimitAction, key func(*http.Request) string) func(http.Handler) http.Handler {
	if key == nil {
		key = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := engine.AllowAction(r.Context(), action, key(r)); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
