package middleware

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	stepAuth "github.com/MrEthical07/stepAuth"
	"go.uber.org/zap"
)

// Decision is the outcome of routing one page request.
type Decision struct {
	// Redirect is empty when the request may proceed.
	Redirect string
}

func (d Decision) Pass() bool { return d.Redirect == "" }

var pass = Decision{}

func redirect(to string) Decision { return Decision{Redirect: to} }

// Decide applies the page-route table to target for id. A nil id means the
// caller is anonymous. target is the request path, optionally with a query,
// and is only used to build the login "next" parameter.
func Decide(routes stepAuth.RoutesConfig, target string, id *stepAuth.Identity) Decision {
	path := target
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	if path == routes.LoginPath || path == routes.SignupPath {
		if id != nil {
			return redirect(id.HomePath(routes))
		}
		return pass
	}

	if isPublic(routes, path) {
		return pass
	}

	if id == nil {
		return redirect(routes.LoginPath + "?next=" + url.QueryEscape(target))
	}

	if path == routes.StepUpPath {
		if !id.IsAdmin() || id.StepUp == stepAuth.StepUpVerified {
			return redirect(id.HomePath(routes))
		}
		return pass
	}

	if inArea(path, routes.AdminPrefix) {
		switch {
		case !id.IsAdmin():
			return redirect(routes.UserHome)
		case id.StepUp != stepAuth.StepUpVerified:
			return redirect(routes.StepUpPath)
		default:
			return pass
		}
	}

	if id.IsAdmin() {
		return redirect(routes.AdminHome)
	}
	return pass
}

// Gate enforces Decide on page routes. Paths under Routes.APIPrefix are
// passed through untouched. The resolved identity, if any, is stored on the
// request context for handlers.
func Gate(engine *stepAuth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}
			routes := engine.Routes()
			path := r.URL.Path

			if routes.APIPrefix != "" && strings.HasPrefix(path, routes.APIPrefix) {
				next.ServeHTTP(w, r)
				return
			}
			// public pages other than login/signup never need the identity
			if path != routes.LoginPath && path != routes.SignupPath && isPublic(routes, path) {
				next.ServeHTTP(w, r)
				return
			}

			id, err := engine.Resolve(r.Context(), r)
			switch {
			case err == nil:
			case errors.Is(err, stepAuth.ErrUnauthenticated):
				id = nil
			default:
				engine.Logger().Warn("gate resolve failed", zap.Error(err))
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			if d := Decide(routes, r.URL.RequestURI(), id); !d.Pass() {
				http.Redirect(w, r, d.Redirect, http.StatusTemporaryRedirect)
				return
			}

			if id != nil {
				r = r.WithContext(stepAuth.WithIdentity(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isPublic(routes stepAuth.RoutesConfig, path string) bool {
	for _, p := range routes.PublicPaths {
		if path == p {
			return true
		}
	}
	for _, p := range routes.PublicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// inArea reports whether path is prefix itself or below it.
func inArea(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/")
}
