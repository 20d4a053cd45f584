package stepAuth

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	internalaudit "github.com/MrEthical07/stepAuth/internal/audit"
	"github.com/MrEthical07/stepAuth/internal/limiters"
	"github.com/MrEthical07/stepAuth/internal/rate"
	"github.com/MrEthical07/stepAuth/jwt"
	"github.com/MrEthical07/stepAuth/password"
	"github.com/MrEthical07/stepAuth/session"
	"go.uber.org/zap"
)

// Engine is the authentication core. It is safe for concurrent use once built.
type Engine struct {
	config   Config
	accounts AccountStore
	tokens   TokenStore
	notifier Notifier
	limiter  *rate.Limiter
	guard    *limiters.Guard
	hasher   *password.Hasher
	jwt      *jwt.Manager
	cookie   session.CookieConfig
	audit    *internalaudit.Dispatcher
	metrics  *Metrics
	logger   *zap.Logger
	now      func() time.Time

	dummyHashOnce sync.Once
	dummyHash     string
}

// Close flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Routes returns the configured page layout for the route gate.
func (e *Engine) Routes() RoutesConfig {
	return cloneConfig(e.config).Routes
}

// SessionCookie returns the browser cookie settings.
func (e *Engine) SessionCookie() session.CookieConfig {
	return e.cookie
}

// Logger returns the engine's named logger.
func (e *Engine) Logger() *zap.Logger {
	if e == nil || e.logger == nil {
		return zap.NewNop()
	}
	return e.logger
}

// WriteSessionCookie stores a browser credential on w. Mobile credentials are ignored.
func (e *Engine) WriteSessionCookie(w http.ResponseWriter, c Credential) {
	if c.Channel != ChannelBrowser || c.Token == "" {
		return
	}
	session.Write(w, e.cookie, c.Token, c.ExpiresAt)
}

// Logout clears the browser session cookie. Outstanding tokens stay valid
// until expiry; use LogoutAll to revoke them.
func (e *Engine) Logout(w http.ResponseWriter) {
	session.Clear(w, e.cookie)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() error {
	if e == nil || e.accounts == nil || e.tokens == nil || e.jwt == nil || e.hasher == nil {
		return ErrEngineNotReady
	}
	return nil
}

// backendError logs a store failure and wraps it for the caller.
func (e *Engine) backendError(op string, err error) error {
	e.logger.Warn("auth backend call failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}
