package stepAuth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/stepAuth/session"
)

// Resolve produces the caller's Identity from r.
//
// The browser session cookie is tried first, then an "Authorization: Bearer"
// token. Both channels re-read the account: a missing or suspended account,
// or a session version that no longer matches, rejects that credential.
// A rejected or malformed cookie falls through to the bearer token; only
// when neither yields an identity does Resolve return ErrUnauthenticated.
// Store failures return ErrBackendUnavailable without trying the bearer.
func (e *Engine) Resolve(ctx context.Context, r *http.Request) (*Identity, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
		defer func() { e.metrics.Observe(MetricResolveLatency, time.Since(start)) }()
	}

	id, err := e.resolve(ctx, r)
	if err != nil {
		e.metricInc(MetricResolveFailure)
		return nil, err
	}
	e.metricInc(MetricResolveSuccess)
	return id, nil
}

func (e *Engine) resolve(ctx context.Context, r *http.Request) (*Identity, error) {
	if raw, ok := session.Read(r, e.cookie); ok {
		if claims, err := e.jwt.ParseSession(raw); err == nil {
			acct, err := e.accountForCredential(ctx, claims.UID, "", claims.SessionVersion)
			if err == nil {
				return &Identity{
					AccountID:      acct.ID,
					Email:          acct.Email,
					Name:           acct.Name,
					Role:           acct.Role,
					Channel:        ChannelBrowser,
					StepUp:         stepUpState(acct.Role, claims.StepUp),
					SessionVersion: acct.SessionVersion,
					ExpiresAt:      claims.ExpiresAt.Time,
				}, nil
			}
			if !errors.Is(err, ErrUnauthenticated) {
				return nil, err
			}
		}
	}

	raw, ok := bearerToken(r)
	if !ok {
		return nil, ErrUnauthenticated
	}
	claims, err := e.jwt.ParseMobile(raw)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	acct, err := e.accountForCredential(ctx, claims.ID, claims.Email, claims.SessionVersion)
	if err != nil {
		return nil, err
	}
	return &Identity{
		AccountID:      acct.ID,
		Email:          acct.Email,
		Name:           acct.Name,
		Role:           acct.Role,
		Channel:        ChannelMobile,
		StepUp:         stepUpState(acct.Role, claims.MFAComplete),
		SessionVersion: acct.SessionVersion,
		ExpiresAt:      claims.ExpiresAt(),
	}, nil
}

// accountForCredential loads the account a credential names. Bearer tokens
// are looked up by email and must still match the embedded id; session
// tokens are looked up by id.
func (e *Engine) accountForCredential(ctx context.Context, id, email string, version int64) (Account, error) {
	var (
		acct Account
		err  error
	)
	if email != "" {
		acct, err = e.accounts.GetAccountByEmail(ctx, normalizeEmail(email))
	} else {
		acct, err = e.accounts.GetAccountByID(ctx, id)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Account{}, ErrUnauthenticated
		}
		return Account{}, e.backendError("resolve_account", err)
	}

	if acct.ID != id || acct.Suspended || acct.SessionVersion != version {
		return Account{}, ErrUnauthenticated
	}
	return acct, nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(h[7:])
	return tok, tok != ""
}
