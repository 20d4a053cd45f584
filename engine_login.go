package stepAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/stepAuth/jwt"
	"go.uber.org/zap"
)

// dummyPassword is hashed once and compared against when no real hash
// exists, so unknown emails cost the same as wrong passwords.
const dummyPassword = "stepauth-timing-equalizer"

// Authenticate checks email and password against the account store.
//
// An unknown email, an account without a password hash and a wrong password
// all return ErrInvalidCredentials. Store failures return ErrBackendUnavailable.
// Authenticate has no side effects: it does not throttle, audit or rehash.
func (e *Engine) Authenticate(ctx context.Context, email, password string) (Account, error) {
	if err := e.ready(); err != nil {
		return Account{}, err
	}

	acct, err := e.accounts.GetAccountByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.burnPasswordCheck(password)
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, e.backendError("get_account_by_email", err)
	}
	if acct.PasswordHash == "" {
		e.burnPasswordCheck(password)
		return Account{}, ErrInvalidCredentials
	}

	ok, err := e.hasher.Verify(password, acct.PasswordHash)
	if err != nil {
		e.logger.Warn("stored password hash unusable", zap.String("account_id", acct.ID), zap.Error(err))
		return Account{}, ErrInvalidCredentials
	}
	if !ok {
		return Account{}, ErrInvalidCredentials
	}
	return acct, nil
}

func (e *Engine) burnPasswordCheck(password string) {
	e.dummyHashOnce.Do(func() {
		h, err := e.hasher.Hash(dummyPassword)
		if err == nil {
			e.dummyHash = h
		}
	})
	if e.dummyHash != "" {
		_, _ = e.hasher.Verify(password, e.dummyHash)
	}
}

// LoginBrowser authenticates and returns a browser session credential.
// Write it with WriteSessionCookie.
func (e *Engine) LoginBrowser(ctx context.Context, email, password string) (*LoginResult, error) {
	return e.login(ctx, ChannelBrowser, email, password)
}

// LoginMobile authenticates and returns a bearer token for mobile clients.
func (e *Engine) LoginMobile(ctx context.Context, email, password string) (*LoginResult, error) {
	return e.login(ctx, ChannelMobile, email, password)
}

func (e *Engine) login(ctx context.Context, channel Channel, email, password string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	email = normalizeEmail(email)

	// The per-address window runs first; the per-account window bounds
	// guessing against one email from many addresses.
	err := e.throttle(ctx, ActionLogin, throttleSubject(ctx, email))
	if err == nil {
		err = e.throttle(ctx, ActionLoginAccount, email)
	}
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditRecord{eventType: auditEventLoginRateLimited, email: email, channel: channel, err: err})
		}
		return nil, err
	}

	acct, err := e.Authenticate(ctx, email, password)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditRecord{eventType: auditEventLoginFailure, email: email, channel: channel, err: err})
		return nil, err
	}
	if acct.Suspended {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditRecord{eventType: auditEventLoginFailure, accountID: acct.ID, email: acct.Email, channel: channel, err: ErrAccountSuspended})
		return nil, ErrAccountSuspended
	}

	e.maybeRehash(ctx, acct, password)

	cred, err := e.issueCredential(channel, acct, false)
	if err != nil {
		return nil, err
	}

	result := &LoginResult{
		Account:    acct,
		Identity:   identityFor(acct, channel, false, cred),
		Credential: cred,
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditRecord{eventType: auditEventLoginSuccess, accountID: acct.ID, email: acct.Email, channel: channel, success: true})

	if result.Identity.StepUp == StepUpPending {
		e.metricInc(MetricStepUpRequired)
		e.emitAudit(ctx, auditRecord{eventType: auditEventStepUpRequired, accountID: acct.ID, email: acct.Email, channel: channel, success: true})
		if e.config.Tokens.SendCodeOnLogin {
			if err := e.sendStepUpCode(ctx, acct); err != nil {
				return nil, err
			}
			result.CodeSent = true
		}
	}

	return result, nil
}

// maybeRehash replaces a stored hash that is weaker than the current
// settings. Failures are logged and never fail the login.
func (e *Engine) maybeRehash(ctx context.Context, acct Account, password string) {
	if !e.config.Password.UpgradeOnLogin || !e.hasher.NeedsRehash(acct.PasswordHash) {
		return
	}
	hash, err := e.hasher.Hash(password)
	if err != nil {
		e.logger.Warn("password rehash failed", zap.String("account_id", acct.ID), zap.Error(err))
		return
	}
	if _, err := e.accounts.UpdatePasswordHash(ctx, acct.ID, hash); err != nil {
		e.logger.Warn("password rehash not stored", zap.String("account_id", acct.ID), zap.Error(err))
	}
}

// issueCredential mints the channel's credential for acct. stepUp is only
// honored for privileged roles.
func (e *Engine) issueCredential(channel Channel, acct Account, stepUp bool) (Credential, error) {
	stepUp = stepUp && acct.Role.Privileged()

	switch channel {
	case ChannelBrowser:
		ttl := e.config.Session.TTL
		raw, err := e.jwt.SignSession(jwt.SessionClaims{
			UID:            acct.ID,
			Email:          acct.Email,
			Name:           acct.Name,
			Role:           string(acct.Role),
			StepUp:         stepUp,
			SessionVersion: acct.SessionVersion,
		}, ttl)
		if err != nil {
			return Credential{}, e.signError(err)
		}
		return Credential{Channel: ChannelBrowser, Token: raw, ExpiresAt: e.now().Add(ttl)}, nil

	case ChannelMobile:
		ttl := e.config.Mobile.TTL
		raw, err := e.jwt.SignMobile(jwt.MobileClaims{
			ID:             acct.ID,
			Email:          acct.Email,
			Role:           string(acct.Role),
			MFAComplete:    stepUp,
			SessionVersion: acct.SessionVersion,
		}, ttl)
		if err != nil {
			return Credential{}, e.signError(err)
		}
		return Credential{Channel: ChannelMobile, Token: raw, ExpiresAt: e.now().Add(ttl)}, nil

	default:
		return Credential{}, ErrUnauthenticated
	}
}

func (e *Engine) signError(err error) error {
	e.logger.Error("token signing failed", zap.Error(err))
	return ErrEngineNotReady
}

func identityFor(acct Account, channel Channel, stepUp bool, cred Credential) Identity {
	return Identity{
		AccountID:      acct.ID,
		Email:          acct.Email,
		Name:           acct.Name,
		Role:           acct.Role,
		Channel:        channel,
		StepUp:         stepUpState(acct.Role, stepUp),
		SessionVersion: acct.SessionVersion,
		ExpiresAt:      cred.ExpiresAt,
	}
}
