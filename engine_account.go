package stepAuth

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"
)

// Signup creates an account with a hashed password. Role defaults to
// RoleUser; RoleAdmin cannot self-register. When email verification is
// enabled a verification token is issued and sent.
func (e *Engine) Signup(ctx context.Context, req SignupRequest) (*Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	email := normalizeEmail(req.Email)
	if err := e.throttle(ctx, ActionSignup, throttleSubject(ctx, email)); err != nil {
		return nil, err
	}

	if !validEmail(email) {
		return nil, ErrInvalidEmail
	}
	role := req.Role
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if role.Privileged() {
		return nil, ErrForbidden
	}
	if err := e.checkPasswordPolicy(req.Password); err != nil {
		return nil, err
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, ErrPasswordPolicy
	}

	acct, err := e.accounts.CreateAccount(ctx, NewAccount{
		Email:        email,
		PasswordHash: hash,
		Name:         req.Name,
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricSignupDuplicate)
			e.emitAudit(ctx, auditRecord{eventType: auditEventSignup, email: email, err: ErrAccountExists})
			return nil, ErrAccountExists
		}
		return nil, e.backendError("create_account", err)
	}

	e.metricInc(MetricSignupSuccess)
	e.emitAudit(ctx, auditRecord{eventType: auditEventSignup, accountID: acct.ID, email: acct.Email, success: true})

	if e.config.EmailVerification.Enabled {
		if err := e.issueAndSendToken(ctx, acct.Email, PurposeEmailVerification); err != nil {
			// the account exists; the user can request a new link later
			e.logger.Warn("verification token not issued after signup", zap.String("account_id", acct.ID), zap.Error(err))
		}
	}

	return &acct, nil
}

// RequestEmailVerification re-issues an email-verification token for an
// unverified account. Unknown and already verified emails succeed silently.
func (e *Engine) RequestEmailVerification(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}
	email = normalizeEmail(email)
	if err := e.throttle(ctx, ActionVerificationResend, email); err != nil {
		return err
	}

	acct, err := e.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return e.backendError("get_account_by_email", err)
	}
	if acct.EmailVerifiedAt != nil || acct.Suspended {
		return nil
	}
	return e.issueAndSendToken(ctx, acct.Email, PurposeEmailVerification)
}

// ConfirmEmail redeems an email-verification token and marks the account verified.
func (e *Engine) ConfirmEmail(ctx context.Context, token string) (*Account, error) {
	email, err := e.ConsumeVerificationToken(ctx, token, PurposeEmailVerification)
	if err != nil {
		return nil, err
	}

	acct, err := e.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, e.backendError("get_account_by_email", err)
	}

	acct, err = e.accounts.MarkEmailVerified(ctx, acct.ID, e.now().UTC())
	if err != nil {
		return nil, e.mapAccountError("mark_email_verified", err)
	}

	e.metricInc(MetricEmailVerified)
	e.emitAudit(ctx, auditRecord{eventType: auditEventEmailVerified, accountID: acct.ID, email: acct.Email, success: true})
	return &acct, nil
}

// LogoutAll revokes every outstanding session and bearer token for the
// account by advancing its session version.
func (e *Engine) LogoutAll(ctx context.Context, accountID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	acct, err := e.accounts.IncrementSessionVersion(ctx, accountID)
	if err != nil {
		return e.mapAccountError("increment_session_version", err)
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditRecord{eventType: auditEventLogoutAll, accountID: acct.ID, email: acct.Email, success: true})
	return nil
}

// SetRole changes an account's role and revokes its sessions so the change
// applies on the next request through either channel.
func (e *Engine) SetRole(ctx context.Context, accountID string, role Role) (*Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	if _, err := e.accounts.SetRole(ctx, accountID, role); err != nil {
		return nil, e.mapAccountError("set_role", err)
	}
	acct, err := e.accounts.IncrementSessionVersion(ctx, accountID)
	if err != nil {
		return nil, e.mapAccountError("increment_session_version", err)
	}

	e.metricInc(MetricRoleChanged)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventAccountRoleChanged,
		accountID: acct.ID,
		email:     acct.Email,
		success:   true,
		metadata:  map[string]string{"role": string(role)},
	})
	return &acct, nil
}

// SetSuspended suspends or reinstates an account. Suspension also revokes
// outstanding credentials.
func (e *Engine) SetSuspended(ctx context.Context, accountID string, suspended bool) (*Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	if _, err := e.accounts.SetSuspended(ctx, accountID, suspended); err != nil {
		return nil, e.mapAccountError("set_suspended", err)
	}
	acct, err := e.accounts.IncrementSessionVersion(ctx, accountID)
	if err != nil {
		return nil, e.mapAccountError("increment_session_version", err)
	}

	if suspended {
		e.metricInc(MetricAccountSuspended)
	}
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventAccountSuspended,
		accountID: acct.ID,
		email:     acct.Email,
		success:   true,
		metadata:  map[string]string{"suspended": strconv.FormatBool(suspended)},
	})
	return &acct, nil
}

func (e *Engine) checkPasswordPolicy(password string) error {
	if len(password) < e.config.Password.MinLength || len(password) > e.config.Password.MaxLength {
		return ErrPasswordPolicy
	}
	return nil
}

func (e *Engine) mapAccountError(op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return ErrAccountNotFound
	}
	return e.backendError(op, err)
}
