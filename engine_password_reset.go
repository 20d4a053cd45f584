package stepAuth

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// RequestPasswordReset sends a password-reset token to email if an active
// account exists. It returns nil for unknown and suspended emails alike so
// callers cannot probe which addresses are registered. Only throttling and
// backend failures surface as errors.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}
	email = normalizeEmail(email)
	if err := e.throttle(ctx, ActionPasswordReset, email); err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetRequest)

	acct, err := e.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return e.backendError("get_account_by_email", err)
	}
	if acct.Suspended {
		return nil
	}

	return e.issueAndSendToken(ctx, acct.Email, PurposePasswordReset)
}

// ResetPassword redeems a password-reset token, stores the new password and
// revokes every outstanding credential for the account. The password policy
// is checked before the token is consumed.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := e.setPasswordWithToken(ctx, token, PurposePasswordReset, newPassword); err != nil {
		return err
	}
	e.metricInc(MetricPasswordResetSuccess)
	return nil
}

// RequestPasswordChange sends a password-change token to the identity's
// email. Privileged identities must have completed step-up.
func (e *Engine) RequestPasswordChange(ctx context.Context, id *Identity) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := RequireStepUp(id); err != nil {
		return err
	}
	if err := e.throttle(ctx, ActionPasswordReset, id.Email); err != nil {
		return err
	}
	return e.issueAndSendToken(ctx, id.Email, PurposePasswordChange)
}

// ConfirmPasswordChange redeems a password-change token and stores the new password.
func (e *Engine) ConfirmPasswordChange(ctx context.Context, token, newPassword string) error {
	if err := e.setPasswordWithToken(ctx, token, PurposePasswordChange, newPassword); err != nil {
		return err
	}
	e.metricInc(MetricPasswordChangeSuccess)
	return nil
}

func (e *Engine) setPasswordWithToken(ctx context.Context, token string, purpose TokenPurpose, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.checkPasswordPolicy(newPassword); err != nil {
		return err
	}
	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return ErrPasswordPolicy
	}

	email, err := e.ConsumeVerificationToken(ctx, token, purpose)
	if err != nil {
		return err
	}

	acct, err := e.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		return e.mapAccountError("get_account_by_email", err)
	}
	if _, err := e.accounts.UpdatePasswordHash(ctx, acct.ID, hash); err != nil {
		return e.mapAccountError("update_password_hash", err)
	}
	if _, err := e.accounts.IncrementSessionVersion(ctx, acct.ID); err != nil {
		// the password changed; old sessions stay valid until expiry
		e.logger.Error("session revocation after password update failed", zap.String("account_id", acct.ID), zap.Error(err))
	}

	eventType := auditEventPasswordReset
	if purpose == PurposePasswordChange {
		eventType = auditEventPasswordChange
	}
	e.emitAudit(ctx, auditRecord{eventType: eventType, accountID: acct.ID, email: acct.Email, success: true})
	return nil
}
