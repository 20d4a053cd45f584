package stepAuth

import (
	"context"
	"errors"
)

// RequireStepUp returns nil when id may act with full privilege,
// ErrStepUpRequired for a privileged identity still in StepUpPending, and
// ErrUnauthenticated for a nil identity.
func RequireStepUp(id *Identity) error {
	if id == nil {
		return ErrUnauthenticated
	}
	if id.StepUp == StepUpPending {
		return ErrStepUpRequired
	}
	return nil
}

// RequireStepUp is the method form of the package-level RequireStepUp.
func (e *Engine) RequireStepUp(id *Identity) error {
	return RequireStepUp(id)
}

// RequestStepUpCode issues and sends a fresh step-up code. Only privileged
// identities in StepUpPending may request one.
func (e *Engine) RequestStepUpCode(ctx context.Context, id *Identity) error {
	if err := e.ready(); err != nil {
		return err
	}
	if id == nil {
		return ErrUnauthenticated
	}
	if id.StepUp != StepUpPending {
		return ErrForbidden
	}

	if err := e.throttle(ctx, ActionCodeResend, id.Email); err != nil {
		return err
	}

	acct, err := e.currentAccount(ctx, id)
	if err != nil {
		return err
	}
	return e.sendStepUpCode(ctx, acct)
}

// CompleteStepUp verifies code for a pending privileged identity and mints
// an upgraded credential on the identity's channel: a re-issued session
// token for browsers, a new bearer token for mobile. The previous mobile
// token is not revoked and keeps its original, un-stepped-up claims.
func (e *Engine) CompleteStepUp(ctx context.Context, id *Identity, code string) (*Credential, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if id == nil {
		return nil, ErrUnauthenticated
	}
	if id.StepUp != StepUpPending {
		return nil, ErrForbidden
	}

	if err := e.throttle(ctx, ActionCodeVerify, id.Email); err != nil {
		e.stepUpFailed(ctx, id, err)
		return nil, err
	}

	if err := e.VerifyOneTimeCode(ctx, id.Email, code); err != nil {
		e.stepUpFailed(ctx, id, err)
		return nil, err
	}

	acct, err := e.currentAccount(ctx, id)
	if err != nil {
		e.stepUpFailed(ctx, id, err)
		return nil, err
	}

	cred, err := e.issueCredential(id.Channel, acct, true)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricStepUpSuccess)
	e.emitAudit(ctx, auditRecord{eventType: auditEventStepUpSuccess, accountID: acct.ID, email: acct.Email, channel: id.Channel, success: true})
	return &cred, nil
}

func (e *Engine) stepUpFailed(ctx context.Context, id *Identity, err error) {
	e.metricInc(MetricStepUpFailure)
	e.emitAudit(ctx, auditRecord{eventType: auditEventStepUpFailure, accountID: id.AccountID, email: id.Email, channel: id.Channel, err: err})
}

// currentAccount re-reads the account behind id and rejects it if it has
// been suspended, demoted or had its sessions revoked since id was resolved.
func (e *Engine) currentAccount(ctx context.Context, id *Identity) (Account, error) {
	acct, err := e.accounts.GetAccountByID(ctx, id.AccountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Account{}, ErrUnauthenticated
		}
		return Account{}, e.backendError("get_account_by_id", err)
	}
	if acct.Suspended {
		return Account{}, ErrAccountSuspended
	}
	if acct.SessionVersion != id.SessionVersion || !acct.Role.Privileged() {
		return Account{}, ErrUnauthenticated
	}
	return acct, nil
}
