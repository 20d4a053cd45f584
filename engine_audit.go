package stepAuth

import (
	"context"
	"errors"
)

const (
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventLoginRateLimited    = "login_rate_limited"
	auditEventStepUpRequired      = "step_up_required"
	auditEventStepUpSuccess       = "step_up_success"
	auditEventStepUpFailure       = "step_up_failure"
	auditEventTokenIssued         = "token_issued"
	auditEventTokenConsumed       = "token_consumed"
	auditEventTokenRejected       = "token_rejected"
	auditEventCodeIssued          = "code_issued"
	auditEventCodeVerified        = "code_verified"
	auditEventCodeRejected        = "code_rejected"
	auditEventSignup              = "signup"
	auditEventEmailVerified       = "email_verified"
	auditEventPasswordReset       = "password_reset"
	auditEventPasswordChange      = "password_change"
	auditEventAccountSuspended    = "account_suspended"
	auditEventAccountRoleChanged  = "account_role_changed"
	auditEventLogoutAll           = "logout_all"
	auditEventRateLimitTriggered  = "rate_limit_triggered"
	auditEventNotificationFailure = "notification_failure"
)

type auditRecord struct {
	eventType string
	accountID string
	email     string
	channel   Channel
	success   bool
	err       error
	metadata  map[string]string
}

func (e *Engine) emitAudit(ctx context.Context, r auditRecord) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		Type:      r.eventType,
		AccountID: r.accountID,
		Email:     r.email,
		Channel:   string(r.channel),
		IP:        clientIPFromContext(ctx),
		Success:   r.success,
		Error:     auditErrorCode(r.err),
		Metadata:  r.metadata,
	}
	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, action RateLimitAction, subject string) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventRateLimitTriggered,
		err:       ErrRateLimited,
		metadata:  map[string]string{"action": string(action), "subject": subject},
	})
}

// auditErrorCode maps an error onto a stable code. Unknown errors become
// "internal_error" so raw messages never reach a sink.
func auditErrorCode(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrStepUpRequired):
		return "step_up_required"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTokenNotFound):
		return "token_not_found"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrTokenWrongPurpose):
		return "token_wrong_purpose"
	case errors.Is(err, ErrCodeMismatch):
		return "code_mismatch"
	case errors.Is(err, ErrAccountSuspended):
		return "account_suspended"
	case errors.Is(err, ErrAccountExists):
		return "duplicate"
	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, ErrPasswordPolicy):
		return "password_policy"
	case errors.Is(err, ErrBackendUnavailable):
		return "backend_unavailable"
	default:
		return "internal_error"
	}
}
