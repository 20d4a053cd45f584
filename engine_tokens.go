package stepAuth

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/MrEthical07/stepAuth/internal"
	"go.uber.org/zap"
)

// IssueVerificationToken creates a single-use token for (email, purpose),
// replacing any live token for the same pair. The token expires after
// Tokens.VerificationTTL.
func (e *Engine) IssueVerificationToken(ctx context.Context, email string, purpose TokenPurpose) (VerificationToken, error) {
	if err := e.ready(); err != nil {
		return VerificationToken{}, err
	}
	if !purpose.Valid() {
		return VerificationToken{}, ErrInvalidPurpose
	}
	email = normalizeEmail(email)
	if !validEmail(email) {
		return VerificationToken{}, ErrInvalidEmail
	}

	value, err := internal.NewTokenValue()
	if err != nil {
		return VerificationToken{}, e.backendError("token_generate", err)
	}

	tok := VerificationToken{
		Email:     email,
		Value:     value,
		Purpose:   purpose,
		ExpiresAt: e.now().Add(e.config.Tokens.VerificationTTL),
	}
	if err := e.tokens.SaveVerificationToken(ctx, tok); err != nil {
		return VerificationToken{}, e.backendError("save_verification_token", err)
	}

	e.metricInc(MetricTokenIssued)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventTokenIssued,
		email:     email,
		success:   true,
		metadata:  map[string]string{"purpose": string(purpose)},
	})
	return tok, nil
}

// ConsumeVerificationToken redeems value for purpose and returns the bound
// email. Checks run in order: unknown (ErrTokenNotFound), purpose
// (ErrTokenWrongPurpose, token kept), expiry (ErrTokenExpired, token
// discarded). A token redeems exactly once; later calls see ErrTokenNotFound.
func (e *Engine) ConsumeVerificationToken(ctx context.Context, value string, purpose TokenPurpose) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if value == "" {
		return "", e.tokenRejected(ctx, "", purpose, ErrTokenNotFound)
	}

	tok, err := e.tokens.GetVerificationToken(ctx, value)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", e.tokenRejected(ctx, "", purpose, ErrTokenNotFound)
		}
		return "", e.backendError("get_verification_token", err)
	}

	if tok.Purpose != purpose {
		return "", e.tokenRejected(ctx, tok.Email, purpose, ErrTokenWrongPurpose)
	}

	if tok.Expired(e.now()) {
		if _, err := e.tokens.DeleteVerificationToken(ctx, value); err != nil {
			e.logger.Debug("expired token cleanup failed", zap.Error(err))
		}
		return "", e.tokenRejected(ctx, tok.Email, purpose, ErrTokenExpired)
	}

	deleted, err := e.tokens.DeleteVerificationToken(ctx, value)
	if err != nil {
		return "", e.backendError("delete_verification_token", err)
	}
	if !deleted {
		// lost a race with a concurrent consumer
		return "", e.tokenRejected(ctx, tok.Email, purpose, ErrTokenNotFound)
	}

	e.metricInc(MetricTokenConsumed)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventTokenConsumed,
		email:     tok.Email,
		success:   true,
		metadata:  map[string]string{"purpose": string(purpose)},
	})
	return tok.Email, nil
}

func (e *Engine) tokenRejected(ctx context.Context, email string, purpose TokenPurpose, err error) error {
	e.metricInc(MetricTokenRejected)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventTokenRejected,
		email:     email,
		err:       err,
		metadata:  map[string]string{"purpose": string(purpose)},
	})
	return err
}

// IssueOneTimeCode creates a numeric code for email, replacing any previous
// one. The code expires after Tokens.CodeTTL.
func (e *Engine) IssueOneTimeCode(ctx context.Context, email string) (OneTimeCode, error) {
	if err := e.ready(); err != nil {
		return OneTimeCode{}, err
	}
	email = normalizeEmail(email)
	if !validEmail(email) {
		return OneTimeCode{}, ErrInvalidEmail
	}

	code, err := internal.NewOTP(e.config.Tokens.CodeDigits)
	if err != nil {
		return OneTimeCode{}, e.backendError("code_generate", err)
	}

	c := OneTimeCode{
		Email:     email,
		Code:      code,
		ExpiresAt: e.now().Add(e.config.Tokens.CodeTTL),
	}
	if err := e.tokens.SaveOneTimeCode(ctx, c); err != nil {
		return OneTimeCode{}, e.backendError("save_one_time_code", err)
	}

	e.metricInc(MetricCodeIssued)
	e.emitAudit(ctx, auditRecord{eventType: auditEventCodeIssued, email: email, success: true})
	return c, nil
}

// VerifyOneTimeCode checks candidate against the live code for email.
// Checks run in order: no code (ErrTokenNotFound), mismatch (ErrCodeMismatch,
// code kept), expiry (ErrTokenExpired, code discarded). The comparison is
// exact and constant-time; success deletes the code.
func (e *Engine) VerifyOneTimeCode(ctx context.Context, email, candidate string) error {
	if err := e.ready(); err != nil {
		return err
	}
	email = normalizeEmail(email)

	c, err := e.tokens.GetOneTimeCode(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return e.codeRejected(ctx, email, ErrTokenNotFound)
		}
		return e.backendError("get_one_time_code", err)
	}

	if subtle.ConstantTimeCompare([]byte(c.Code), []byte(candidate)) != 1 {
		return e.codeRejected(ctx, email, ErrCodeMismatch)
	}

	if c.Expired(e.now()) {
		if _, err := e.tokens.DeleteOneTimeCode(ctx, email, c.Code); err != nil {
			e.logger.Debug("expired code cleanup failed", zap.Error(err))
		}
		return e.codeRejected(ctx, email, ErrTokenExpired)
	}

	deleted, err := e.tokens.DeleteOneTimeCode(ctx, email, c.Code)
	if err != nil {
		return e.backendError("delete_one_time_code", err)
	}
	if !deleted {
		return e.codeRejected(ctx, email, ErrTokenNotFound)
	}

	e.emitAudit(ctx, auditRecord{eventType: auditEventCodeVerified, email: email, success: true})
	return nil
}

func (e *Engine) codeRejected(ctx context.Context, email string, err error) error {
	e.emitAudit(ctx, auditRecord{eventType: auditEventCodeRejected, email: email, err: err})
	return err
}

// issueAndSendToken issues a token and hands it to the notifier. Delivery
// failure is logged, not returned.
func (e *Engine) issueAndSendToken(ctx context.Context, email string, purpose TokenPurpose) error {
	tok, err := e.IssueVerificationToken(ctx, email, purpose)
	if err != nil {
		return err
	}
	if err := e.notifier.SendVerificationToken(ctx, tok.Email, tok); err != nil {
		e.notifyFailed(ctx, tok.Email, string(purpose), err)
	}
	return nil
}

func (e *Engine) sendStepUpCode(ctx context.Context, acct Account) error {
	c, err := e.IssueOneTimeCode(ctx, acct.Email)
	if err != nil {
		return err
	}
	if err := e.notifier.SendOneTimeCode(ctx, c.Email, c); err != nil {
		e.notifyFailed(ctx, c.Email, "one_time_code", err)
	}
	return nil
}

func (e *Engine) notifyFailed(ctx context.Context, email, kind string, err error) {
	e.metricInc(MetricNotifyFailure)
	e.logger.Warn("notification delivery failed",
		zap.String("email", email),
		zap.String("kind", kind),
		zap.Error(err),
	)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventNotificationFailure,
		email:     email,
		err:       err,
		metadata:  map[string]string{"kind": kind},
	})
}
