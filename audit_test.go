package stepAuth

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func drainAudit(te *testEngine, sink *ChannelSink) []AuditEvent {
	te.Close()
	var events []AuditEvent
	for {
		select {
		case ev := <-sink.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}

func newAuditedEngine(t *testing.T) (*testEngine, *ChannelSink) {
	t.Helper()
	sink := NewChannelSink(128)
	te := newTestEngine(t, func(c *Config) {
		c.Audit.Enabled = true
		c.Audit.BufferSize = 128
	}, func(b *Builder) { b.WithAuditSink(sink) })
	return te, sink
}

func TestAuditLoginEvents(t *testing.T) {
	te, sink := newAuditedEngine(t)
	ctx := WithClientIP(context.Background(), "203.0.113.7")
	acct := te.seed(t, "u@example.com", "user-password", RoleUser)

	if _, err := te.LoginBrowser(ctx, "u@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := te.LoginBrowser(ctx, "u@example.com", "user-password"); err != nil {
		t.Fatalf("LoginBrowser failed: %v", err)
	}

	events := drainAudit(te, sink)
	var failure, success *AuditEvent
	for i := range events {
		switch events[i].Type {
		case "login_failure":
			failure = &events[i]
		case "login_success":
			success = &events[i]
		}
	}
	if failure == nil || failure.Error != "invalid_credentials" || failure.Success {
		t.Fatalf("unexpected failure event %+v", failure)
	}
	if success == nil || success.AccountID != acct.ID || success.Channel != "browser" || success.IP != "203.0.113.7" {
		t.Fatalf("unexpected success event %+v", success)
	}
}

func TestAuditNeverCarriesSecrets(t *testing.T) {
	te, sink := newAuditedEngine(t)
	ctx := context.Background()
	te.seed(t, "root@example.com", "admin-password", RoleAdmin)

	login, err := te.LoginMobile(ctx, "root@example.com", "admin-password")
	if err != nil {
		t.Fatalf("LoginMobile failed: %v", err)
	}
	code := te.notifier.lastCode(t).Code
	_, _ = te.CompleteStepUp(ctx, &login.Identity, "000000")
	if _, err := te.CompleteStepUp(ctx, &login.Identity, code); err != nil {
		t.Fatalf("CompleteStepUp failed: %v", err)
	}
	if err := te.RequestPasswordReset(ctx, "root@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	tok := te.notifier.lastToken(t, PurposePasswordReset).Value

	secrets := []string{"admin-password", code, tok, login.Credential.Token}
	for _, ev := range drainAudit(te, sink) {
		fields := []string{ev.Type, ev.AccountID, ev.Email, ev.Error}
		for _, v := range ev.Metadata {
			fields = append(fields, v)
		}
		for _, f := range fields {
			for _, s := range secrets {
				if s != "" && strings.Contains(f, s) {
					t.Fatalf("audit event %q leaked a secret", ev.Type)
				}
			}
		}
	}
}

func TestAuditErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrRateLimited, "rate_limited"},
		{ErrTokenWrongPurpose, "token_wrong_purpose"},
		{ErrAccountExists, "duplicate"},
		{errors.Join(ErrBackendUnavailable, errStoreDown), "backend_unavailable"},
		{errors.New("dial tcp 10.0.0.1:5432: secret detail"), "internal_error"},
	}
	for _, tc := range tests {
		if got := auditErrorCode(tc.err); got != tc.want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	sink := NewChannelSink(8)
	te := newTestEngine(t, nil, func(b *Builder) { b.WithAuditSink(sink) })
	te.seed(t, "u@example.com", "user-password", RoleUser)

	if _, err := te.LoginBrowser(context.Background(), "u@example.com", "user-password"); err != nil {
		t.Fatalf("LoginBrowser failed: %v", err)
	}
	if events := drainAudit(te, sink); len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}
