package stepAuth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestVerificationTokenLifecycle(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	tok, err := te.IssueVerificationToken(ctx, "A@Example.com", PurposePasswordReset)
	if err != nil {
		t.Fatalf("IssueVerificationToken failed: %v", err)
	}
	if tok.Email != "a@example.com" || tok.Value == "" {
		t.Fatalf("unexpected token %+v", tok)
	}
	if d := tok.ExpiresAt.Sub(te.clock.Now()); d != time.Hour {
		t.Fatalf("expected 1h expiry, got %s", d)
	}

	email, err := te.ConsumeVerificationToken(ctx, tok.Value, PurposePasswordReset)
	if err != nil {
		t.Fatalf("ConsumeVerificationToken failed: %v", err)
	}
	if email != "a@example.com" {
		t.Fatalf("expected email a@example.com, got %q", email)
	}

	if _, err := te.ConsumeVerificationToken(ctx, tok.Value, PurposePasswordReset); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected second consumption to fail with ErrTokenNotFound, got %v", err)
	}
}

func TestIssueReplacesPreviousTokenForSamePurpose(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	first, _ := te.IssueVerificationToken(ctx, "a@example.com", PurposeEmailVerification)
	second, _ := te.IssueVerificationToken(ctx, "a@example.com", PurposeEmailVerification)
	other, _ := te.IssueVerificationToken(ctx, "a@example.com", PurposePasswordChange)

	if first.Value == second.Value {
		t.Fatal("expected distinct token values")
	}
	if _, err := te.ConsumeVerificationToken(ctx, first.Value, PurposeEmailVerification); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected replaced token to be gone, got %v", err)
	}
	if _, err := te.ConsumeVerificationToken(ctx, second.Value, PurposeEmailVerification); err != nil {
		t.Fatalf("expected latest token to redeem, got %v", err)
	}
	if _, err := te.ConsumeVerificationToken(ctx, other.Value, PurposePasswordChange); err != nil {
		t.Fatalf("expected other purpose token to survive, got %v", err)
	}
}

func TestConsumeWrongPurposeKeepsToken(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	tok, _ := te.IssueVerificationToken(ctx, "a@example.com", PurposeEmailVerification)

	if _, err := te.ConsumeVerificationToken(ctx, tok.Value, PurposePasswordReset); !errors.Is(err, ErrTokenWrongPurpose) {
		t.Fatalf("expected ErrTokenWrongPurpose, got %v", err)
	}
	if _, err := te.ConsumeVerificationToken(ctx, tok.Value, PurposeEmailVerification); err != nil {
		t.Fatalf("expected token to survive a wrong-purpose attempt, got %v", err)
	}
}

func TestConsumeExpiredToken(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	tok, _ := te.IssueVerificationToken(ctx, "a@example.com", PurposePasswordReset)
	te.clock.Advance(time.Hour)

	if _, err := te.ConsumeVerificationToken(ctx, tok.Value, PurposePasswordReset); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if _, err := te.ConsumeVerificationToken(ctx, tok.Value, PurposePasswordReset); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected expired token to be discarded, got %v", err)
	}
}

func TestConsumeErrorOrder(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	tok, _ := te.IssueVerificationToken(ctx, "a@example.com", PurposeEmailVerification)
	te.clock.Advance(2 * time.Hour)

	// expired and wrong purpose: purpose is reported first
	if _, err := te.ConsumeVerificationToken(ctx, tok.Value, PurposePasswordReset); !errors.Is(err, ErrTokenWrongPurpose) {
		t.Fatalf("expected ErrTokenWrongPurpose before expiry, got %v", err)
	}
	if _, err := te.ConsumeVerificationToken(ctx, "does-not-exist", PurposeEmailVerification); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestConsumeIsSingleUseUnderConcurrency(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	tok, _ := te.IssueVerificationToken(ctx, "a@example.com", PurposePasswordReset)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := te.ConsumeVerificationToken(ctx, tok.Value, PurposePasswordReset); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one successful consumption, got %d", wins.Load())
	}
}

func TestIssueVerificationTokenRejectsBadInput(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := te.IssueVerificationToken(ctx, "a@example.com", "login"); !errors.Is(err, ErrInvalidPurpose) {
		t.Fatalf("expected ErrInvalidPurpose, got %v", err)
	}
	if _, err := te.IssueVerificationToken(ctx, "not-an-email", PurposePasswordReset); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestOneTimeCodeLifecycle(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	c, err := te.IssueOneTimeCode(ctx, "root@example.com")
	if err != nil {
		t.Fatalf("IssueOneTimeCode failed: %v", err)
	}
	if len(c.Code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", c.Code)
	}
	if d := c.ExpiresAt.Sub(te.clock.Now()); d != 10*time.Minute {
		t.Fatalf("expected 10m expiry, got %s", d)
	}

	wrong := "000000"
	if c.Code == wrong {
		wrong = "111111"
	}
	if err := te.VerifyOneTimeCode(ctx, "root@example.com", wrong); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("expected ErrCodeMismatch, got %v", err)
	}
	if err := te.VerifyOneTimeCode(ctx, "root@example.com", " "+c.Code); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("expected exact comparison, got %v", err)
	}

	if err := te.VerifyOneTimeCode(ctx, "root@example.com", c.Code); err != nil {
		t.Fatalf("expected mismatch not to consume the code, got %v", err)
	}
	if err := te.VerifyOneTimeCode(ctx, "root@example.com", c.Code); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected consumed code to be gone, got %v", err)
	}
}

func TestOneTimeCodeUpsertAndExpiry(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	first, _ := te.IssueOneTimeCode(ctx, "root@example.com")
	second, _ := te.IssueOneTimeCode(ctx, "root@example.com")
	if first.Code != second.Code {
		if err := te.VerifyOneTimeCode(ctx, "root@example.com", first.Code); !errors.Is(err, ErrCodeMismatch) {
			t.Fatalf("expected superseded code to mismatch, got %v", err)
		}
	}

	te.clock.Advance(10 * time.Minute)
	if err := te.VerifyOneTimeCode(ctx, "root@example.com", second.Code); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if err := te.VerifyOneTimeCode(ctx, "root@example.com", second.Code); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected expired code to be discarded, got %v", err)
	}
}

func TestAllowFixedWindow(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	for i := int64(1); i <= 4; i++ {
		res, err := te.Allow(ctx, "client-1", 3, time.Minute)
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if res.Count != i || res.Allowed != (i <= 3) {
			t.Fatalf("hit %d: unexpected result %+v", i, res)
		}
	}

	te.mr.FastForward(time.Minute)
	res, err := te.Allow(ctx, "client-1", 3, time.Minute)
	if err != nil || !res.Allowed || res.Count != 1 {
		t.Fatalf("expected window reset, got %+v %v", res, err)
	}
}

func TestAllowBackendUnavailable(t *testing.T) {
	te := newTestEngine(t, nil)
	te.mr.Close()

	if _, err := te.Allow(context.Background(), "k", 1, time.Minute); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}
