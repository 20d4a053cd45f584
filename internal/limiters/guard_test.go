package limiters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/stepAuth/internal/rate"
)

func newTestGuard() *Guard {
	return NewGuard(rate.New(rate.NewMemoryStore(), "rl"), map[Action]Policy{
		ActionLogin:      {Limit: 2, Window: time.Minute},
		ActionCodeVerify: {Limit: 1, Window: time.Minute},
	})
}

func TestGuardDeniesAfterLimit(t *testing.T) {
	g := newTestGuard()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := g.Check(ctx, ActionLogin, "10.0.0.1"); err != nil {
			t.Fatalf("hit %d: unexpected error %v", i+1, err)
		}
	}

	res, err := g.Check(ctx, ActionLogin, "10.0.0.1")
	if !errors.Is(err, rate.ErrRateLimited) {
		t.Fatalf("expected rate.ErrRateLimited, got %v", err)
	}
	if res.Count != 3 {
		t.Fatalf("expected count 3, got %d", res.Count)
	}
}

func TestGuardActionsDoNotShareWindows(t *testing.T) {
	g := newTestGuard()
	ctx := context.Background()

	if _, err := g.Check(ctx, ActionCodeVerify, "a@example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := g.Check(ctx, ActionLogin, "a@example.com"); err != nil {
		t.Fatalf("login must not share the code window: %v", err)
	}
}

func TestGuardFoldsSubjectCase(t *testing.T) {
	g := newTestGuard()
	ctx := context.Background()

	if _, err := g.Check(ctx, ActionCodeVerify, "Admin@Example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := g.Check(ctx, ActionCodeVerify, "admin@example.com "); !errors.Is(err, rate.ErrRateLimited) {
		t.Fatalf("expected shared window across case, got %v", err)
	}
}

func TestGuardUnknownAction(t *testing.T) {
	g := newTestGuard()
	if _, err := g.Check(context.Background(), ActionSignup, "x"); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
}

func TestNilGuardAllows(t *testing.T) {
	var g *Guard
	res, err := g.Check(context.Background(), ActionLogin, "x")
	if err != nil || !res.Allowed {
		t.Fatalf("nil guard must allow, got %+v %v", res, err)
	}
}
