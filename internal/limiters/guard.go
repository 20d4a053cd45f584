package limiters

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/stepAuth/internal/rate"
)

// Action names a throttled operation. It doubles as the key namespace.
type Action string

const (
	ActionLogin              Action = "login"
	ActionLoginAccount       Action = "login_account"
	ActionSignup             Action = "signup"
	ActionCodeResend         Action = "code_resend"
	ActionCodeVerify         Action = "code_verify"
	ActionVerificationResend Action = "verification_resend"
	ActionPasswordReset      Action = "password_reset"
)

var ErrUnknownAction = errors.New("no rate limit policy for action")

// Policy allows Limit hits per Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Guard maps actions to policies and evaluates them against a shared limiter.
type Guard struct {
	limiter  *rate.Limiter
	policies map[Action]Policy
}

func NewGuard(limiter *rate.Limiter, policies map[Action]Policy) *Guard {
	copied := make(map[Action]Policy, len(policies))
	for action, p := range policies {
		copied[action] = p
	}
	return &Guard{
		limiter:  limiter,
		policies: copied,
	}
}

// Check records a hit for subject under action. A denied hit returns
// rate.ErrRateLimited together with the observed result.
func (g *Guard) Check(ctx context.Context, action Action, subject string) (rate.Result, error) {
	if g == nil {
		return rate.Result{Allowed: true}, nil
	}

	p, ok := g.policies[action]
	if !ok {
		return rate.Result{}, ErrUnknownAction
	}

	res, err := g.limiter.Allow(ctx, Key(action, subject), p.Limit, p.Window)
	if err != nil {
		return rate.Result{}, err
	}
	if !res.Allowed {
		return res, rate.ErrRateLimited
	}
	return res, nil
}

func (g *Guard) Policy(action Action) (Policy, bool) {
	if g == nil {
		return Policy{}, false
	}
	p, ok := g.policies[action]
	return p, ok
}

// Key builds the counter key for an action and subject. Subjects are
// case-folded so "Alice@x" and "alice@x" share a window.
func Key(action Action, subject string) string {
	subject = strings.ToLower(strings.TrimSpace(subject))
	if subject == "" {
		subject = "-"
	}
	return string(action) + ":" + subject
}
