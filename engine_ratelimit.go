package stepAuth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/stepAuth/internal/rate"
)

// Allow records one hit for key in a fixed window and reports whether the
// post-increment count is within limit. It does not consult RateLimits.Enabled.
func (e *Engine) Allow(ctx context.Context, key string, limit int, window time.Duration) (AllowResult, error) {
	if e == nil || e.limiter == nil {
		return AllowResult{}, ErrEngineNotReady
	}
	res, err := e.limiter.Allow(ctx, key, limit, window)
	if err != nil {
		if errors.Is(err, rate.ErrInvalidPolicy) {
			return AllowResult{}, err
		}
		return AllowResult{}, e.backendError("rate_allow", err)
	}
	if !res.Allowed {
		e.metricInc(MetricRateLimitHit)
	}
	return res, nil
}

// AllowAction applies the configured policy for action to subject.
func (e *Engine) AllowAction(ctx context.Context, action RateLimitAction, subject string) error {
	return e.throttle(ctx, action, subject)
}

// throttle fails closed: a rate store outage rejects the action.
func (e *Engine) throttle(ctx context.Context, action RateLimitAction, subject string) error {
	if !e.config.RateLimits.Enabled {
		return nil
	}
	_, err := e.guard.Check(ctx, action, subject)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		e.emitRateLimit(ctx, action, subject)
		return ErrRateLimited
	default:
		return e.backendError("rate_"+string(action), err)
	}
}

// throttleSubject prefers the client IP for unauthenticated actions.
func throttleSubject(ctx context.Context, fallback string) string {
	if ip := clientIPFromContext(ctx); ip != "" {
		return ip
	}
	return fallback
}
