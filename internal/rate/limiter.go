package rate

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// WindowStore atomically increments the counter for key, opening a new window
// of the given length when none is active, and returns the post-increment count.
type WindowStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Result is the outcome of a single [Limiter.Allow] call.
type Result struct {
	Allowed bool
	Count   int64
}

// Limiter applies fixed-window limits over a [WindowStore].
type Limiter struct {
	store  WindowStore
	prefix string
}

// New creates a [Limiter]. Keys are namespaced with prefix when it is non-empty.
func New(store WindowStore, prefix string) *Limiter {
	return &Limiter{
		store:  store,
		prefix: strings.TrimSuffix(prefix, ":"),
	}
}

// Allow records one hit for key and reports whether it fits in limit hits per window.
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	if limit <= 0 || window <= 0 {
		return Result{}, ErrInvalidPolicy
	}
	if l == nil || l.store == nil {
		return Result{}, fmt.Errorf("%w: no store configured", ErrStoreUnavailable)
	}

	count, err := l.store.Incr(ctx, l.key(key), window)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Allowed: count <= int64(limit),
		Count:   count,
	}, nil
}

func (l *Limiter) key(key string) string {
	if l.prefix == "" {
		return key
	}
	return l.prefix + ":" + key
}
