package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newMemoryLimiter(t *testing.T) (*Limiter, *MemoryStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	store := NewMemoryStore()
	store.now = clock.Now
	return New(store, "rl"), store, clock
}

func newRedisLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return New(NewRedisStore(rdb), "rl"), mr
}

func TestMemoryAllowCountsWithinWindow(t *testing.T) {
	limiter, _, _ := newMemoryLimiter(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := limiter.Allow(ctx, "login:10.0.0.1", 3, time.Minute)
		if err != nil {
			t.Fatalf("Allow error: %v", err)
		}
		if !res.Allowed || res.Count != int64(i) {
			t.Fatalf("hit %d: got %+v", i, res)
		}
	}

	res, err := limiter.Allow(ctx, "login:10.0.0.1", 3, time.Minute)
	if err != nil {
		t.Fatalf("Allow error: %v", err)
	}
	if res.Allowed || res.Count != 4 {
		t.Fatalf("expected 4th hit denied, got %+v", res)
	}
}

func TestMemoryWindowResets(t *testing.T) {
	limiter, _, clock := newMemoryLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = limiter.Allow(ctx, "k", 2, time.Minute)
	}

	clock.now = clock.now.Add(time.Minute)

	res, err := limiter.Allow(ctx, "k", 2, time.Minute)
	if err != nil {
		t.Fatalf("Allow error: %v", err)
	}
	if !res.Allowed || res.Count != 1 {
		t.Fatalf("expected fresh window, got %+v", res)
	}
}

func TestMemoryKeysAreIndependent(t *testing.T) {
	limiter, _, _ := newMemoryLimiter(t)
	ctx := context.Background()

	_, _ = limiter.Allow(ctx, "a", 1, time.Minute)
	res, _ := limiter.Allow(ctx, "a", 1, time.Minute)
	if res.Allowed {
		t.Fatal("expected key a to be limited")
	}

	res, _ = limiter.Allow(ctx, "b", 1, time.Minute)
	if !res.Allowed {
		t.Fatal("expected key b to be allowed")
	}
}

func TestMemorySweepDropsExpiredWindows(t *testing.T) {
	_, store, clock := newMemoryLimiter(t)
	ctx := context.Background()

	_, _ = store.Incr(ctx, "old", time.Second)
	clock.now = clock.now.Add(time.Minute)

	for i := 0; i < sweepEvery; i++ {
		_, _ = store.Incr(ctx, "hot", time.Hour)
	}

	if got := store.Len(); got != 1 {
		t.Fatalf("expected expired window to be swept, have %d windows", got)
	}
}

func TestAllowRejectsInvalidPolicy(t *testing.T) {
	limiter, _, _ := newMemoryLimiter(t)

	if _, err := limiter.Allow(context.Background(), "k", 0, time.Minute); !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy for zero limit, got %v", err)
	}
	if _, err := limiter.Allow(context.Background(), "k", 1, 0); !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy for zero window, got %v", err)
	}
}

func TestMemoryRespectsCanceledContext(t *testing.T) {
	limiter, _, _ := newMemoryLimiter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := limiter.Allow(ctx, "k", 1, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRedisAllowFixedWindow(t *testing.T) {
	limiter, mr := newRedisLimiter(t)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		res, err := limiter.Allow(ctx, "signup:1.2.3.4", 2, 10*time.Second)
		if err != nil {
			t.Fatalf("Allow error: %v", err)
		}
		if !res.Allowed || res.Count != int64(i) {
			t.Fatalf("hit %d: got %+v", i, res)
		}
	}

	res, err := limiter.Allow(ctx, "signup:1.2.3.4", 2, 10*time.Second)
	if err != nil {
		t.Fatalf("Allow error: %v", err)
	}
	if res.Allowed {
		t.Fatalf("expected third hit denied, got %+v", res)
	}

	if ttl := mr.TTL("rl:signup:1.2.3.4"); ttl <= 0 || ttl > 10*time.Second {
		t.Fatalf("unexpected window ttl %v", ttl)
	}

	mr.FastForward(11 * time.Second)

	res, err = limiter.Allow(ctx, "signup:1.2.3.4", 2, 10*time.Second)
	if err != nil {
		t.Fatalf("Allow error: %v", err)
	}
	if !res.Allowed || res.Count != 1 {
		t.Fatalf("expected window reset, got %+v", res)
	}
}

func TestRedisWindowNotExtendedByLaterHits(t *testing.T) {
	limiter, mr := newRedisLimiter(t)
	ctx := context.Background()

	_, _ = limiter.Allow(ctx, "k", 10, 10*time.Second)
	mr.FastForward(6 * time.Second)
	_, _ = limiter.Allow(ctx, "k", 10, 10*time.Second)

	if ttl := mr.TTL("rl:k"); ttl > 4*time.Second {
		t.Fatalf("later hit must not extend the window, ttl=%v", ttl)
	}
}

func TestRedisUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	limiter := New(NewRedisStore(rdb), "rl")
	mr.Close()

	_, err = limiter.Allow(context.Background(), "k", 1, time.Minute)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
