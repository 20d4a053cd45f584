// Command stepauth-loadtest measures the hot paths of a Redis-backed engine:
// credential resolution, fixed-window rate checks and one-time code
// round trips.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	stepAuth "github.com/MrEthical07/stepAuth"
	"github.com/MrEthical07/stepAuth/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const seedPassword = "load-test-password"

func main() {
	var (
		accounts    = flag.Int("accounts", 10000, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "sa-lt", "redis key prefix")
	)
	flag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	client, cleanup, err := connect(addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	engine, err := newEngine(client, *prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("seeding %d accounts...\n", *accounts)
	startSeed := time.Now()
	tokens, err := seed(ctx, engine, *accounts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	resolveStats := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand, _ int) error {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer "+tokens[r.Intn(len(tokens))])
		_, err := engine.Resolve(ctx, req)
		return err
	})

	allowStats := runPhase(*ops, *concurrency, 6151, func(r *rand.Rand, _ int) error {
		_, err := engine.Allow(ctx, fmt.Sprintf("lt:%d", r.Intn(*accounts)), 1000, time.Minute)
		return err
	})

	codeStats := runPhase(*ops, *concurrency, 4099, func(_ *rand.Rand, i int) error {
		email := accountEmail(i % *accounts)
		c, err := engine.IssueOneTimeCode(ctx, email)
		if err != nil {
			return err
		}
		return engine.VerifyOneTimeCode(ctx, email, c.Code)
	})

	fmt.Println("---- results ----")
	printStats("resolve", resolveStats)
	printStats("allow", allowStats)
	printStats("code", codeStats)
}

func connect(addr string) (redis.UniversalClient, func(), error) {
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func newEngine(client redis.UniversalClient, prefix string) (*stepAuth.Engine, error) {
	cfg := stepAuth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(strings.Repeat("l", 32))
	cfg.Password.BcryptCost = bcrypt.MinCost
	cfg.Metrics.EnableLatencyHistograms = true
	// Seeding and the code phase hit the same emails far more often than
	// any production policy allows.
	cfg.RateLimits.Enabled = false
	cfg.Redis.KeyPrefix = prefix

	return stepAuth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithAccountStore(memory.NewStore()).
		Build()
}

// seed signs up n user accounts and returns a mobile bearer token for each.
func seed(ctx context.Context, engine *stepAuth.Engine, n int) ([]string, error) {
	tokens := make([]string, 0, n)
	for i := 0; i < n; i++ {
		email := accountEmail(i)
		if _, err := engine.Signup(ctx, stepAuth.SignupRequest{Email: email, Password: seedPassword}); err != nil {
			return nil, err
		}
		login, err := engine.LoginMobile(ctx, email, seedPassword)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, login.Credential.Token)
	}
	return tokens, nil
}

func accountEmail(i int) string {
	return fmt.Sprintf("lt-%d@example.com", i)
}

// runPhase runs ops calls of fn across concurrency workers and records the
// latency of each.
func runPhase(ops, concurrency int, seed int64, fn func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := fn(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
