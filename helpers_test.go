package stepAuth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var testSigningKey = []byte(strings.Repeat("s", 32))

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = append([]byte(nil), testSigningKey...)
	cfg.Password.BcryptCost = bcrypt.MinCost
	cfg.Audit.Enabled = false
	return cfg
}

type testEngine struct {
	*Engine
	mr       *miniredis.Miniredis
	accounts *fakeAccounts
	notifier *captureNotifier
	clock    *testClock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestEngine(t testing.TB, mutate func(*Config), opts ...func(*Builder)) *testEngine {
	t.Helper()

	mr, rdb := newTestRedis(t)
	accounts := newFakeAccounts()
	notifier := &captureNotifier{}

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountStore(accounts).
		WithNotifier(notifier).
		WithLogger(zap.NewNop())
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	clock := &testClock{now: time.Now()}
	engine.now = clock.Now

	return &testEngine{
		Engine:   engine,
		mr:       mr,
		accounts: accounts,
		notifier: notifier,
		clock:    clock,
	}
}

// seed stores an account with a bcrypt hash of password.
func (te *testEngine) seed(t testing.TB, email, password string, role Role) Account {
	t.Helper()

	var hash string
	if password != "" {
		h, err := te.hasher.Hash(password)
		if err != nil {
			t.Fatalf("hash failed: %v", err)
		}
		hash = h
	}
	acct, err := te.accounts.CreateAccount(context.Background(), NewAccount{
		Email:        email,
		PasswordHash: hash,
		Name:         "Test " + string(role),
		Role:         role,
	})
	if err != nil {
		t.Fatalf("seed account failed: %v", err)
	}
	return acct
}

type fakeAccounts struct {
	mu      sync.Mutex
	byID    map[string]Account
	byEmail map[string]string
	failAll error
	updates int
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		byID:    make(map[string]Account),
		byEmail: make(map[string]string),
	}
}

func (f *fakeAccounts) fail(err error) {
	f.mu.Lock()
	f.failAll = err
	f.mu.Unlock()
}

func (f *fakeAccounts) GetAccountByEmail(_ context.Context, email string) (Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return Account{}, f.failAll
	}
	id, ok := f.byEmail[email]
	if !ok {
		return Account{}, ErrNotFound
	}
	return f.byID[id], nil
}

func (f *fakeAccounts) GetAccountByID(_ context.Context, id string) (Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return Account{}, f.failAll
	}
	acct, ok := f.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acct, nil
}

func (f *fakeAccounts) CreateAccount(_ context.Context, in NewAccount) (Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return Account{}, f.failAll
	}
	if _, ok := f.byEmail[in.Email]; ok {
		return Account{}, ErrAccountExists
	}
	acct := Account{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Name:         in.Name,
		Role:         in.Role,
		CreatedAt:    time.Now().UTC(),
	}
	f.byID[acct.ID] = acct
	f.byEmail[acct.Email] = acct.ID
	return acct, nil
}

func (f *fakeAccounts) update(id string, fn func(*Account)) (Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return Account{}, f.failAll
	}
	acct, ok := f.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	fn(&acct)
	f.byID[id] = acct
	f.updates++
	return acct, nil
}

func (f *fakeAccounts) UpdatePasswordHash(_ context.Context, id, hash string) (Account, error) {
	return f.update(id, func(a *Account) { a.PasswordHash = hash })
}

func (f *fakeAccounts) MarkEmailVerified(_ context.Context, id string, at time.Time) (Account, error) {
	return f.update(id, func(a *Account) { a.EmailVerifiedAt = &at })
}

func (f *fakeAccounts) SetRole(_ context.Context, id string, role Role) (Account, error) {
	return f.update(id, func(a *Account) { a.Role = role })
}

func (f *fakeAccounts) SetSuspended(_ context.Context, id string, suspended bool) (Account, error) {
	return f.update(id, func(a *Account) { a.Suspended = suspended })
}

func (f *fakeAccounts) IncrementSessionVersion(_ context.Context, id string) (Account, error) {
	return f.update(id, func(a *Account) { a.SessionVersion++ })
}

func (f *fakeAccounts) get(t *testing.T, id string) Account {
	t.Helper()
	acct, err := f.GetAccountByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get account %s: %v", id, err)
	}
	return acct
}

type captureNotifier struct {
	mu     sync.Mutex
	tokens []VerificationToken
	codes  []OneTimeCode
	err    error
}

func (n *captureNotifier) SendVerificationToken(_ context.Context, _ string, tok VerificationToken) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tokens = append(n.tokens, tok)
	return n.err
}

func (n *captureNotifier) SendOneTimeCode(_ context.Context, _ string, c OneTimeCode) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.codes = append(n.codes, c)
	return n.err
}

func (n *captureNotifier) lastToken(t *testing.T, purpose TokenPurpose) VerificationToken {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.tokens) - 1; i >= 0; i-- {
		if n.tokens[i].Purpose == purpose {
			return n.tokens[i]
		}
	}
	t.Fatalf("no %s token was sent", purpose)
	return VerificationToken{}
}

func (n *captureNotifier) lastCode(t *testing.T) OneTimeCode {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.codes) == 0 {
		t.Fatal("no one-time code was sent")
	}
	return n.codes[len(n.codes)-1]
}

func (n *captureNotifier) sentTokens() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.tokens)
}

var errStoreDown = errors.New("store down")
