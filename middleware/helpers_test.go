package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	stepAuth "github.com/MrEthical07/stepAuth"
	"github.com/MrEthical07/stepAuth/password"
	"github.com/MrEthical07/stepAuth/store/memory"
	"golang.org/x/crypto/bcrypt"
)

type codeNotifier struct {
	stepAuth.NopNotifier
	mu   sync.Mutex
	last string
}

func (n *codeNotifier) SendOneTimeCode(_ context.Context, _ string, c stepAuth.OneTimeCode) error {
	n.mu.Lock()
	n.last = c.Code
	n.mu.Unlock()
	return nil
}

func (n *codeNotifier) code() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}

type fixture struct {
	engine   *stepAuth.Engine
	accounts *memory.Store
	notifier *codeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := stepAuth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(strings.Repeat("m", 32))
	cfg.Password.BcryptCost = bcrypt.MinCost

	f := &fixture{accounts: memory.NewStore(), notifier: &codeNotifier{}}
	engine, err := stepAuth.New().
		WithConfig(cfg).
		WithAccountStore(f.accounts).
		WithTokenStore(stepAuth.NewMemoryTokenStore()).
		WithNotifier(f.notifier).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	f.engine = engine

	hasher, err := password.NewHasher(password.Config{BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	for email, role := range map[string]stepAuth.Role{
		"user@example.com":  stepAuth.RoleUser,
		"admin@example.com": stepAuth.RoleAdmin,
	} {
		hash, err := hasher.Hash("correct-horse")
		if err != nil {
			t.Fatalf("Hash failed: %v", err)
		}
		if _, err := f.accounts.CreateAccount(context.Background(), stepAuth.NewAccount{Email: email, PasswordHash: hash, Role: role}); err != nil {
			t.Fatalf("CreateAccount failed: %v", err)
		}
	}
	return f
}

// browserCookie logs in through the browser channel and returns the cookie.
func (f *fixture) browserCookie(t *testing.T, email string, stepUp bool) *http.Cookie {
	t.Helper()
	ctx := context.Background()

	login, err := f.engine.LoginBrowser(ctx, email, "correct-horse")
	if err != nil {
		t.Fatalf("LoginBrowser failed: %v", err)
	}
	cred := login.Credential
	if stepUp {
		upgraded, err := f.engine.CompleteStepUp(ctx, &login.Identity, f.notifier.code())
		if err != nil {
			t.Fatalf("CompleteStepUp failed: %v", err)
		}
		cred = *upgraded
	}

	rec := httptest.NewRecorder()
	f.engine.WriteSessionCookie(rec, cred)
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	return cookies[0]
}

func (f *fixture) bearer(t *testing.T, email string) string {
	t.Helper()
	login, err := f.engine.LoginMobile(context.Background(), email, "correct-horse")
	if err != nil {
		t.Fatalf("LoginMobile failed: %v", err)
	}
	return login.Credential.Token
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})
