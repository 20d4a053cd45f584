package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	stepAuth "github.com/MrEthical07/stepAuth"
)

func TestDecide(t *testing.T) {
	routes := stepAuth.DefaultConfig().Routes

	user := &stepAuth.Identity{Role: stepAuth.RoleUser, StepUp: stepAuth.StepUpNotRequired}
	employer := &stepAuth.Identity{Role: stepAuth.RoleEmployer, StepUp: stepAuth.StepUpNotRequired}
	pending := &stepAuth.Identity{Role: stepAuth.RoleAdmin, StepUp: stepAuth.StepUpPending}
	verified := &stepAuth.Identity{Role: stepAuth.RoleAdmin, StepUp: stepAuth.StepUpVerified}

	tests := []struct {
		name   string
		target string
		id     *stepAuth.Identity
		want   string
	}{
		{"public root anonymous", "/", nil, ""},
		{"public prefix anonymous", "/static/app.css", nil, ""},
		{"public jobs admin", "/jobs/42", pending, ""},
		{"login anonymous", "/login", nil, ""},
		{"signup anonymous", "/signup", nil, ""},
		{"login as user", "/login", user, "/dashboard"},
		{"signup as admin", "/signup", pending, "/admin"},
		{"anonymous private keeps destination", "/dashboard/jobs?tab=open", nil, "/login?next=%2Fdashboard%2Fjobs%3Ftab%3Dopen"},
		{"anonymous admin area", "/admin/users", nil, "/login?next=%2Fadmin%2Fusers"},
		{"pending admin area", "/admin/users", pending, "/verify-otp"},
		{"pending admin home", "/admin", pending, "/verify-otp"},
		{"verified admin area", "/admin/users", verified, ""},
		{"user admin area", "/admin", user, "/dashboard"},
		{"employer admin area", "/admin/users", employer, "/dashboard"},
		{"admin standard area", "/dashboard", verified, "/admin"},
		{"pending admin standard area", "/settings", pending, "/admin"},
		{"user standard area", "/dashboard", user, ""},
		{"admin-like path outside area", "/administrator", user, ""},
		{"step-up page pending", "/verify-otp", pending, ""},
		{"step-up page verified", "/verify-otp", verified, "/admin"},
		{"step-up page user", "/verify-otp", user, "/dashboard"},
		{"step-up page anonymous", "/verify-otp", nil, "/login?next=%2Fverify-otp"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Decide(routes, tc.target, tc.id)
			if got.Redirect != tc.want {
				t.Fatalf("Decide(%q) redirect = %q, want %q", tc.target, got.Redirect, tc.want)
			}
			if got.Pass() != (tc.want == "") {
				t.Fatalf("Pass() = %v with redirect %q", got.Pass(), got.Redirect)
			}
		})
	}
}

func serveGate(f *fixture, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	Gate(f.engine)(okHandler).ServeHTTP(rec, r)
	return rec
}

func TestGateAnonymous(t *testing.T) {
	f := newFixture(t)

	rec := serveGate(f, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if rec.Code != http.StatusTemporaryRedirect || rec.Header().Get("Location") != "/login?next=%2Fdashboard" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = serveGate(f, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected public page to pass, got %d", rec.Code)
	}

	rec = serveGate(f, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected api path to bypass the gate, got %d", rec.Code)
	}
}

func TestGateTreatsBadCookieAsAnonymous(t *testing.T) {
	f := newFixture(t)

	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	r.AddCookie(&http.Cookie{Name: stepAuth.DefaultConfig().Session.CookieName, Value: "not-a-token"})
	rec := serveGate(f, r)
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected redirect to login, got %d", rec.Code)
	}
}

func TestGateAdminStepUpFlow(t *testing.T) {
	f := newFixture(t)

	pending := f.browserCookie(t, "admin@example.com", false)
	r := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	r.AddCookie(pending)
	rec := serveGate(f, r)
	if rec.Header().Get("Location") != "/verify-otp" {
		t.Fatalf("expected step-up redirect, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	verified := f.browserCookie(t, "admin@example.com", true)
	r = httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	r.AddCookie(verified)

	var seen *stepAuth.Identity
	rec = httptest.NewRecorder()
	Gate(f.engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = stepAuth.IdentityFromContext(r.Context())
	})).ServeHTTP(rec, r)
	if rec.Code != http.StatusOK || seen == nil || seen.StepUp != stepAuth.StepUpVerified {
		t.Fatalf("expected verified admin to pass with identity, got %d %+v", rec.Code, seen)
	}
}

func TestGateUserKeptOutOfAdmin(t *testing.T) {
	f := newFixture(t)
	cookie := f.browserCookie(t, "user@example.com", false)

	r := httptest.NewRequest(http.MethodGet, "/admin", nil)
	r.AddCookie(cookie)
	if rec := serveGate(f, r); rec.Header().Get("Location") != "/dashboard" {
		t.Fatalf("expected redirect to user home, got %q", rec.Header().Get("Location"))
	}

	r = httptest.NewRequest(http.MethodGet, "/login", nil)
	r.AddCookie(cookie)
	if rec := serveGate(f, r); rec.Header().Get("Location") != "/dashboard" {
		t.Fatalf("expected logged-in user to leave the login page, got %q", rec.Header().Get("Location"))
	}
}
