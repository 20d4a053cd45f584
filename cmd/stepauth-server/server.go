package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"time"

	stepAuth "github.com/MrEthical07/stepAuth"
	"github.com/MrEthical07/stepAuth/metrics/export/prometheus"
	"github.com/MrEthical07/stepAuth/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 16

type server struct {
	engine *stepAuth.Engine
	outbox *outbox // nil unless the dev outbox is enabled
	logger *zap.Logger

	// trustProxy honours X-Forwarded-For and X-Real-IP. Enable it only
	// behind a proxy that overwrites those headers.
	trustProxy bool
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if s.trustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(middleware.WithClientIP)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", prometheus.New(s.engine).Handler())

	// Pages sit behind the route gate.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Gate(s.engine))
		r.Get("/", s.page("home"))
		r.Get("/login", s.page("login"))
		r.Get("/signup", s.page("signup"))
		r.Get("/verify-email", s.page("verify email"))
		r.Get("/forgot-password", s.page("forgot password"))
		r.Get("/reset-password", s.page("reset password"))
		r.Get("/verify-otp", s.page("verify one-time code"))
		r.Get("/dashboard", s.page("dashboard"))
		r.Get("/admin", s.page("admin"))
		r.Get("/admin/*", s.page("admin"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Post("/signup", s.handleSignup)
		r.Post("/verify-email", s.handleConfirmEmail)
		r.Post("/verify-email/resend", s.handleResendVerification)
		r.Post("/password/forgot", s.handleForgotPassword)
		r.Post("/password/reset", s.handleResetPassword)
		r.Post("/password/change/confirm", s.handleConfirmPasswordChange)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireIdentity(s.engine))
			r.Get("/me", s.handleMe)
			r.Post("/step-up/code", s.handleStepUpCode)
			r.Post("/step-up", s.handleStepUp)
			r.Post("/password/change", s.handleRequestPasswordChange)
			r.Post("/logout-all", s.handleLogoutAll)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(stepAuth.RoleAdmin))
				r.Use(middleware.RequireStepUp())
				r.Put("/accounts/{id}/role", s.handleSetRole)
				r.Put("/accounts/{id}/suspend", s.handleSetSuspended)
			})
		})
	})

	if s.outbox != nil {
		r.Get("/dev/outbox", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, s.outbox.list())
		})
	}

	return r
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}

func (s *server) page(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		who := "anonymous"
		if id, ok := stepAuth.IdentityFromContext(r.Context()); ok {
			who = html.EscapeString(fmt.Sprintf("%s (%s)", id.Email, id.Role))
		}
		fmt.Fprintf(w, "<!doctype html><title>%s</title><h1>%s</h1><p>%s</p>\n", title, title, who)
	}
}

// ---------- sessions ----------

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Channel  string `json:"channel"`
}

type identityResponse struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Role      string    `json:"role"`
	Channel   string    `json:"channel"`
	StepUp    string    `json:"step_up"`
	Home      string    `json:"home"`
	ExpiresAt time.Time `json:"expires_at"`
}

type loginResponse struct {
	Identity identityResponse `json:"identity"`
	Token    string           `json:"token,omitempty"`
	CodeSent bool             `json:"code_sent"`
}

func (s *server) identityJSON(id *stepAuth.Identity) identityResponse {
	return identityResponse{
		AccountID: id.AccountID,
		Email:     id.Email,
		Name:      id.Name,
		Role:      string(id.Role),
		Channel:   string(id.Channel),
		StepUp:    id.StepUp.String(),
		Home:      id.HomePath(s.engine.Routes()),
		ExpiresAt: id.ExpiresAt,
	}
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	var (
		res *stepAuth.LoginResult
		err error
	)
	switch stepAuth.Channel(req.Channel) {
	case "", stepAuth.ChannelBrowser:
		res, err = s.engine.LoginBrowser(r.Context(), req.Email, req.Password)
	case stepAuth.ChannelMobile:
		res, err = s.engine.LoginMobile(r.Context(), req.Email, req.Password)
	default:
		badRequest(w)
		return
	}
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	out := loginResponse{Identity: s.identityJSON(&res.Identity), CodeSent: res.CodeSent}
	if res.Credential.Channel == stepAuth.ChannelMobile {
		out.Token = res.Credential.Token
	} else {
		s.engine.WriteSessionCookie(w, res.Credential)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.engine.Logout(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := stepAuth.IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, s.identityJSON(id))
}

func (s *server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	id, _ := stepAuth.IdentityFromContext(r.Context())
	if err := s.engine.LogoutAll(r.Context(), id.AccountID); err != nil {
		middleware.WriteError(w, err)
		return
	}
	s.engine.Logout(w)
	w.WriteHeader(http.StatusNoContent)
}

// ---------- step-up ----------

func (s *server) handleStepUpCode(w http.ResponseWriter, r *http.Request) {
	id, _ := stepAuth.IdentityFromContext(r.Context())
	if err := s.engine.RequestStepUpCode(r.Context(), id); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type codeRequest struct {
	Code string `json:"code"`
}

func (s *server) handleStepUp(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decode(w, r, &req) {
		return
	}
	id, _ := stepAuth.IdentityFromContext(r.Context())
	cred, err := s.engine.CompleteStepUp(r.Context(), id, req.Code)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	upgraded := *id
	upgraded.StepUp = stepAuth.StepUpVerified
	upgraded.ExpiresAt = cred.ExpiresAt
	out := loginResponse{Identity: s.identityJSON(&upgraded)}
	if cred.Channel == stepAuth.ChannelMobile {
		out.Token = cred.Token
	} else {
		s.engine.WriteSessionCookie(w, *cred)
	}
	writeJSON(w, http.StatusOK, out)
}

// ---------- accounts ----------

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type accountResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name,omitempty"`
	Role          string `json:"role"`
	Suspended     bool   `json:"suspended"`
	EmailVerified bool   `json:"email_verified"`
}

func accountJSON(a *stepAuth.Account) accountResponse {
	return accountResponse{
		ID:            a.ID,
		Email:         a.Email,
		Name:          a.Name,
		Role:          string(a.Role),
		Suspended:     a.Suspended,
		EmailVerified: a.EmailVerifiedAt != nil,
	}
}

func (s *server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decode(w, r, &req) {
		return
	}
	acct, err := s.engine.Signup(r.Context(), stepAuth.SignupRequest{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     stepAuth.Role(req.Role),
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, accountJSON(acct))
}

type tokenRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

func (s *server) handleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decode(w, r, &req) {
		return
	}
	acct, err := s.engine.ConfirmEmail(r.Context(), req.Token)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountJSON(acct))
}

func (s *server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.engine.RequestEmailVerification(r.Context(), req.Email); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.engine.RequestPasswordReset(r.Context(), req.Email); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.engine.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		middleware.WriteError(w, err)
		return
	}
	s.engine.Logout(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleRequestPasswordChange(w http.ResponseWriter, r *http.Request) {
	id, _ := stepAuth.IdentityFromContext(r.Context())
	if err := s.engine.RequestPasswordChange(r.Context(), id); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) handleConfirmPasswordChange(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.engine.ConfirmPasswordChange(r.Context(), req.Token, req.Password); err != nil {
		middleware.WriteError(w, err)
		return
	}
	s.engine.Logout(w)
	w.WriteHeader(http.StatusNoContent)
}

// ---------- admin ----------

type roleRequest struct {
	Role string `json:"role"`
}

type suspendRequest struct {
	Suspended bool `json:"suspended"`
}

func (s *server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !decode(w, r, &req) {
		return
	}
	acct, err := s.engine.SetRole(r.Context(), chi.URLParam(r, "id"), stepAuth.Role(req.Role))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountJSON(acct))
}

func (s *server) handleSetSuspended(w http.ResponseWriter, r *http.Request) {
	var req suspendRequest
	if !decode(w, r, &req) {
		return
	}
	acct, err := s.engine.SetSuspended(r.Context(), chi.URLParam(r, "id"), req.Suspended)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountJSON(acct))
}

// ---------- helpers ----------

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "body_too_large"})
			return false
		}
		badRequest(w)
		return false
	}
	return true
}

func badRequest(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
