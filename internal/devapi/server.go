// Package devapi is a development stand-in for the remote API. It implements the
// auth endpoints with short-lived JWT access tokens and a rotating HttpOnly
// refresh cookie, and answers the learning endpoints with canned results so the
// desktop and web clients can be exercised without the real backend.
package devapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/go-authgate/speaknative/internal/logging"
)

const (
	// BasePath is where the API is mounted.
	BasePath = "/api/v1"

	RefreshCookie = "refresh_token"

	defaultAccessTTL = 5 * time.Minute
)

// Config configures a Server.
type Config struct {
	Secret    []byte
	AccessTTL time.Duration
	// GoogleEmail is the account /auth/google signs in. Empty makes the
	// external login fail with access_denied.
	GoogleEmail string
	Logger      *slog.Logger
	Now         func() time.Time
}

type user struct {
	ID             int       `json:"id"`
	Email          string    `json:"email"`
	Username       string    `json:"username"`
	FullName       string    `json:"full_name,omitempty"`
	NativeLanguage string    `json:"native_language"`
	TargetLanguage string    `json:"target_language"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`

	password string
	verified bool
}

// Stats counts calls that tests and the dev console care about.
type Stats struct {
	Logins    int64
	Refreshes int64
	// Profiles counts /auth/me calls.
	Profiles int64
}

// Server is the development API.
type Server struct {
	cfg    Config
	log    *slog.Logger
	router chi.Router

	mu            sync.Mutex
	users         map[string]*user // by email
	refreshTokens map[string]string
	verifyTokens  map[string]string
	resetTokens   map[string]string
	nextID        int
	generation    int64

	logins    atomic.Int64
	refreshes atomic.Int64
	profiles  atomic.Int64
}

// New builds a Server.
func New(cfg Config) *Server {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if len(cfg.Secret) == 0 {
		cfg.Secret = []byte("speaknative-dev-secret")
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Discard()
	}

	s := &Server{
		cfg:           cfg,
		log:           log,
		users:         make(map[string]*user),
		refreshTokens: make(map[string]string),
		verifyTokens:  make(map[string]string),
		resetTokens:   make(map[string]string),
		nextID:        1,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route(BasePath, func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.handleLogin)
			r.Post("/register", s.handleRegister)
			r.Post("/refresh", s.handleRefresh)
			r.Post("/logout", s.handleLogout)
			r.Get("/verify-email", s.handleVerifyEmail)
			r.Post("/resend-verification", s.handleResendVerification)
			r.Post("/forgot-password", s.handleForgotPassword)
			r.Post("/reset-password", s.handleResetPassword)
			r.Get("/google", s.handleGoogle)
			r.With(s.requireBearer).Get("/me", s.handleMe)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireBearer)
			r.Post("/fix", s.handleFix)
			r.Post("/translate", s.handleTranslate)
			r.Post("/define", s.handleDefine)
		})
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// AddUser seeds a verified account.
func (s *Server) AddUser(email, username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addUserLocked(email, username, password, true)
}

func (s *Server) addUserLocked(email, username, password string, verified bool) *user {
	u := &user{
		ID:             s.nextID,
		Email:          email,
		Username:       username,
		NativeLanguage: "Spanish",
		TargetLanguage: "English",
		IsActive:       true,
		CreatedAt:      s.cfg.Now().UTC(),
		password:       password,
		verified:       verified,
	}
	s.nextID++
	s.users[email] = u
	return u
}

// ExpireAccessTokens invalidates every access token issued so far, as if they
// had all reached their expiry at once.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	s.generation++
	s.mu.Unlock()
}

// RevokeRefreshTokens invalidates every refresh cookie.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	s.refreshTokens = make(map[string]string)
	s.mu.Unlock()
}

// Stats returns call counters.
func (s *Server) Stats() Stats {
	return Stats{
		Logins:    s.logins.Load(),
		Refreshes: s.refreshes.Load(),
		Profiles:  s.profiles.Load(),
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("devapi",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Duration("dur", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

var errBadJSON = errors.New("invalid JSON body")

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		return errBadJSON
	}
	return nil
}
