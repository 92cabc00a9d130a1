package devapi

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email          string `json:"email"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	FullName       string `json:"full_name"`
	NativeLanguage string `json:"native_language"`
	TargetLanguage string `json:"target_language"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	u, ok := s.users[req.Email]
	valid := ok && u.password == req.Password
	verified := ok && u.verified
	s.mu.Unlock()

	if !valid {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	if !verified {
		writeDetail(w, http.StatusForbidden, "Please verify your email before logging in")
		return
	}

	access, err := s.startSession(w, req.Email)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	s.logins.Add(1)
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: access, TokenType: "bearer"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	var problems []map[string]any
	if !strings.Contains(req.Email, "@") {
		problems = append(problems, map[string]any{"msg": "value is not a valid email address", "loc": []string{"body", "email"}})
	}
	if len(req.Password) < 8 {
		problems = append(problems, map[string]any{"msg": "password must be at least 8 characters", "loc": []string{"body", "password"}})
	}
	if len(problems) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": problems})
		return
	}

	s.mu.Lock()
	if _, exists := s.users[req.Email]; exists {
		s.mu.Unlock()
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":   "email_taken",
			"message": "Email already registered",
		})
		return
	}
	u := s.addUserLocked(req.Email, req.Username, req.Password, true)
	u.FullName = req.FullName
	if req.NativeLanguage != "" {
		u.NativeLanguage = req.NativeLanguage
	}
	if req.TargetLanguage != "" {
		u.TargetLanguage = req.TargetLanguage
	}
	s.mu.Unlock()

	s.log.Info("verification link issued",
		slog.String("email", req.Email),
		slog.String("token", s.IssueVerificationToken(req.Email)))
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshes.Add(1)

	c, err := r.Cookie(RefreshCookie)
	if err != nil || c.Value == "" {
		writeDetail(w, http.StatusUnauthorized, "Refresh token missing")
		return
	}

	s.mu.Lock()
	email, ok := s.refreshTokens[c.Value]
	// Rotation: a refresh token is good for one use.
	delete(s.refreshTokens, c.Value)
	s.mu.Unlock()

	if !ok {
		clearRefreshCookie(w)
		writeDetail(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	}

	access, err := s.startSession(w, email)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: access, TokenType: "bearer"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(RefreshCookie); err == nil {
		s.mu.Lock()
		delete(s.refreshTokens, c.Value)
		s.mu.Unlock()
	}
	clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.profiles.Add(1)
	writeJSON(w, http.StatusOK, currentUser(r))
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	s.mu.Lock()
	email, ok := s.verifyTokens[token]
	var u *user
	if ok {
		delete(s.verifyTokens, token)
		u = s.users[email]
	}
	s.mu.Unlock()

	if !ok || u == nil {
		writeDetail(w, http.StatusBadRequest, "Invalid or expired verification token")
		return
	}

	s.mu.Lock()
	already := u.verified
	u.verified = true
	s.mu.Unlock()

	if already {
		writeDetail(w, http.StatusBadRequest, "Email is already verified")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Email verified successfully!",
		"email":    u.Email,
		"username": u.Username,
	})
}

// IssueVerificationToken returns a one-time verification token for email.
func (s *Server) IssueVerificationToken(email string) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.verifyTokens[token] = email
	s.mu.Unlock()
	return token
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decode(w, r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	token := s.IssueVerificationToken(req.Email)
	s.log.Info("verification link issued", slog.String("email", req.Email), slog.String("token", token))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Verification email sent"})
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decode(w, r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	if _, ok := s.users[req.Email]; ok {
		token := uuid.NewString()
		s.resetTokens[token] = req.Email
		s.log.Info("password reset link issued", slog.String("email", req.Email), slog.String("token", token))
	}
	s.mu.Unlock()

	// Same answer whether or not the account exists.
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "If that email is registered, a reset link has been sent",
	})
}

// IssueResetToken returns a one-time password reset token for email.
func (s *Server) IssueResetToken(email string) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.resetTokens[token] = email
	s.mu.Unlock()
	return token
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := decode(w, r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.resetTokens[req.Token]
	if !ok {
		writeDetail(w, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}
	delete(s.resetTokens, req.Token)
	s.users[email].password = req.NewPassword
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset"})
}

// handleGoogle stands in for the browser-side OAuth round trip and redirects
// straight to the desktop callback.
func (s *Server) handleGoogle(w http.ResponseWriter, r *http.Request) {
	redirect, err := url.Parse(r.URL.Query().Get("redirect_uri"))
	if err != nil || redirect.Scheme == "" {
		writeDetail(w, http.StatusBadRequest, "redirect_uri is required")
		return
	}

	q := url.Values{}
	s.mu.Lock()
	_, known := s.users[s.cfg.GoogleEmail]
	s.mu.Unlock()

	if s.cfg.GoogleEmail == "" || !known {
		q.Set("error", "access_denied")
		q.Set("message", "Google sign-in is not configured for this server")
	} else {
		access, err := s.startSession(w, s.cfg.GoogleEmail)
		if err != nil {
			q.Set("error", "server_error")
			q.Set("message", "failed to issue token")
		} else {
			q.Set("access_token", access)
		}
	}
	redirect.RawQuery = q.Encode()
	http.Redirect(w, r, redirect.String(), http.StatusFound)
}
