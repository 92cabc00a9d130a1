package devapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type ctxKey struct{}

// accessClaims adds the issuing generation so ExpireAccessTokens can retire
// every outstanding token at once.
type accessClaims struct {
	Generation int64 `json:"gen"`
	jwt.RegisteredClaims
}

func (s *Server) issueAccessToken(email string) (string, error) {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	now := s.cfg.Now()
	claims := accessClaims{
		Generation: gen,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
}

func (s *Server) parseAccessToken(raw string) (*user, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return s.cfg.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.cfg.Now),
	)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if claims.Generation != s.generation {
		return nil, errors.New("token expired")
	}
	u, ok := s.users[claims.Subject]
	if !ok {
		return nil, fmt.Errorf("unknown subject %q", claims.Subject)
	}
	return u, nil
}

// startSession issues an access token and sets a fresh refresh cookie.
func (s *Server) startSession(w http.ResponseWriter, email string) (string, error) {
	access, err := s.issueAccessToken(email)
	if err != nil {
		return "", err
	}

	refresh := uuid.NewString()
	s.mu.Lock()
	s.refreshTokens[refresh] = email
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    refresh,
		Path:     BasePath + "/auth",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   30 * 24 * 60 * 60,
	})
	return access, nil
}

func clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    "",
		Path:     BasePath + "/auth",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		u, err := s.parseAccessToken(raw)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, u)))
	})
}

func currentUser(r *http.Request) *user {
	u, _ := r.Context().Value(ctxKey{}).(*user)
	return u
}
