package tokenstore

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/publicsuffix"
)

const (
	// CookieName is the cookie holding the access token.
	CookieName = "access_token"

	cookieLifetime = 7 * 24 * time.Hour
)

// NewJar returns the cookie jar shared by a CookieStore and the HTTP client, so
// the server's refresh cookie and the access token cookie live side by side.
func NewJar() (http.CookieJar, error) {
	return cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
}

// CookieStore keeps the token as a same-site cookie scoped to the API origin.
// Reads are synchronous.
type CookieStore struct {
	memory
	jar    http.CookieJar
	origin *url.URL
	now    func() time.Time
}

// NewCookieStore scopes the token cookie to the origin of apiBase.
func NewCookieStore(jar http.CookieJar, apiBase string) (*CookieStore, error) {
	u, err := url.Parse(apiBase)
	if err != nil {
		return nil, fmt.Errorf("invalid api base: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("api base %q has no host", apiBase)
	}
	origin := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}
	return &CookieStore{jar: jar, origin: origin, now: time.Now}, nil
}

func (s *CookieStore) Get(_ context.Context) (string, error) {
	return s.Cached(), nil
}

// Cached reads the jar directly so the value is correct before any network activity.
func (s *CookieStore) Cached() string {
	for _, c := range s.jar.Cookies(s.origin) {
		if c.Name == CookieName {
			return c.Value
		}
	}
	return ""
}

func (s *CookieStore) Set(_ context.Context, token string) error {
	s.jar.SetCookies(s.origin, []*http.Cookie{{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  s.now().Add(cookieLifetime),
		Secure:   s.origin.Scheme == "https",
		SameSite: http.SameSiteLaxMode,
	}})
	s.store(token)
	return nil
}

func (s *CookieStore) Remove(_ context.Context) error {
	s.jar.SetCookies(s.origin, []*http.Cookie{{
		Name:   CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	}})
	s.store("")
	return nil
}
