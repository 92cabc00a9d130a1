package apiclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/go-authgate/speaknative/internal/apierror"
)

// ErrEmptyToken is returned when the server answers a login or refresh without a token.
var ErrEmptyToken = errors.New("server returned an empty access_token")

// tokenResponse decodes {"access_token": ...}; the refresh token travels as a cookie.
func (c *Client) tokenResponse(ctx context.Context, path string, in any) (string, error) {
	var tok oauth2.Token
	if err := c.do(ctx, http.MethodPost, path, nil, in, &tok); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", ErrEmptyToken
	}
	if tt := tok.Type(); tt != "Bearer" {
		return "", fmt.Errorf("unexpected token_type: %s (expected Bearer)", tt)
	}
	return tok.AccessToken, nil
}

// Login exchanges credentials for a session and loads the profile.
func (c *Client) Login(ctx context.Context, email, password string) (*SessionUser, error) {
	token, err := c.tokenResponse(withoutRefresh(ctx), "/auth/login",
		credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	c.Adopt(ctx, token)
	return c.Me(ctx)
}

// Adopt installs a token obtained elsewhere (an external login) as the session.
// A store that could not reach every replica still holds the token locally,
// so the failure is logged rather than returned.
func (c *Client) Adopt(ctx context.Context, token string) {
	if err := c.store.Set(ctx, token); err != nil {
		c.log.Warn("session stored only in some replicas", slog.Any("error", err))
	}
}

// Refresh asks the server for a new access token using the refresh cookie.
// It is the coordinator's Refresher; application code should not call it while
// requests are in flight.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()
	return c.tokenResponse(ctx, refreshPath, nil)
}

// Me loads the profile of the current session.
func (c *Client) Me(ctx context.Context) (*SessionUser, error) {
	var u SessionUser
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Logout ends the session on the server and clears every local replica. The
// local session is cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(withoutRefresh(ctx), http.MethodPost, "/auth/logout", nil, nil, nil)
	if err != nil {
		c.log.Warn("server logout failed", slog.Any("error", err))
	}
	if rmErr := c.store.Remove(ctx); rmErr != nil {
		return errors.Join(err, rmErr)
	}
	return nil
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, r Registration) (*SessionUser, error) {
	if err := c.do(withoutRefresh(ctx), http.MethodPost, "/auth/register", nil, r, nil); err != nil {
		return nil, err
	}
	return c.Login(ctx, r.Email, r.Password)
}

// VerifyEmail confirms an address. An address that was already verified is
// reported as success with AlreadyVerified set.
func (c *Client) VerifyEmail(ctx context.Context, token string) (*Verification, error) {
	var v Verification
	err := c.do(withoutRefresh(ctx), http.MethodGet, "/auth/verify-email",
		url.Values{"token": {token}}, nil, &v)
	if err == nil {
		return &v, nil
	}
	if apierror.Classify(err) == apierror.KindAlreadyVerified {
		return &Verification{Message: "Email has already been verified", AlreadyVerified: true}, nil
	}
	return nil, err
}

// ResendVerification asks for a new verification email.
func (c *Client) ResendVerification(ctx context.Context, email string) (*MessageResponse, error) {
	return c.message(ctx, "/auth/resend-verification", emailRequest{Email: email})
}

// ForgotPassword starts a password reset.
func (c *Client) ForgotPassword(ctx context.Context, email string) (*MessageResponse, error) {
	return c.message(ctx, "/auth/forgot-password", emailRequest{Email: email})
}

// ResetPassword completes a password reset.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) (*MessageResponse, error) {
	return c.message(ctx, "/auth/reset-password",
		resetPasswordRequest{Token: token, NewPassword: newPassword})
}

func (c *Client) message(ctx context.Context, path string, in any) (*MessageResponse, error) {
	var m MessageResponse
	if err := c.do(withoutRefresh(ctx), http.MethodPost, path, nil, in, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// GoogleLoginURL is where the system browser starts the external login. The
// server redirects to redirectURI with access_token or error/message.
func (c *Client) GoogleLoginURL(redirectURI string) string {
	return GoogleLoginURL(c.base.String(), redirectURI)
}

// GoogleLoginURL builds the external login URL for an API base.
func GoogleLoginURL(apiBase, redirectURI string) string {
	u, err := url.Parse(apiBase)
	if err != nil {
		return ""
	}
	u.Path = u.Path + "/auth/google"
	u.RawQuery = url.Values{"redirect_uri": {redirectURI}}.Encode()
	return u.String()
}
