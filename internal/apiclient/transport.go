package apiclient

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/go-authgate/speaknative/internal/refresh"
)

const (
	headerRequestID = "X-Request-Id"
	refreshPath     = "/auth/refresh"
)

type noRefreshKey struct{}

// withoutRefresh marks requests whose 401 is an answer in its own right
// (bad credentials, expired reset link) rather than an expired session.
func withoutRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRefreshKey{}, true)
}

func refreshDisabled(req *http.Request) bool {
	v, _ := req.Context().Value(noRefreshKey{}).(bool)
	return v || strings.HasSuffix(req.URL.Path, refreshPath)
}

// authTransport attaches the bearer token to every request and routes 401s
// through the refresh coordinator.
type authTransport struct {
	next   http.RoundTripper
	tokens func() string
	coord  *refresh.Coordinator
	log    *slog.Logger
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	att, err := newAttempt(req)
	if err != nil {
		return nil, err
	}

	resp, err := t.send(att, t.tokens(), nil)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	// The refresh call itself and credential endpoints never recurse into a refresh.
	if refreshDisabled(req) {
		return resp, nil
	}
	discard(resp)

	replay := att.next()
	return t.coord.Recover(req.Context(), att.Token, func(token string, sent func()) (*http.Response, error) {
		return t.send(replay, token, sent)
	})
}

// send issues one attempt. sent, when set, runs right before the request is
// handed to the next transport.
func (t *authTransport) send(att *Attempt, token string, sent func()) (*http.Response, error) {
	r := att.build()
	att.Token = token

	r.Header.Set(headerRequestID, att.RequestID)
	r.Header.Del("Authorization")
	if token != "" {
		(&oauth2.Token{AccessToken: token}).SetAuthHeader(r)
	}

	if sent != nil {
		sent()
	}
	start := time.Now()
	resp, err := t.next.RoundTrip(r)

	attrs := []any{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("attempt", att.Number),
		slog.String("request_id", att.RequestID),
		slog.Duration("dur", time.Since(start)),
	}
	if err != nil {
		t.log.Debug("http", append(attrs, slog.Any("error", err))...)
		return nil, err
	}
	t.log.Debug("http", append(attrs, slog.Int("status", resp.StatusCode))...)
	return resp, nil
}

// discard drains and closes a response body so the connection can be reused.
func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
