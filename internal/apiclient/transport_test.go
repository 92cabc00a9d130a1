package apiclient

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-authgate/speaknative/internal/logging"
	"github.com/go-authgate/speaknative/internal/refresh"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

type sent struct {
	auth, requestID, body string
}

type fixedRefresher struct {
	token string
	calls int
}

func (f *fixedRefresher) Refresh(context.Context) (string, error) {
	f.calls++
	return f.token, nil
}

type tokenBox struct {
	mu    sync.Mutex
	token string
}

func (b *tokenBox) Set(_ context.Context, token string) error {
	b.mu.Lock()
	b.token = token
	b.mu.Unlock()
	return nil
}

func (b *tokenBox) Remove(ctx context.Context) error { return b.Set(ctx, "") }

func (b *tokenBox) get() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token
}

func response(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader("{}")), Header: http.Header{}}
}

func newTestTransport(box *tokenBox, ref *fixedRefresher, next roundTripFunc) *authTransport {
	return &authTransport{
		next:   next,
		tokens: box.get,
		coord:  refresh.New(ref, box, refresh.WithCurrentToken(box.get)),
		log:    logging.Discard(),
	}
}

func TestAuthTransport_ReplaysBodyAndRequestID(t *testing.T) {
	box := &tokenBox{token: "old"}
	ref := &fixedRefresher{token: "new"}
	var calls []sent
	tr := newTestTransport(box, ref, func(r *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(r.Body)
		calls = append(calls, sent{r.Header.Get("Authorization"), r.Header.Get(headerRequestID), string(body)})
		if r.Header.Get("Authorization") == "Bearer old" {
			return response(http.StatusUnauthorized), nil
		}
		return response(http.StatusOK), nil
	})

	req, err := http.NewRequest(http.MethodPost, "http://api.test/api/v1/fix", strings.NewReader(`{"phrase":"x"}`))
	require.NoError(t, err)
	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Len(t, calls, 2)
	assert.Equal(t, "Bearer new", calls[1].auth)
	assert.Equal(t, calls[0].body, calls[1].body)
	assert.Equal(t, `{"phrase":"x"}`, calls[1].body)
	assert.NotEmpty(t, calls[0].requestID)
	assert.Equal(t, calls[0].requestID, calls[1].requestID)
	assert.Equal(t, 1, ref.calls)
	assert.Equal(t, "new", box.get())
}

func TestAuthTransport_SupersededTokenSkipsRefresh(t *testing.T) {
	box := &tokenBox{token: "old"}
	ref := &fixedRefresher{token: "never"}
	var auths []string
	tr := newTestTransport(box, ref, func(r *http.Request) (*http.Response, error) {
		auths = append(auths, r.Header.Get("Authorization"))
		if r.Header.Get("Authorization") == "Bearer old" {
			// Another caller signed in while this request was in flight.
			_ = box.Set(context.Background(), "other")
			return response(http.StatusUnauthorized), nil
		}
		return response(http.StatusOK), nil
	})

	req, err := http.NewRequest(http.MethodGet, "http://api.test/api/v1/auth/me", nil)
	require.NoError(t, err)
	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{"Bearer old", "Bearer other"}, auths)
	assert.Equal(t, 0, ref.calls)
}

func TestAuthTransport_RefreshDisabledPassesThrough(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		url  string
	}{
		{name: "refresh endpoint", ctx: context.Background(), url: "http://api.test/api/v1/auth/refresh"},
		{name: "credential call", ctx: withoutRefresh(context.Background()), url: "http://api.test/api/v1/auth/login"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := &fixedRefresher{token: "new"}
			tr := newTestTransport(&tokenBox{token: "old"}, ref, func(*http.Request) (*http.Response, error) {
				return response(http.StatusUnauthorized), nil
			})
			req, err := http.NewRequestWithContext(tt.ctx, http.MethodPost, tt.url, nil)
			require.NoError(t, err)
			resp, err := tr.RoundTrip(req)
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, 0, ref.calls)
		})
	}
}

func TestAuthTransport_NonAuthErrorsPassThrough(t *testing.T) {
	ref := &fixedRefresher{token: "new"}
	tr := newTestTransport(&tokenBox{token: "tok"}, ref, func(*http.Request) (*http.Response, error) {
		return response(http.StatusForbidden), nil
	})
	req, err := http.NewRequest(http.MethodGet, "http://api.test/api/v1/auth/me", nil)
	require.NoError(t, err)
	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, ref.calls)
}
