package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-authgate/speaknative/internal/apierror"
	"github.com/go-authgate/speaknative/internal/devapi"
	"github.com/go-authgate/speaknative/internal/refresh"
	"github.com/go-authgate/speaknative/internal/tokenstore"
)

type testEnv struct {
	api    *devapi.Server
	client *Client
	store  *tokenstore.CookieStore
}

func newTestEnv(t *testing.T, hooks refresh.Hooks) *testEnv {
	t.Helper()
	return newTestEnvWith(t, Options{Hooks: hooks})
}

// newTestEnvWith starts a devapi server and builds a client from opts with
// the base URL, store and jar filled in.
func newTestEnvWith(t *testing.T, opts Options) *testEnv {
	t.Helper()
	api := devapi.New(devapi.Config{})
	api.AddUser("ana@example.com", "ana", "secret123")
	ts := httptest.NewServer(api)
	t.Cleanup(ts.Close)

	base := ts.URL + devapi.BasePath
	jar, err := tokenstore.NewJar()
	require.NoError(t, err)
	store, err := tokenstore.NewCookieStore(jar, base)
	require.NoError(t, err)

	opts.BaseURL, opts.Store, opts.Jar = base, store, jar
	client, err := New(opts)
	require.NoError(t, err)
	return &testEnv{api: api, client: client, store: store}
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	u, err := e.client.Login(context.Background(), "ana@example.com", "secret123")
	require.NoError(t, err)
	require.Equal(t, "ana", u.Username)
}

func TestNewValidatesBaseURL(t *testing.T) {
	store, err := tokenstore.NewCookieStore(nil, "http://localhost")
	require.NoError(t, err)

	for _, raw := range []string{"", "ftp://host/api", "http://"} {
		_, err := New(Options{BaseURL: raw, Store: store})
		assert.Error(t, err, raw)
	}
	_, err = New(Options{BaseURL: "http://localhost:8000/api/v1"})
	assert.Error(t, err)
}

func TestLoginStoresTokenAndLoadsProfile(t *testing.T) {
	env := newTestEnv(t, refresh.Hooks{})
	env.login(t)

	assert.NotEmpty(t, env.store.Cached())
	assert.Equal(t, env.store.Cached(), env.client.token())
	assert.Equal(t, int64(0), env.api.Stats().Refreshes)
}

func TestLoginFailureDoesNotRefresh(t *testing.T) {
	env := newTestEnv(t, refresh.Hooks{})

	_, err := env.client.Login(context.Background(), "ana@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, apierror.KindUnauthorized, apierror.Classify(err))
	assert.Contains(t, err.Error(), "Incorrect email or password")
	assert.Equal(t, int64(0), env.api.Stats().Refreshes)
	assert.Empty(t, env.store.Cached())
}

func TestConcurrentExpiredRequestsShareOneRefresh(t *testing.T) {
	var refreshed atomic.Int32
	env := newTestEnv(t, refresh.Hooks{OnRefreshed: func() { refreshed.Add(1) }})
	env.login(t)
	before := env.store.Cached()

	env.api.ExpireAccessTokens()

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.client.Me(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "request %d", i)
	}
	assert.Equal(t, int64(1), env.api.Stats().Refreshes)
	assert.Equal(t, int32(1), refreshed.Load())
	assert.NotEqual(t, before, env.store.Cached())
	assert.Equal(t, refresh.Idle, env.client.Coordinator().State())
}

func TestSlowReplaysFinishWithinOneTimeout(t *testing.T) {
	const (
		callers = 4
		latency = 250 * time.Millisecond
	)
	slow := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if strings.HasSuffix(r.URL.Path, "/fix") {
			time.Sleep(latency)
		}
		return http.DefaultTransport.RoundTrip(r)
	})
	env := newTestEnvWith(t, Options{Transport: slow, Timeout: time.Second})
	env.login(t)
	env.api.ExpireAccessTokens()

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.client.Fix(context.Background(), "i has a cat")
		}()
	}
	wg.Wait()

	// Replayed one after another these would need callers+1 latencies,
	// past the one second client timeout.
	for i, err := range errs {
		assert.NoError(t, err, "request %d", i)
	}
	assert.Equal(t, int64(1), env.api.Stats().Refreshes)
}

func TestRefreshFailureEndsSession(t *testing.T) {
	ended := make(chan error, 1)
	env := newTestEnv(t, refresh.Hooks{OnSessionEnded: func(err error) { ended <- err }})
	env.login(t)

	env.api.ExpireAccessTokens()
	env.api.RevokeRefreshTokens()

	_, err := env.client.Me(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, refresh.ErrSessionTerminated))
	assert.Equal(t, apierror.KindSessionTerminated, apierror.Classify(err))
	assert.Empty(t, env.store.Cached())
	assert.Empty(t, env.client.token())

	hookErr := <-ended
	assert.ErrorIs(t, hookErr, refresh.ErrSessionTerminated)
	assert.Equal(t, int64(1), env.api.Stats().Refreshes)
}

func TestReplayResendsBody(t *testing.T) {
	env := newTestEnv(t, refresh.Hooks{})
	env.login(t)
	env.api.ExpireAccessTokens()

	res, err := env.client.Fix(context.Background(), "i goes home")
	require.NoError(t, err)
	assert.Equal(t, "i goes home", res.OriginalPhrase)
	assert.Equal(t, "I goes home.", res.CorrectedPhrase)
	assert.Equal(t, int64(1), env.api.Stats().Refreshes)
}

func TestLearningEndpoints(t *testing.T) {
	env := newTestEnv(t, refresh.Hooks{})
	env.login(t)
	ctx := context.Background()

	tr, err := env.client.Translate(ctx, "hola", "", "")
	require.NoError(t, err)
	assert.Equal(t, "[English] hola", tr.PrimaryTranslation)

	def, err := env.client.Define(ctx, "casa", "")
	require.NoError(t, err)
	assert.Equal(t, "casa", def.Word)
	require.Len(t, def.Definitions, 1)
}

func TestLogoutClearsSession(t *testing.T) {
	env := newTestEnv(t, refresh.Hooks{})
	env.login(t)

	require.NoError(t, env.client.Logout(context.Background()))
	assert.Empty(t, env.store.Cached())

	_, err := env.client.Me(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, refresh.ErrSessionTerminated)
}

func TestRegisterSignsIn(t *testing.T) {
	env := newTestEnv(t, refresh.Hooks{})
	u, err := env.client.Register(context.Background(), Registration{
		Email: "bo@example.com", Username: "bo", Password: "password1",
	})
	require.NoError(t, err)
	assert.Equal(t, "bo@example.com", u.Email)
	assert.NotEmpty(t, env.store.Cached())

	_, err = env.client.Register(context.Background(), Registration{
		Email: "bo@example.com", Username: "bo", Password: "password1",
	})
	assert.Equal(t, apierror.KindConflict, apierror.Classify(err))
}

func TestVerifyEmailAlreadyVerifiedIsSuccess(t *testing.T) {
	env := newTestEnv(t, refresh.Hooks{})
	token := env.api.IssueVerificationToken("ana@example.com")

	v, err := env.client.VerifyEmail(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, v.AlreadyVerified)

	_, err = env.client.VerifyEmail(context.Background(), "unknown")
	assert.Equal(t, apierror.KindValidation, apierror.Classify(err))
}

func TestPasswordReset(t *testing.T) {
	env := newTestEnv(t, refresh.Hooks{})
	ctx := context.Background()

	_, err := env.client.ForgotPassword(ctx, "ana@example.com")
	require.NoError(t, err)

	_, err = env.client.ResetPassword(ctx, env.api.IssueResetToken("ana@example.com"), "newsecret1")
	require.NoError(t, err)

	_, err = env.client.Login(ctx, "ana@example.com", "newsecret1")
	require.NoError(t, err)
}

func TestNetworkErrorPassesThrough(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	base := ts.URL + devapi.BasePath
	ts.Close()

	jar, err := tokenstore.NewJar()
	require.NoError(t, err)
	store, err := tokenstore.NewCookieStore(jar, base)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), "tok"))

	client, err := New(Options{BaseURL: base, Store: store, Jar: jar})
	require.NoError(t, err)

	_, err = client.Me(context.Background())
	require.Error(t, err)
	assert.Equal(t, apierror.KindNetwork, apierror.Classify(err))
	assert.Equal(t, "tok", store.Cached())
	assert.Equal(t, int64(0), client.Coordinator().Refreshes())
}

func TestGoogleLoginURL(t *testing.T) {
	got := GoogleLoginURL("http://localhost:8000/api/v1", "appscheme://callback")
	assert.Equal(t, "http://localhost:8000/api/v1/auth/google?redirect_uri=appscheme%3A%2F%2Fcallback", got)
}
