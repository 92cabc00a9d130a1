package shell

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-authgate/speaknative/internal/ipc"
	"github.com/go-authgate/speaknative/internal/logging"
	"github.com/go-authgate/speaknative/internal/tokenstore"
)

type recorder struct {
	mu    sync.Mutex
	items []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.items = append(r.items, s)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.items...)
}

type fakeLauncher struct{ recorder }

func (f *fakeLauncher) Launch(_ context.Context, role string) error {
	f.add(role)
	return nil
}

type fakeOpener struct{ recorder }

func (f *fakeOpener) Open(_ context.Context, url string) error {
	f.add(url)
	return nil
}

type testShell struct {
	sup      *Supervisor
	path     string
	launcher *fakeLauncher
	opener   *fakeOpener
}

func startShell(t *testing.T) *testShell {
	t.Helper()
	ts := &testShell{
		path:     ipc.SocketPath(t.TempDir()),
		launcher: &fakeLauncher{},
		opener:   &fakeOpener{},
	}
	ts.sup = New(Config{
		APIBase:  "http://localhost:8000/api/v1",
		Scheme:   "appscheme",
		Launcher: ts.launcher,
		Opener:   ts.opener,
		Logger:   logging.Discard(),
	})

	lis, err := ipc.Listen(context.Background(), ts.path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.sup.Run(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("shell did not stop")
		}
	})
	return ts
}

func (ts *testShell) dial(t *testing.T) *ipc.Client {
	t.Helper()
	c, err := ipc.Dial(ts.path, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// subscribe connects a window of role and returns its event channel.
func (ts *testShell) subscribe(t *testing.T, ctx context.Context, role string) <-chan *ipc.Event {
	t.Helper()
	stream, err := ts.dial(t).Subscribe(ctx, role)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return ts.sup.Connected(role) }, 5*time.Second, 10*time.Millisecond)

	events := make(chan *ipc.Event, 16)
	go func() {
		defer close(events)
		for {
			ev, err := stream.Recv()
			if err != nil {
				return
			}
			events <- ev
		}
	}()
	return events
}

func next(t *testing.T, events <-chan *ipc.Event, kind ipc.EventKind) *ipc.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "stream closed waiting for %s", kind)
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event", kind)
			return nil
		}
	}
}

func TestCrossWindowVisibility(t *testing.T) {
	ts := startShell(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	windowA := tokenstore.NewSharedStore(ts.dial(t), nil, nil)
	windowB := tokenstore.NewSharedStore(ts.dial(t), nil, nil)

	require.NoError(t, windowA.Set(ctx, "tok-a"))
	got, err := windowB.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-a", got)

	require.NoError(t, windowB.Remove(ctx))
	windowA.Invalidate()
	got, err = windowA.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSessionChangesArePushed(t *testing.T) {
	ts := startShell(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	quick := ts.subscribe(t, ctx, ipc.RoleQuickAccess)
	require.NoError(t, ts.dial(t).SetSharedToken(ctx, "tok"))

	ev := next(t, quick, ipc.EventSessionChanged)
	assert.True(t, ev.Present)
}

func TestSingleInstanceForwardsArgs(t *testing.T) {
	ts := startShell(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mainEvents := ts.subscribe(t, ctx, ipc.RoleMain)
	quickEvents := ts.subscribe(t, ctx, ipc.RoleQuickAccess)

	// A second launch cannot take the socket and forwards its command line.
	_, err := ipc.Listen(ctx, ts.path)
	require.ErrorIs(t, err, ipc.ErrAlreadyRunning)
	require.NoError(t, ts.dial(t).ForwardArgs(ctx,
		[]string{"speaknative", "appscheme://callback?access_token=from-browser"}))

	next(t, mainEvents, ipc.EventFocus)
	login := next(t, mainEvents, ipc.EventExternalLogin)
	require.NotNil(t, login.Login)
	assert.True(t, login.Login.Success)

	quickLogin := next(t, quickEvents, ipc.EventExternalLogin)
	assert.Equal(t, "from-browser", quickLogin.Login.AccessToken)

	token, err := ts.dial(t).GetSharedToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "from-browser", token)
	assert.Empty(t, ts.launcher.list())
}

func TestLoginErrorGoesToMainOnly(t *testing.T) {
	ts := startShell(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := ts.dial(t)
	require.NoError(t, client.SetSharedToken(ctx, "existing"))

	mainEvents := ts.subscribe(t, ctx, ipc.RoleMain)
	ts.subscribe(t, ctx, ipc.RoleQuickAccess)

	require.NoError(t, client.ForwardArgs(ctx,
		[]string{"speaknative", "appscheme://callback?error=access_denied&message=denied"}))

	ev := next(t, mainEvents, ipc.EventExternalLogin)
	assert.False(t, ev.Login.Success)
	assert.Equal(t, "access_denied", ev.Login.Error)

	token, err := client.GetSharedToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "existing", token)
}

func TestFocusLaunchesMainWhenClosed(t *testing.T) {
	ts := startShell(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := ts.dial(t)
	require.NoError(t, client.ShowMainWindow(ctx))
	require.NoError(t, client.ShowMainWindow(ctx))

	// The second request falls inside the launch grace period.
	assert.Equal(t, []string{ipc.RoleMain}, ts.launcher.list())
}

func TestHideQuickAccess(t *testing.T) {
	ts := startShell(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	quick := ts.subscribe(t, ctx, ipc.RoleQuickAccess)
	require.NoError(t, ts.dial(t).HideQuickAccess(ctx))
	next(t, quick, ipc.EventHide)
}

func TestOpenGoogleLogin(t *testing.T) {
	ts := startShell(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, ts.dial(t).OpenGoogleLogin(ctx))
	assert.Equal(t,
		[]string{"http://localhost:8000/api/v1/auth/google?redirect_uri=appscheme%3A%2F%2Fcallback"},
		ts.opener.list())
}

func TestOpenCommand(t *testing.T) {
	name, args := openCommand("linux", "https://x")
	assert.Equal(t, "xdg-open", name)
	assert.Equal(t, []string{"https://x"}, args)

	name, _ = openCommand("darwin", "https://x")
	assert.Equal(t, "open", name)

	name, args = openCommand("windows", "https://x")
	assert.Equal(t, "rundll32", name)
	assert.Equal(t, []string{"url.dll,FileProtocolHandler", "https://x"}, args)
}
