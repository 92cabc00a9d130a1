package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-authgate/speaknative/internal/apiclient"
	"github.com/go-authgate/speaknative/internal/extlogin"
	"github.com/go-authgate/speaknative/internal/ipc"
	"github.com/go-authgate/speaknative/internal/logging"
	"github.com/go-authgate/speaknative/internal/tokenstore"
	"github.com/go-authgate/speaknative/tui"
)

const (
	maxReconnects     = 5
	externalLoginWait = 5 * time.Minute
)

var reconnectDelay = time.Second

var errLoginTimedOut = errors.New("browser sign-in did not complete in time")

func runWindow(args []string) error {
	fs := flag.NewFlagSet("window", flag.ContinueOnError)
	common := registerCommonFlags(fs)
	role := fs.String("role", ipc.RoleMain, "window role: main or quick-access")
	ops := registerOperationFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *role != ipc.RoleMain && *role != ipc.RoleQuickAccess {
		return fmt.Errorf("unknown window role %q", *role)
	}

	cfg, err := loadConfig(common)
	if err != nil {
		return err
	}
	log := logging.New(os.Stderr, cfg.LogLevel).With(
		slog.String("process", "window"),
		slog.String("role", *role),
	)
	cfg.warn(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withDisplayer("SpeakNative ("+*role+")", func(d tui.Displayer) error {
		return windowSession(ctx, cfg, *role, ops, d, log)
	})
}

// window is one desktop window process. Its session lives in the shell; the
// window keeps a replica and follows the shell's event stream.
type window struct {
	role  string
	cfg   *config
	ops   *operations
	shell *ipc.Client
	store *tokenstore.SharedStore
	s     *session
	d     tui.Displayer
	log   *slog.Logger

	opsDone bool
	// loginDeadline is set while a browser sign-in is outstanding.
	loginDeadline time.Time
}

func windowSession(
	ctx context.Context,
	cfg *config,
	role string,
	ops *operations,
	d tui.Displayer,
	log *slog.Logger,
) error {
	conn, err := ipc.Dial(ipc.SocketPath(cfg.RuntimeDir), log)
	if err != nil {
		return err
	}
	defer conn.Close()

	store := tokenstore.NewSharedStore(
		conn,
		tokenstore.NewFileFallback(cfg.FallbackFile, cfg.APIBaseURL),
		log.With(slog.String("component", "tokenstore")),
	)
	s, err := newSession(cfg, store, nil, d, log)
	if err != nil {
		return err
	}

	w := &window{role: role, cfg: cfg, ops: ops, shell: conn, store: store, s: s, d: d, log: log}
	return w.run(ctx)
}

func (w *window) run(ctx context.Context) error {
	if err := w.store.Resync(ctx); err != nil {
		w.d.Degraded(err)
		if _, err := w.store.Get(ctx); err != nil {
			return err
		}
	}

	if w.s.restore(ctx) {
		w.signedIn(ctx)
	} else {
		w.signIn(ctx)
	}
	return w.listen(ctx)
}

// signIn starts a login: with configured credentials directly, otherwise
// through the browser. The quick-access window never starts a browser login
// of its own; it picks up the main window's through the shell.
func (w *window) signIn(ctx context.Context) {
	select {
	case <-w.s.endedC:
	default:
	}
	if email, password, ok := w.cfg.credentials(); ok {
		if err := w.s.login(ctx, email, password); err == nil {
			w.signedIn(ctx)
		}
		return
	}
	if w.role != ipc.RoleMain {
		return
	}
	if err := w.shell.OpenGoogleLogin(ctx); err != nil {
		w.d.LoginFailed(fmt.Errorf("failed to open browser sign-in: %w", err))
		return
	}
	w.loginDeadline = time.Now().Add(externalLoginWait)
	url := apiclient.GoogleLoginURL(w.cfg.APIBaseURL, extlogin.CallbackURL(w.cfg.URLScheme))
	w.d.BrowserOpened(url, w.loginDeadline)
}

// signedIn runs once a session exists. Command-line operations run on the
// first one only.
func (w *window) signedIn(ctx context.Context) {
	w.loginDeadline = time.Time{}
	if w.opsDone || w.ops.empty() {
		return
	}
	w.opsDone = true
	if err := w.s.perform(ctx, w.ops); err != nil {
		w.log.Warn("operations failed", slog.Any("error", err))
	}
}

// listen follows the shell's event stream until the shell closes it or ctx
// ends, resubscribing after transient failures.
func (w *window) listen(ctx context.Context) error {
	failures := 0
	for {
		stream, err := w.shell.Subscribe(ctx, w.role)
		if err == nil {
			if failures > 0 || w.store.Degraded() {
				w.reconnected(ctx)
			}
			failures = 0
			err = w.consume(ctx, stream)
			if errors.Is(err, io.EOF) {
				w.log.Info("shell closed the event stream")
				return nil
			}
		}
		if ctx.Err() != nil {
			return nil
		}

		failures++
		w.d.Degraded(err)
		if failures > maxReconnects {
			return fmt.Errorf("lost connection to the shell: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func (w *window) consume(ctx context.Context, stream *ipc.EventStream) error {
	events := make(chan *ipc.Event)
	errc := make(chan error, 1)
	go func() {
		for {
			ev, err := stream.Recv()
			if err != nil {
				errc <- err
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		var timeout <-chan time.Time
		if !w.loginDeadline.IsZero() {
			timeout = time.After(time.Until(w.loginDeadline))
		}
		select {
		case ev := <-events:
			w.handle(ctx, ev)
		case err := <-errc:
			return err
		case <-timeout:
			w.loginDeadline = time.Time{}
			w.d.LoginFailed(errLoginTimedOut)
		case <-w.s.endedC:
			w.signIn(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *window) handle(ctx context.Context, ev *ipc.Event) {
	w.log.Debug("shell event", slog.String("kind", string(ev.Kind)))
	switch ev.Kind {
	case ipc.EventSessionChanged:
		w.store.Invalidate()
		w.reload(ctx)
	case ipc.EventExternalLogin:
		if ev.Login == nil {
			return
		}
		w.loginDeadline = time.Time{}
		if !ev.Login.Success {
			w.d.LoginFailed(externalLoginError(ev.Login))
		}
		// On success the session-changed event from the shell's write reloads.
	case ipc.EventFocus:
		w.d.Focused()
		if err := w.store.Resync(ctx); err != nil {
			w.d.Degraded(err)
			return
		}
		w.reload(ctx)
	case ipc.EventHide:
		w.d.Hidden()
	default:
		w.log.Warn("unknown shell event", slog.String("kind", string(ev.Kind)))
	}
}

func (w *window) reload(ctx context.Context) {
	w.s.reload(ctx)
	if w.s.signedIn() {
		w.signedIn(ctx)
	}
}

// reconnected reconciles the replica after a period without the shell.
func (w *window) reconnected(ctx context.Context) {
	if err := w.store.Resync(ctx); err != nil {
		w.d.Degraded(err)
		return
	}
	w.d.Degraded(nil)
	w.reload(ctx)
}

func externalLoginError(r *ipc.ExternalLoginResult) error {
	if r.Message == "" {
		return fmt.Errorf("browser sign-in failed: %s", r.Error)
	}
	return fmt.Errorf("browser sign-in failed: %s: %s", r.Error, r.Message)
}
