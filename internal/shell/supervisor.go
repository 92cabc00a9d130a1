// Package shell is the desktop supervisory process. It owns the shared session
// cache, serves it to the window processes over ipc, launches and focuses
// windows, and applies external login callbacks.
package shell

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/go-authgate/speaknative/internal/apiclient"
	"github.com/go-authgate/speaknative/internal/broadcast"
	"github.com/go-authgate/speaknative/internal/extlogin"
	"github.com/go-authgate/speaknative/internal/ipc"
	"github.com/go-authgate/speaknative/internal/logging"
	"github.com/go-authgate/speaknative/internal/sessioncache"
)

// launchGrace is how long a launched window has to subscribe before another
// focus request launches it again.
const launchGrace = 10 * time.Second

// Launcher starts a window process for role.
type Launcher interface {
	Launch(ctx context.Context, role string) error
}

// Opener opens a URL in the system browser.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// Config configures a Supervisor.
type Config struct {
	APIBase  string
	Scheme   string
	Launcher Launcher
	Opener   Opener
	Logger   *slog.Logger
}

// Supervisor implements ipc.ShellServer.
type Supervisor struct {
	cfg     Config
	log     *slog.Logger
	cache   *sessioncache.Cache
	changes *broadcast.Subscription[sessioncache.Change]
	events  *broadcast.Hub[*ipc.Event]
	login   *extlogin.Handler

	launchMu sync.Mutex
	launched map[string]time.Time
}

var (
	_ ipc.ShellServer  = (*Supervisor)(nil)
	_ extlogin.Windows = (*Supervisor)(nil)
)

// New builds a Supervisor with an empty session.
func New(cfg Config) *Supervisor {
	log := cfg.Logger
	if log == nil {
		log = logging.Discard()
	}
	s := &Supervisor{
		cfg:      cfg,
		log:      log,
		cache:    sessioncache.New(),
		events:   broadcast.New[*ipc.Event](32),
		launched: make(map[string]time.Time),
	}
	s.changes = s.cache.Changes()
	s.login = extlogin.NewHandler(cfg.Scheme, s.cache, s, log.With(slog.String("component", "extlogin")))
	return s
}

// Run serves lis until ctx ends, then closes every window stream and the cache.
func (s *Supervisor) Run(ctx context.Context, lis net.Listener) error {
	srv := ipc.NewServer(s, s.log.With(slog.String("component", "ipc")))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		s.forwardChanges(ctx)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		// Subscribe loops end when their channels close, which lets GracefulStop finish.
		s.events.Close()
		srv.GracefulStop()
		s.cache.Close()
		return nil
	})

	s.log.Info("shell listening", slog.String("addr", lis.Addr().String()))
	return g.Wait()
}

// forwardChanges tells every window to re-read the session after each write.
func (s *Supervisor) forwardChanges(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ch, ok := <-s.changes.C:
			if !ok {
				return
			}
			n := s.events.Publish(&ipc.Event{Kind: ipc.EventSessionChanged, Present: ch.Present})
			s.log.Debug("session changed", slog.Bool("present", ch.Present), slog.Int("windows", n))
		}
	}
}

// HandleArgs applies a callback URL found in the shell's own command line.
func (s *Supervisor) HandleArgs(ctx context.Context, args []string) {
	if _, err := s.login.HandleArgs(ctx, args); err != nil {
		s.log.Error("failed to apply login callback", slog.Any("error", err))
	}
}

// Connected reports whether a window of role is subscribed.
func (s *Supervisor) Connected(role string) bool {
	return s.events.Count(role) > 0
}

func (s *Supervisor) GetSharedToken(ctx context.Context) (string, error) {
	return s.cache.Get(ctx)
}

func (s *Supervisor) SetSharedToken(ctx context.Context, token string) error {
	return s.cache.Set(ctx, token)
}

func (s *Supervisor) RemoveSharedToken(ctx context.Context) error {
	return s.cache.Remove(ctx)
}

func (s *Supervisor) HideQuickAccess(context.Context) error {
	s.events.PublishTo(ipc.RoleQuickAccess, &ipc.Event{Kind: ipc.EventHide})
	return nil
}

func (s *Supervisor) ShowMainWindow(ctx context.Context) error {
	return s.FocusMain(ctx)
}

func (s *Supervisor) OpenGoogleLogin(ctx context.Context) error {
	url := apiclient.GoogleLoginURL(s.cfg.APIBase, extlogin.CallbackURL(s.cfg.Scheme))
	s.log.Info("opening external login", slog.String("url", url))
	return s.cfg.Opener.Open(ctx, url)
}

// ForwardArgs handles a second launch: any callback URL it carries is applied
// and the main window is brought forward.
func (s *Supervisor) ForwardArgs(ctx context.Context, args []string) error {
	s.log.Info("second instance forwarded its arguments", slog.Int("args", len(args)))
	s.HandleArgs(ctx, args)
	return s.FocusMain(ctx)
}

func (s *Supervisor) Subscribe(ctx context.Context, role string, send func(*ipc.Event) error) error {
	sub := s.events.Subscribe(role)
	defer sub.Close()

	s.launchMu.Lock()
	delete(s.launched, role)
	s.launchMu.Unlock()

	log := s.log.With(slog.String("role", role), slog.String("subscription", sub.ID))
	log.Info("window connected")
	defer log.Info("window disconnected")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := send(ev); err != nil {
				return err
			}
		}
	}
}

// FocusMain focuses the main window, launching it when none is connected.
func (s *Supervisor) FocusMain(ctx context.Context) error {
	if s.events.PublishTo(ipc.RoleMain, &ipc.Event{Kind: ipc.EventFocus}) > 0 {
		return nil
	}
	return s.launch(ctx, ipc.RoleMain)
}

func (s *Supervisor) launch(ctx context.Context, role string) error {
	s.launchMu.Lock()
	defer s.launchMu.Unlock()
	if at, ok := s.launched[role]; ok && time.Since(at) < launchGrace {
		return nil
	}
	if s.cfg.Launcher == nil {
		return errors.New("no window launcher configured")
	}
	if err := s.cfg.Launcher.Launch(ctx, role); err != nil {
		return err
	}
	s.launched[role] = time.Now()
	s.log.Info("launched window", slog.String("role", role))
	return nil
}

func (s *Supervisor) NotifyAll(r extlogin.Result) {
	s.events.Publish(loginEvent(r))
}

func (s *Supervisor) NotifyMain(r extlogin.Result) {
	if s.events.PublishTo(ipc.RoleMain, loginEvent(r)) == 0 {
		s.log.Warn("no main window to report the login failure to", slog.String("error", r.Error))
	}
}

func loginEvent(r extlogin.Result) *ipc.Event {
	return &ipc.Event{
		Kind: ipc.EventExternalLogin,
		Login: &ipc.ExternalLoginResult{
			Success:     r.Success,
			AccessToken: r.AccessToken,
			Error:       r.Error,
			Message:     r.Message,
		},
	}
}
