package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-authgate/speaknative/internal/logging"
	"github.com/go-authgate/speaknative/internal/tokenstore"
	"github.com/go-authgate/speaknative/tui"
)

var errNoCredentials = errors.New(
	"no session: set LOGIN_EMAIL and LOGIN_PASSWORD to sign in from the web mode",
)

func runWeb(args []string) error {
	fs := flag.NewFlagSet("web", flag.ContinueOnError)
	common := registerCommonFlags(fs)
	ops := registerOperationFlags(fs)
	logout := fs.Bool("logout", false, "sign out when done")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(common)
	if err != nil {
		return err
	}
	log := logging.New(os.Stderr, cfg.LogLevel).With(slog.String("process", "web"))
	cfg.warn(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withDisplayer("SpeakNative", func(d tui.Displayer) error {
		return webSession(ctx, cfg, ops, *logout, d, log)
	})
}

// webSession is the browser-tab flow: the access token and the server's
// refresh cookie share one cookie jar.
func webSession(
	ctx context.Context,
	cfg *config,
	ops *operations,
	logout bool,
	d tui.Displayer,
	log *slog.Logger,
) error {
	jar, err := tokenstore.NewJar()
	if err != nil {
		return err
	}
	store, err := tokenstore.NewCookieStore(jar, cfg.APIBaseURL)
	if err != nil {
		return err
	}
	s, err := newSession(cfg, store, jar, d, log)
	if err != nil {
		return err
	}

	if !s.restore(ctx) {
		email, password, ok := cfg.credentials()
		if !ok {
			return errNoCredentials
		}
		if err := s.login(ctx, email, password); err != nil {
			return err
		}
	}

	if err := s.perform(ctx, ops); err != nil {
		return err
	}
	if logout {
		return s.logout(ctx)
	}
	return nil
}
