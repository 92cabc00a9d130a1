package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/go-authgate/speaknative/internal/devapi"
	"github.com/go-authgate/speaknative/internal/logging"
)

const shutdownTimeout = 5 * time.Second

func runDevServer(args []string) error {
	fs := flag.NewFlagSet("devserver", flag.ContinueOnError)
	common := registerCommonFlags(fs)
	port := fs.Int("port", 0, "listen port (default: 8000 or DEV_SERVER_PORT env)")
	accessTTL := fs.Duration("access-ttl", 0, "access token lifetime (default: 5m)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(common)
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.DevServerPort = *port
	}
	log := logging.New(os.Stderr, cfg.LogLevel).With(slog.String("process", "devserver"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.DevServerPort),
		Handler:           newDevAPI(cfg, *accessTTL, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(ctx, srv, log)
}

// newDevAPI builds the development API with the configured account seeded.
func newDevAPI(cfg *config, accessTTL time.Duration, log *slog.Logger) *devapi.Server {
	googleEmail := getConfig("", cfg.GoogleEmail, cfg.LoginEmail)
	api := devapi.New(devapi.Config{
		AccessTTL:   accessTTL,
		GoogleEmail: googleEmail,
		Logger:      log,
	})
	if email, password, ok := cfg.credentials(); ok {
		username, _, _ := strings.Cut(email, "@")
		api.AddUser(email, username, password)
		log.Info("seeded account", slog.String("email", email))
	}
	return api
}

func serve(ctx context.Context, srv *http.Server, log *slog.Logger) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("development API listening",
			slog.String("addr", srv.Addr),
			slog.String("base", devapi.BasePath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
