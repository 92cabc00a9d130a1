package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-authgate/speaknative/internal/ipc"
	"github.com/go-authgate/speaknative/internal/logging"
	"github.com/go-authgate/speaknative/internal/scheme"
	"github.com/go-authgate/speaknative/internal/shell"
)

const forwardTimeout = 5 * time.Second

func runShell(args []string) error {
	fs := flag.NewFlagSet("shell", flag.ContinueOnError)
	common := registerCommonFlags(fs)
	noRegister := fs.Bool("no-register", false, "do not register the URL scheme handler")
	noWindow := fs.Bool("no-window", false, "do not open the main window at startup")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(common)
	if err != nil {
		return err
	}
	log := logging.New(os.Stderr, cfg.LogLevel).With(slog.String("process", "shell"))
	cfg.warn(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}

	sup, lis, err := startShell(ctx, cfg, exe, log)
	if errors.Is(err, ipc.ErrAlreadyRunning) {
		return forwardToShell(ctx, cfg, args, log)
	}
	if err != nil {
		return err
	}

	if !*noRegister {
		if err := scheme.Register(ctx, cfg.URLScheme, exe, log); err != nil {
			log.Warn("failed to register URL scheme", slog.String("scheme", cfg.URLScheme), slog.Any("error", err))
		}
	}

	// The OS starts the app with the callback URL when no shell was running.
	sup.HandleArgs(ctx, fs.Args())
	if !*noWindow {
		if err := sup.FocusMain(ctx); err != nil {
			log.Error("failed to open the main window", slog.Any("error", err))
		}
	}
	return sup.Run(ctx, lis)
}

// startShell claims the single-instance socket and builds the supervisor
// around it.
func startShell(
	ctx context.Context,
	cfg *config,
	exe string,
	log *slog.Logger,
) (*shell.Supervisor, net.Listener, error) {
	lis, err := ipc.Listen(ctx, ipc.SocketPath(cfg.RuntimeDir))
	if err != nil {
		return nil, nil, err
	}
	sup := shell.New(shell.Config{
		APIBase: cfg.APIBaseURL,
		Scheme:  cfg.URLScheme,
		Launcher: &shell.ExecLauncher{
			Exe:    exe,
			LogDir: filepath.Join(cfg.RuntimeDir, "logs"),
			Env:    cfg.childEnv(),
			Log:    log,
		},
		Opener: shell.BrowserOpener{},
		Logger: log,
	})
	return sup, lis, nil
}

// forwardToShell hands this launch's arguments to the running shell, which
// applies any callback URL and focuses its main window.
func forwardToShell(ctx context.Context, cfg *config, args []string, log *slog.Logger) error {
	conn, err := ipc.Dial(ipc.SocketPath(cfg.RuntimeDir), log)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, forwardTimeout)
	defer cancel()
	if err := conn.ForwardArgs(ctx, args); err != nil {
		return fmt.Errorf("failed to reach the running instance: %w", err)
	}
	log.Info("forwarded arguments to the running instance")
	return nil
}
