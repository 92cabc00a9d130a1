package shell

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ExecLauncher starts windows as child processes of the shell binary:
// "<exe> window -role <role>". Window output goes to <LogDir>/window-<role>.log.
type ExecLauncher struct {
	Exe    string
	LogDir string
	// Env is appended to the shell's own environment.
	Env []string
	Log *slog.Logger
}

// Launch starts the window and returns without waiting for it. Windows exit on
// their own when the shell's event stream closes.
func (l *ExecLauncher) Launch(_ context.Context, role string) error {
	if err := os.MkdirAll(l.LogDir, 0o700); err != nil {
		return fmt.Errorf("failed to create log dir: %w", err)
	}
	out, err := os.OpenFile(filepath.Join(l.LogDir, "window-"+role+".log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open window log: %w", err)
	}

	cmd := exec.Command(l.Exe, "window", "-role", role)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.Env = append(os.Environ(), l.Env...)
	if err := cmd.Start(); err != nil {
		out.Close()
		return fmt.Errorf("failed to start %s window: %w", role, err)
	}

	go func() {
		err := cmd.Wait()
		out.Close()
		if l.Log != nil {
			l.Log.Info("window exited", slog.String("role", role), slog.Any("result", err))
		}
	}()
	return nil
}

// BrowserOpener opens URLs with the platform's default handler.
type BrowserOpener struct{}

func (BrowserOpener) Open(ctx context.Context, url string) error {
	name, args := openCommand(runtime.GOOS, url)
	if err := exec.CommandContext(ctx, name, args...).Run(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

func openCommand(goos, url string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{url}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}
	default:
		return "xdg-open", []string{url}
	}
}
