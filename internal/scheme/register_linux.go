//go:build linux

package scheme

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// Register writes an XDG desktop entry for exe and makes it the default
// handler of scheme. A missing xdg-mime is logged, not fatal.
func Register(ctx context.Context, scheme, exe string, log *slog.Logger) error {
	if err := Validate(scheme); err != nil {
		return err
	}

	dir, err := applicationsDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	name := desktopFileName(scheme)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(desktopEntry(scheme, exe)), 0o644); err != nil {
		return fmt.Errorf("failed to write desktop entry: %w", err)
	}

	cmd := exec.CommandContext(ctx, "xdg-mime", "default", name, "x-scheme-handler/"+scheme)
	if out, err := cmd.CombinedOutput(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			log.Warn("xdg-mime not found, scheme handler written but not made default",
				slog.String("entry", path))
			return nil
		}
		return fmt.Errorf("xdg-mime failed: %w: %s", err, out)
	}

	log.Info("registered url scheme", slog.String("scheme", scheme), slog.String("entry", path))
	return nil
}

func applicationsDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "applications"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "applications"), nil
}
