//go:build windows

package scheme

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sys/windows/registry"
)

// Register maps scheme to exe under HKCU\Software\Classes, which needs no
// elevation.
func Register(_ context.Context, scheme, exe string, log *slog.Logger) error {
	if err := Validate(scheme); err != nil {
		return err
	}

	root := `Software\Classes\` + scheme
	k, _, err := registry.CreateKey(registry.CURRENT_USER, root, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", root, err)
	}
	defer k.Close()

	if err := k.SetStringValue("", "URL:"+AppName+" Protocol"); err != nil {
		return err
	}
	if err := k.SetStringValue("URL Protocol", ""); err != nil {
		return err
	}

	cmd, _, err := registry.CreateKey(registry.CURRENT_USER, root+`\shell\open\command`, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("failed to create open command: %w", err)
	}
	defer cmd.Close()
	if err := cmd.SetStringValue("", windowsCommand(exe)); err != nil {
		return err
	}

	log.Info("registered url scheme", slog.String("scheme", scheme), slog.String("key", `HKCU\`+root))
	return nil
}
