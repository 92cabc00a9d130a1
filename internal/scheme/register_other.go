//go:build !linux && !windows

package scheme

import (
	"context"
	"log/slog"
)

// Register only validates the scheme: on macOS the handler is declared by the
// bundle's Info.plist at packaging time.
func Register(_ context.Context, scheme, exe string, log *slog.Logger) error {
	if err := Validate(scheme); err != nil {
		return err
	}
	log.Info("url scheme is declared by the app bundle",
		slog.String("scheme", scheme), slog.String("exe", exe))
	return nil
}
