package extlogin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-authgate/speaknative/internal/logging"
)

// SessionWriter is the shared session cache.
type SessionWriter interface {
	Set(ctx context.Context, token string) error
}

// Windows is how the handler reaches the open windows.
type Windows interface {
	FocusMain(ctx context.Context) error
	// NotifyAll delivers r to every open window.
	NotifyAll(r Result)
	// NotifyMain delivers r to the main window only.
	NotifyMain(r Result)
}

// Handler applies callback URLs to the running app.
type Handler struct {
	scheme  string
	session SessionWriter
	windows Windows
	log     *slog.Logger
}

// NewHandler builds a Handler for scheme.
func NewHandler(scheme string, session SessionWriter, windows Windows, log *slog.Logger) *Handler {
	if log == nil {
		log = logging.Discard()
	}
	return &Handler{scheme: scheme, session: session, windows: windows, log: log}
}

// Handle processes one callback URL. A malformed URL is logged and dropped
// without touching the session; the returned error only informs the caller.
func (h *Handler) Handle(ctx context.Context, raw string) error {
	res, err := Parse(raw, h.scheme)
	if err != nil {
		h.log.Warn("ignoring login callback", slog.Any("error", err))
		return err
	}

	if !res.Success {
		h.log.Info("external login failed",
			slog.String("error", res.Error), slog.String("message", res.Message))
		h.windows.NotifyMain(res)
		return nil
	}

	if err := h.session.Set(ctx, res.AccessToken); err != nil {
		return fmt.Errorf("failed to store external login token: %w", err)
	}
	h.log.Info("external login succeeded", slog.String("token", logging.Preview(res.AccessToken)))

	if err := h.windows.FocusMain(ctx); err != nil {
		h.log.Warn("failed to focus main window", slog.Any("error", err))
	}
	h.windows.NotifyAll(res)
	return nil
}

// HandleArgs looks for a callback URL in a launch command line and handles it.
// It reports whether one was found.
func (h *Handler) HandleArgs(ctx context.Context, args []string) (bool, error) {
	raw, ok := FindCallbackURL(args, h.scheme)
	if !ok {
		return false, nil
	}
	err := h.Handle(ctx, raw)
	if errors.Is(err, ErrMalformedCallback) {
		return true, nil
	}
	return true, err
}
