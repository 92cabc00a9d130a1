package tokenstore

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/go-authgate/speaknative/internal/logging"
)

// SharedCache is the shell-owned token reached over IPC.
type SharedCache interface {
	GetSharedToken(ctx context.Context) (string, error)
	SetSharedToken(ctx context.Context, token string) error
	RemoveSharedToken(ctx context.Context) error
}

// SharedStore is the desktop Store: a process-local memory replica in front of
// the shell's shared cache, with a durable file used only while the shell
// cannot be reached.
type SharedStore struct {
	memory
	remote   SharedCache
	fallback *FileFallback
	log      *slog.Logger

	stateMu  sync.Mutex
	degraded bool
	// dirty is set when a write could only reach local replicas; the next
	// successful Resync pushes the local value up instead of adopting the shell's.
	dirty bool
}

// NewSharedStore builds a SharedStore. remote and fallback may be nil.
func NewSharedStore(remote SharedCache, fallback *FileFallback, log *slog.Logger) *SharedStore {
	if log == nil {
		log = logging.Discard()
	}
	return &SharedStore{remote: remote, fallback: fallback, log: log}
}

// Degraded reports whether the last shell round-trip failed.
func (s *SharedStore) Degraded() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.degraded
}

func (s *SharedStore) Get(ctx context.Context) (string, error) {
	if token, ok := s.cached(); ok {
		return token, nil
	}

	token, err := s.getRemote(ctx)
	if err == nil {
		s.store(token)
		return token, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}

	token = s.loadFallback()
	s.store(token)
	return token, nil
}

func (s *SharedStore) Set(ctx context.Context, token string) error {
	s.store(token)

	var remoteErr error
	if s.remote == nil {
		remoteErr = ErrUnavailable
	} else if remoteErr = s.remote.SetSharedToken(ctx, token); remoteErr == nil {
		s.markHealthy()
	}
	if remoteErr != nil {
		s.markDegraded(remoteErr, true)
	}

	return s.persist(ctx, remoteErr, func(ctx context.Context) error {
		return s.fallback.Save(ctx, token)
	})
}

func (s *SharedStore) Remove(ctx context.Context) error {
	s.store("")

	var remoteErr error
	if s.remote == nil {
		remoteErr = ErrUnavailable
	} else if remoteErr = s.remote.RemoveSharedToken(ctx); remoteErr == nil {
		s.markHealthy()
	}
	if remoteErr != nil {
		s.markDegraded(remoteErr, true)
	}

	return s.persist(ctx, remoteErr, func(ctx context.Context) error {
		return s.fallback.Delete(ctx)
	})
}

// Invalidate drops the memory replica so the next Get asks the shell again.
// Windows call it when the shell announces a session change.
func (s *SharedStore) Invalidate() {
	s.invalidate()
}

// Resync reconciles the memory replica with the shell. The shell's value wins
// unless this process wrote while the shell was unreachable, in which case the
// local value is pushed up.
func (s *SharedStore) Resync(ctx context.Context) error {
	shared, err := s.getRemote(ctx)
	if err != nil {
		return err
	}

	s.stateMu.Lock()
	dirty := s.dirty
	s.dirty = false
	s.stateMu.Unlock()

	if !dirty {
		s.store(shared)
		return nil
	}

	local := s.Cached()
	s.log.Info("pushing locally written session to shell after reconnect",
		slog.Bool("present", local != ""))
	if local == "" {
		err = s.remote.RemoveSharedToken(ctx)
	} else {
		err = s.remote.SetSharedToken(ctx, local)
	}
	if err != nil {
		s.markDegraded(err, true)
		return err
	}
	return nil
}

func (s *SharedStore) getRemote(ctx context.Context) (string, error) {
	if s.remote == nil {
		return "", ErrUnavailable
	}
	token, err := s.remote.GetSharedToken(ctx)
	if err != nil {
		s.markDegraded(err, false)
		return "", err
	}
	s.markHealthy()
	return token, nil
}

func (s *SharedStore) loadFallback() string {
	if s.fallback == nil {
		return ""
	}
	token, err := s.fallback.Load()
	if err != nil {
		s.log.Warn("fallback session file unreadable", slog.Any("error", err))
		return ""
	}
	return token
}

// persist mirrors a write into the fallback file. The write only fails when
// neither the shell nor the file could take it.
func (s *SharedStore) persist(ctx context.Context, remoteErr error, write func(context.Context) error) error {
	if s.fallback == nil {
		if s.remote == nil {
			return nil
		}
		return remoteErr
	}
	if err := write(ctx); err != nil {
		s.log.Warn("failed to write fallback session file",
			slog.String("path", s.fallback.Path()), slog.Any("error", err))
		if remoteErr != nil {
			return errors.Join(remoteErr, err)
		}
	}
	return nil
}

func (s *SharedStore) markDegraded(err error, wrote bool) {
	s.stateMu.Lock()
	was := s.degraded
	s.degraded = true
	if wrote {
		s.dirty = true
	}
	s.stateMu.Unlock()

	if !was {
		s.log.Warn("shared session cache unreachable, using local replica", slog.Any("error", err))
	}
}

func (s *SharedStore) markHealthy() {
	s.stateMu.Lock()
	was := s.degraded
	s.degraded = false
	s.stateMu.Unlock()

	if was {
		s.log.Info("shared session cache reachable again")
	}
}
