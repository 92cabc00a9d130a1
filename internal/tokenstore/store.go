// Package tokenstore keeps the current access token.
//
// Two deployments exist: a single process that keeps the token in a cookie jar
// (CookieStore) and desktop window processes that share one token held by the
// shell (SharedStore). Both answer "" with a nil error when nothing is stored.
package tokenstore

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrUnavailable is returned by a SharedCache whose channel cannot be reached.
var ErrUnavailable = errors.New("shared session cache unavailable")

// Store is where the access token currently lives.
type Store interface {
	// Get returns the current token or "" when none is stored.
	Get(ctx context.Context) (string, error)
	// Set replaces the token in every replica.
	Set(ctx context.Context, token string) error
	// Remove clears every replica.
	Remove(ctx context.Context) error
	// Cached is the process-local value. It never blocks.
	Cached() string
	// Watch registers fn to run synchronously whenever Set or Remove changes the
	// process-local value. fn receives "" on removal.
	Watch(fn func(token string))
}

// memory is the process-local replica embedded in every Store.
type memory struct {
	mu       sync.RWMutex
	token    string
	loaded   bool
	watchers []func(string)
}

func (m *memory) Cached() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// cached reports the value and whether it is known to be current.
func (m *memory) cached() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.loaded
}

func (m *memory) Watch(fn func(token string)) {
	m.mu.Lock()
	m.watchers = append(m.watchers, fn)
	m.mu.Unlock()
}

// store updates the local value and notifies watchers outside the lock.
func (m *memory) store(token string) {
	m.mu.Lock()
	changed := !m.loaded || m.token != token
	m.token = token
	m.loaded = true
	watchers := slices.Clone(m.watchers)
	m.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range watchers {
		fn(token)
	}
}

// invalidate forgets the local value without notifying watchers, so the next
// Get goes back to the authoritative replica.
func (m *memory) invalidate() {
	m.mu.Lock()
	m.loaded = false
	m.mu.Unlock()
}
