// Package refresh coordinates access-token refreshes inside one process.
//
// At most one refresh call is in flight at a time. Callers that need a fresh
// token while a refresh is running are queued and, once it settles, either
// released in arrival order with the new token or rejected together. Each
// released caller re-issues its own request, so replays overlap on the wire
// and only their dispatch is ordered.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/go-authgate/speaknative/internal/apierror"
	"github.com/go-authgate/speaknative/internal/logging"
)

// ErrSessionTerminated is returned to every queued caller when the refresh fails.
var ErrSessionTerminated = errors.New("session terminated")

// TerminatedError wraps the refresh failure that ended the session.
type TerminatedError struct {
	Cause error
}

func (e *TerminatedError) Error() string {
	return fmt.Sprintf("%v: %v", ErrSessionTerminated, e.Cause)
}

func (e *TerminatedError) Unwrap() []error { return []error{ErrSessionTerminated, e.Cause} }

// APIKind classifies the error for apierror.Classify.
func (e *TerminatedError) APIKind() apierror.Kind { return apierror.KindSessionTerminated }

// State is the coordinator's position in its two-state machine.
type State int

const (
	Idle State = iota
	Refreshing
)

func (s State) String() string {
	if s == Refreshing {
		return "refreshing"
	}
	return "idle"
}

// Refresher performs the refresh network call and returns the new access token.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// TokenWriter is the part of the token store the coordinator writes to.
type TokenWriter interface {
	Set(ctx context.Context, token string) error
	Remove(ctx context.Context) error
}

// Replay re-issues a queued request with token. It calls sent once the request
// has been handed to the transport; the next queued caller is released after
// that or after Replay returns, whichever comes first.
type Replay func(token string, sent func()) (*http.Response, error)

// Hooks observe refresh outcomes. Any of them may be nil.
type Hooks struct {
	OnRefreshStart func()
	OnRefreshed    func()
	// OnSessionEnded runs after the store is cleared and every caller rejected.
	// The caller layer sends the user back to the login entry point from here.
	OnSessionEnded func(err error)
}

// grant settles one waiter: a token to replay with, or the error that ended
// the session.
type grant struct {
	token string
	err   error

	once sync.Once
	sent chan struct{}
}

func newGrant(token string, err error) *grant {
	return &grant{token: token, err: err, sent: make(chan struct{})}
}

// release lets the coordinator move on to the next waiter.
func (g *grant) release() {
	g.once.Do(func() { close(g.sent) })
}

func (g *grant) replay(replay Replay) (*http.Response, error) {
	defer g.release()
	return replay(g.token, g.release)
}

// waiter is one suspended caller. claimed makes settlement exactly-once between
// the coordinator and the caller's own cancellation.
type waiter struct {
	claimed atomic.Bool
	granted chan *grant
}

// Coordinator is the per-process refresh state machine.
type Coordinator struct {
	refresher Refresher
	store     TokenWriter
	hooks     Hooks
	log       *slog.Logger
	current   func() string

	mu         sync.Mutex
	refreshing bool
	queue      []*waiter

	refreshes atomic.Int64
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithHooks sets the outcome hooks.
func WithHooks(h Hooks) Option {
	return func(c *Coordinator) { c.hooks = h }
}

// WithCurrentToken lets Recover see the token requests are currently sent with.
func WithCurrentToken(fn func() string) Option {
	return func(c *Coordinator) { c.current = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// New returns an idle Coordinator.
func New(refresher Refresher, store TokenWriter, opts ...Option) *Coordinator {
	c := &Coordinator{refresher: refresher, store: store, log: logging.Discard()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State reports whether a refresh is in flight.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refreshing {
		return Refreshing
	}
	return Idle
}

// Refreshes returns how many refresh calls this coordinator has issued.
func (c *Coordinator) Refreshes() int64 {
	return c.refreshes.Load()
}

// Enqueue suspends the caller until the current (or a newly started) refresh
// settles, then runs replay with the new token on the caller's goroutine and
// returns its result. If ctx ends first the caller gets ctx.Err() and replay
// is never run.
func (c *Coordinator) Enqueue(ctx context.Context, replay Replay) (*http.Response, error) {
	return c.enqueue(ctx, "", replay)
}

// Recover handles a 401 for a request sent with sentWith. If no refresh is
// running and the current token already differs from sentWith, the session
// moved on while the request was in flight and replay runs at once with the
// current token. Otherwise it behaves like Enqueue.
func (c *Coordinator) Recover(ctx context.Context, sentWith string, replay Replay) (*http.Response, error) {
	return c.enqueue(ctx, sentWith, replay)
}

func (c *Coordinator) enqueue(ctx context.Context, sentWith string, replay Replay) (*http.Response, error) {
	w := &waiter{granted: make(chan *grant, 1)}

	c.mu.Lock()
	if !c.refreshing && sentWith != "" && c.current != nil {
		// Checked under mu: succeed writes the store before it drains.
		if cur := c.current(); cur != "" && cur != sentWith {
			c.mu.Unlock()
			c.log.Debug("401 for superseded token, replaying")
			return replay(cur, func() {})
		}
	}
	c.queue = append(c.queue, w)
	start := !c.refreshing
	c.refreshing = true
	queued := len(c.queue)
	c.mu.Unlock()

	if start {
		// The refresh outlives any single caller's context.
		go c.refresh(context.WithoutCancel(ctx))
	} else {
		c.log.Debug("queued behind in-flight refresh", slog.Int("position", queued))
	}

	var g *grant
	select {
	case g = <-w.granted:
	case <-ctx.Done():
		if w.claimed.CompareAndSwap(false, true) {
			return nil, ctx.Err()
		}
		// The coordinator already claimed this waiter; take its grant so the
		// queue moves on, but do not replay for a caller that has gone.
		g = <-w.granted
		g.release()
		if g.err != nil {
			return nil, g.err
		}
		return nil, ctx.Err()
	}
	if g.err != nil {
		g.release()
		return nil, g.err
	}
	return g.replay(replay)
}

func (c *Coordinator) refresh(ctx context.Context) {
	c.refreshes.Add(1)
	if c.hooks.OnRefreshStart != nil {
		c.hooks.OnRefreshStart()
	}
	c.log.Info("refreshing access token")

	token, err := c.refresher.Refresh(ctx)
	if err == nil && token == "" {
		err = errors.New("refresh returned an empty access token")
	}

	if err != nil {
		c.fail(ctx, err)
		return
	}
	c.succeed(ctx, token)
}

// drain atomically takes the queue and returns to Idle.
func (c *Coordinator) drain() []*waiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.queue
	c.queue = nil
	c.refreshing = false
	return q
}

func (c *Coordinator) succeed(ctx context.Context, token string) {
	// Every replica is updated before anything is replayed.
	if err := c.store.Set(ctx, token); err != nil {
		c.log.Warn("refreshed token only reached some replicas", slog.Any("error", err))
	}

	queue := c.drain()
	c.log.Info("access token refreshed", slog.Int("replaying", len(queue)))
	if c.hooks.OnRefreshed != nil {
		c.hooks.OnRefreshed()
	}

	for _, w := range queue {
		if !w.claimed.CompareAndSwap(false, true) {
			continue
		}
		g := newGrant(token, nil)
		w.granted <- g
		// Wait for dispatch only, never for the response.
		<-g.sent
	}
}

func (c *Coordinator) fail(ctx context.Context, cause error) {
	// Clear the store first so nothing can read the token that just failed.
	if err := c.store.Remove(ctx); err != nil {
		c.log.Warn("failed to clear every token replica", slog.Any("error", err))
	}

	queue := c.drain()
	c.log.Warn("refresh failed, ending session",
		slog.Any("error", cause), slog.Int("rejected", len(queue)))

	terminated := &TerminatedError{Cause: cause}
	for _, w := range queue {
		if !w.claimed.CompareAndSwap(false, true) {
			continue
		}
		w.granted <- newGrant("", terminated)
	}

	if c.hooks.OnSessionEnded != nil {
		c.hooks.OnSessionEnded(terminated)
	}
}
