// Package sessioncache holds the one access token shared by every window of the
// desktop shell. A single goroutine owns the value; callers talk to it through
// messages, so reads and writes are served one at a time. Concurrent writers
// from different windows are not ordered: the last write wins.
package sessioncache

import (
	"context"
	"errors"
	"sync"

	"github.com/go-authgate/speaknative/internal/broadcast"
)

// ErrClosed is returned once the cache has been shut down.
var ErrClosed = errors.New("session cache closed")

// Change describes the value after a write.
type Change struct {
	Present bool
	// Seq increases with every write so subscribers can discard stale notifications.
	Seq uint64
}

type opKind int

const (
	opGet opKind = iota
	opSet
	opRemove
)

type op struct {
	kind  opKind
	token string
	reply chan string
}

// Cache is the shell-owned session actor.
type Cache struct {
	ops     chan op
	done    chan struct{}
	once    sync.Once
	changes *broadcast.Hub[Change]
}

// New starts the actor goroutine.
func New() *Cache {
	c := &Cache{
		ops:     make(chan op),
		done:    make(chan struct{}),
		changes: broadcast.New[Change](8),
	}
	go c.run()
	return c
}

func (c *Cache) run() {
	var (
		token string
		seq   uint64
	)
	for {
		select {
		case <-c.done:
			return
		case o := <-c.ops:
			switch o.kind {
			case opGet:
				o.reply <- token
				continue
			case opSet:
				token = o.token
			case opRemove:
				token = ""
			}
			seq++
			c.changes.Publish(Change{Present: token != "", Seq: seq})
			o.reply <- token
		}
	}
}

func (c *Cache) do(ctx context.Context, o op) (string, error) {
	o.reply = make(chan string, 1)
	select {
	case c.ops <- o:
	case <-c.done:
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
	// The actor always answers an accepted op.
	return <-o.reply, nil
}

// Get returns the shared token or "" when none is stored.
func (c *Cache) Get(ctx context.Context) (string, error) {
	return c.do(ctx, op{kind: opGet})
}

// Set replaces the shared token.
func (c *Cache) Set(ctx context.Context, token string) error {
	_, err := c.do(ctx, op{kind: opSet, token: token})
	return err
}

// Remove clears the shared token.
func (c *Cache) Remove(ctx context.Context) error {
	_, err := c.do(ctx, op{kind: opRemove})
	return err
}

// Changes subscribes to write notifications.
func (c *Cache) Changes() *broadcast.Subscription[Change] {
	return c.changes.Subscribe("changes")
}

// Close stops the actor. Pending and later calls return ErrClosed.
func (c *Cache) Close() {
	c.once.Do(func() {
		close(c.done)
		c.changes.Close()
	})
}
