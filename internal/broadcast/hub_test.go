package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginResult struct {
	OK    bool
	Error string
}

func TestHub_PublishReachesEveryTopic(t *testing.T) {
	h := New[loginResult](4)
	main := h.Subscribe("main")
	quick := h.Subscribe("quick-access")

	n := h.Publish(loginResult{OK: true})
	assert.Equal(t, 2, n)

	assert.Equal(t, loginResult{OK: true}, <-main.C)
	assert.Equal(t, loginResult{OK: true}, <-quick.C)
}

func TestHub_PublishToTargetsOneTopic(t *testing.T) {
	h := New[loginResult](4)
	main := h.Subscribe("main")
	quick := h.Subscribe("quick-access")

	n := h.PublishTo("main", loginResult{Error: "denied"})
	assert.Equal(t, 1, n)
	assert.Equal(t, "denied", (<-main.C).Error)

	select {
	case v := <-quick.C:
		t.Fatalf("quick-access received %v", v)
	default:
	}
}

func TestHub_FullBufferDropsWithoutBlocking(t *testing.T) {
	h := New[int](1)
	s := h.Subscribe("main")

	h.Publish(1)
	h.Publish(2)

	assert.Equal(t, int64(1), h.Dropped())
	assert.Equal(t, 1, <-s.C)
}

func TestHub_CloseIsIdempotent(t *testing.T) {
	h := New[int](1)
	s := h.Subscribe("main")
	require.Equal(t, 1, h.Count(""))

	s.Close()
	s.Close()
	assert.Equal(t, 0, h.Count("main"))

	_, ok := <-s.C
	assert.False(t, ok)

	assert.Equal(t, 0, h.Publish(3))
	h.Close()
}

func TestHub_SubscribeAfterClose(t *testing.T) {
	h := New[int](1)
	h.Close()

	s := h.Subscribe("main")
	_, ok := <-s.C
	assert.False(t, ok)
	assert.Equal(t, 0, h.Count(""))
	s.Close()
}
