package tui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
)

func update(m Model, msgs ...tea.Msg) Model {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestModel_SessionLifecycle(t *testing.T) {
	m := update(NewModel(),
		MsgBanner{Title: "SpeakNative main"},
		MsgSessionMissing{},
		MsgBrowserOpened{URL: "http://localhost/auth/google", Expires: time.Now().Add(time.Minute)},
	)
	assert.Equal(t, stateBrowser, m.state)
	assert.Contains(t, m.viewMain(), "http://localhost/auth/google")

	m = update(m, MsgSignedIn{User: "ana"}, MsgRefreshing{})
	assert.Equal(t, stateRefreshing, m.state)
	assert.Equal(t, "ana", m.user)

	m = update(m, MsgSessionEnded{Err: errors.New("refresh rejected")})
	assert.Equal(t, stateSignedOut, m.state)
	assert.Empty(t, m.user)
	assert.Contains(t, m.viewMain(), "Session ended: refresh rejected")
}

func TestModel_DegradedBanner(t *testing.T) {
	m := update(NewModel(), MsgDegraded{Err: errors.New("dial unix")})
	assert.Contains(t, m.viewMain(), "offline from app shell")

	m = update(m, MsgDegraded{})
	assert.NotContains(t, m.viewMain(), "offline from app shell")
}

func TestModel_StatusLogIsBounded(t *testing.T) {
	m := NewModel()
	for range maxStatusLines + 5 {
		m = update(m, MsgFocused{})
	}
	assert.Len(t, m.statusLines, maxStatusLines)
}

func TestModel_Fatal(t *testing.T) {
	m := update(NewModel(), MsgFatal{Err: errors.New("boom")})
	assert.Equal(t, stateError, m.state)
	assert.Contains(t, m.viewError(), "boom")
}

func TestPlainDisplayer(t *testing.T) {
	var buf bytes.Buffer
	d := NewPlainDisplayer(&buf)
	d.Banner("SpeakNative")
	d.SignedIn("ana")
	d.Result("translate", "hello")
	d.Degraded(nil)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "=== SpeakNative ===\n"))
	assert.Contains(t, out, "Signed in as ana\n")
	assert.Contains(t, out, "[translate]\nhello\n")
	assert.Contains(t, out, "Reconnected")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0s", formatDuration(0))
	assert.Equal(t, "45s", formatDuration(45*time.Second))
	assert.Equal(t, "2m 5s", formatDuration(125*time.Second))
}
