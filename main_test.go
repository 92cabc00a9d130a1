package main

import (
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/go-authgate/speaknative/internal/devapi"
	"github.com/go-authgate/speaknative/tui"
)

const (
	testEmail    = "ada@example.com"
	testUser     = "ada"
	testPassword = "secret-pass"
)

// recordingDisplayer keeps a flat log of what a runner reported.
type recordingDisplayer struct {
	tui.NoopDisplayer

	mu     sync.Mutex
	events []string
}

func (r *recordingDisplayer) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingDisplayer) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func (r *recordingDisplayer) has(e string) bool {
	return slices.Contains(r.list(), e)
}

func (r *recordingDisplayer) count(prefix string) int {
	n := 0
	for _, e := range r.list() {
		if strings.HasPrefix(e, prefix) {
			n++
		}
	}
	return n
}

func (r *recordingDisplayer) SessionRestored(user string) { r.add("restored:" + user) }
func (r *recordingDisplayer) SessionMissing()             { r.add("missing") }
func (r *recordingDisplayer) LoginStarted(email string)   { r.add("login:" + email) }
func (r *recordingDisplayer) BrowserOpened(string, time.Time) {
	r.add("browser")
}
func (r *recordingDisplayer) SignedIn(user string)    { r.add("signed-in:" + user) }
func (r *recordingDisplayer) LoginFailed(error)       { r.add("login-failed") }
func (r *recordingDisplayer) Refreshing()             { r.add("refreshing") }
func (r *recordingDisplayer) Refreshed()              { r.add("refreshed") }
func (r *recordingDisplayer) SessionEnded(error)      { r.add("ended") }
func (r *recordingDisplayer) Focused()                { r.add("focused") }
func (r *recordingDisplayer) Result(op, _ string)     { r.add("result:" + op) }
func (r *recordingDisplayer) APICallFailed(err error) { r.add("api-failed") }
func (r *recordingDisplayer) Degraded(err error) {
	if err == nil {
		r.add("reconnected")
		return
	}
	r.add("degraded")
}

// newTestAPI starts the development API with one verified account that can
// also sign in through /auth/google.
func newTestAPI(t *testing.T) (*devapi.Server, *config) {
	t.Helper()
	api := devapi.New(devapi.Config{GoogleEmail: testEmail})
	api.AddUser(testEmail, testUser, testPassword)
	ts := httptest.NewServer(api)
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	return api, &config{
		Env:            "development",
		APIBaseURL:     ts.URL + devapi.BasePath,
		URLScheme:      "appscheme",
		RuntimeDir:     dir,
		FallbackFile:   filepath.Join(dir, "session.json"),
		LogLevel:       "debug",
		RequestTimeout: 5 * time.Second,
		LoginEmail:     testEmail,
		LoginPassword:  testPassword,
	}
}

func TestIsCommandName(t *testing.T) {
	tests := []struct {
		arg  string
		want bool
	}{
		{"window", true},
		{"devserver", true},
		{"-role=main", false},
		{"appscheme://callback?access_token=abc", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isCommandName(tt.arg); got != tt.want {
			t.Errorf("isCommandName(%q) = %v, want %v", tt.arg, got, tt.want)
		}
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	assert.Equal(t, 2, run([]string{"bogus"}))
}

func TestRun_HelpFlag(t *testing.T) {
	assert.Equal(t, 0, run([]string{"releases", "-h"}))
}

func TestLookupCommand(t *testing.T) {
	for _, name := range []string{"shell", "window", "web", "devserver", "releases"} {
		c, ok := lookupCommand(name)
		if assert.True(t, ok, name) {
			assert.NotNil(t, c.run)
		}
	}
	_, ok := lookupCommand("device")
	assert.False(t, ok)
}
