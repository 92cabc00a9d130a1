package tui

import (
	"fmt"
	"io"
	"time"

	tea "charm.land/bubbletea/v2"
)

// Displayer abstracts all output of a window's session runner.
type Displayer interface {
	Banner(title string)
	SessionRestored(user string)
	SessionMissing()
	LoginStarted(email string)
	BrowserOpened(url string, expires time.Time)
	SignedIn(user string)
	LoginFailed(err error)
	Refreshing()
	Refreshed()
	SessionEnded(err error)
	Focused()
	Hidden()
	Degraded(err error)
	Result(op, text string)
	APICallFailed(err error)
	Fatal(err error)
}

// PlainDisplayer writes plain text output to w.
// Used when stdout is not a TTY (pipes, CI, windows launched by the shell).
type PlainDisplayer struct {
	w io.Writer
}

// NewPlainDisplayer creates a PlainDisplayer that writes to w.
func NewPlainDisplayer(w io.Writer) *PlainDisplayer {
	return &PlainDisplayer{w: w}
}

func (p *PlainDisplayer) Banner(title string) {
	fmt.Fprintf(p.w, "=== %s ===\n", title)
	fmt.Fprintln(p.w)
}

func (p *PlainDisplayer) SessionRestored(user string) {
	fmt.Fprintf(p.w, "Welcome back, %s!\n", user)
}

func (p *PlainDisplayer) SessionMissing() {
	fmt.Fprintln(p.w, "Not signed in.")
}

func (p *PlainDisplayer) LoginStarted(email string) {
	fmt.Fprintf(p.w, "Signing in as %s...\n", email)
}

func (p *PlainDisplayer) BrowserOpened(url string, expires time.Time) {
	fmt.Fprintln(p.w, "----------------------------------------")
	fmt.Fprintf(p.w, "Continue signing in from your browser:\n%s\n", url)
	fmt.Fprintf(p.w, "Waiting until %s\n", expires.Format(time.Kitchen))
	fmt.Fprintln(p.w, "----------------------------------------")
}

func (p *PlainDisplayer) SignedIn(user string) {
	fmt.Fprintf(p.w, "Signed in as %s\n", user)
}

func (p *PlainDisplayer) LoginFailed(err error) {
	fmt.Fprintf(p.w, "Sign-in failed: %v\n", err)
}

func (p *PlainDisplayer) Refreshing() {
	fmt.Fprintln(p.w, "Session expired, refreshing...")
}

func (p *PlainDisplayer) Refreshed() {
	fmt.Fprintln(p.w, "Session refreshed, resuming requests...")
}

func (p *PlainDisplayer) SessionEnded(err error) {
	fmt.Fprintf(p.w, "Session ended: %v\n", err)
	fmt.Fprintln(p.w, "Please sign in again.")
}

func (p *PlainDisplayer) Focused() {
	fmt.Fprintln(p.w, "Window focused")
}

func (p *PlainDisplayer) Hidden() {
	fmt.Fprintln(p.w, "Window hidden")
}

func (p *PlainDisplayer) Degraded(err error) {
	if err == nil {
		fmt.Fprintln(p.w, "Reconnected to the app shell")
		return
	}
	fmt.Fprintf(p.w, "Warning: app shell unreachable, using local session: %v\n", err)
}

func (p *PlainDisplayer) Result(op, text string) {
	fmt.Fprintf(p.w, "\n[%s]\n%s\n", op, text)
}

func (p *PlainDisplayer) APICallFailed(err error) {
	fmt.Fprintf(p.w, "Request failed: %v\n", err)
}

func (p *PlainDisplayer) Fatal(err error) {
	fmt.Fprintf(p.w, "Error: %v\n", err)
}

// NoopDisplayer is a no-op implementation used in tests.
type NoopDisplayer struct{}

func (NoopDisplayer) Banner(_ string)                     {}
func (NoopDisplayer) SessionRestored(_ string)            {}
func (NoopDisplayer) SessionMissing()                     {}
func (NoopDisplayer) LoginStarted(_ string)               {}
func (NoopDisplayer) BrowserOpened(_ string, _ time.Time) {}
func (NoopDisplayer) SignedIn(_ string)                   {}
func (NoopDisplayer) LoginFailed(_ error)                 {}
func (NoopDisplayer) Refreshing()                         {}
func (NoopDisplayer) Refreshed()                          {}
func (NoopDisplayer) SessionEnded(_ error)                {}
func (NoopDisplayer) Focused()                            {}
func (NoopDisplayer) Hidden()                             {}
func (NoopDisplayer) Degraded(_ error)                    {}
func (NoopDisplayer) Result(_, _ string)                  {}
func (NoopDisplayer) APICallFailed(_ error)               {}
func (NoopDisplayer) Fatal(_ error)                       {}

// ProgramDisplayer sends BubbleTea messages to a running tea.Program.
type ProgramDisplayer struct {
	p *tea.Program
}

// NewProgramDisplayer creates a ProgramDisplayer that sends messages to p.
func NewProgramDisplayer(p *tea.Program) *ProgramDisplayer {
	return &ProgramDisplayer{p: p}
}

func (t *ProgramDisplayer) Banner(title string) {
	t.p.Send(MsgBanner{Title: title})
}

func (t *ProgramDisplayer) SessionRestored(user string) {
	t.p.Send(MsgSessionRestored{User: user})
}

func (t *ProgramDisplayer) SessionMissing() {
	t.p.Send(MsgSessionMissing{})
}

func (t *ProgramDisplayer) LoginStarted(email string) {
	t.p.Send(MsgLoginStarted{Email: email})
}

func (t *ProgramDisplayer) BrowserOpened(url string, expires time.Time) {
	t.p.Send(MsgBrowserOpened{URL: url, Expires: expires})
}

func (t *ProgramDisplayer) SignedIn(user string) {
	t.p.Send(MsgSignedIn{User: user})
}

func (t *ProgramDisplayer) LoginFailed(err error) {
	t.p.Send(MsgLoginFailed{Err: err})
}

func (t *ProgramDisplayer) Refreshing() {
	t.p.Send(MsgRefreshing{})
}

func (t *ProgramDisplayer) Refreshed() {
	t.p.Send(MsgRefreshed{})
}

func (t *ProgramDisplayer) SessionEnded(err error) {
	t.p.Send(MsgSessionEnded{Err: err})
}

func (t *ProgramDisplayer) Focused() {
	t.p.Send(MsgFocused{})
}

func (t *ProgramDisplayer) Hidden() {
	t.p.Send(MsgHidden{})
}

func (t *ProgramDisplayer) Degraded(err error) {
	t.p.Send(MsgDegraded{Err: err})
}

func (t *ProgramDisplayer) Result(op, text string) {
	t.p.Send(MsgResult{Op: op, Text: text})
}

func (t *ProgramDisplayer) APICallFailed(err error) {
	t.p.Send(MsgAPICallFailed{Err: err})
}

func (t *ProgramDisplayer) Fatal(err error) {
	t.p.Send(MsgFatal{Err: err})
}
