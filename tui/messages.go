package tui

import (
	"time"
)

// MsgBanner carries the title of the window being run.
type MsgBanner struct{ Title string }

// MsgSessionRestored signals that a stored session was found and is valid.
type MsgSessionRestored struct{ User string }

// MsgSessionMissing signals that no session is stored.
type MsgSessionMissing struct{}

// MsgLoginStarted signals a password login attempt.
type MsgLoginStarted struct{ Email string }

// MsgBrowserOpened signals that the external login page is open in the browser.
type MsgBrowserOpened struct {
	URL     string
	Expires time.Time
}

// MsgSignedIn signals that a session was established.
type MsgSignedIn struct{ User string }

// MsgLoginFailed signals that a login attempt failed.
type MsgLoginFailed struct{ Err error }

// MsgRefreshing signals that the access token is being refreshed.
type MsgRefreshing struct{}

// MsgRefreshed signals that the refresh succeeded and queued calls are replaying.
type MsgRefreshed struct{}

// MsgSessionEnded signals that the session could not be recovered.
type MsgSessionEnded struct{ Err error }

// MsgFocused signals that the shell brought this window forward.
type MsgFocused struct{}

// MsgHidden signals that the shell hid this window.
type MsgHidden struct{}

// MsgDegraded signals that the shell cannot be reached; nil Err means it is back.
type MsgDegraded struct{ Err error }

// MsgResult carries the output of a learning operation.
type MsgResult struct {
	Op   string
	Text string
}

// MsgAPICallFailed signals that an API call failed.
type MsgAPICallFailed struct{ Err error }

// MsgFatal signals a fatal error that should terminate the window.
type MsgFatal struct{ Err error }
