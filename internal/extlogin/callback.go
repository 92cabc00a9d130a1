// Package extlogin receives the result of a browser-based login handed back to
// the desktop app through a custom URL scheme, e.g.
//
//	appscheme://callback?access_token=...
//	appscheme://callback?error=access_denied&message=...
package extlogin

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrMalformedCallback is returned for a callback URL carrying neither a token
// nor an error.
var ErrMalformedCallback = errors.New("malformed login callback")

// CallbackHost is the host part of every callback URL.
const CallbackHost = "callback"

// Result is the outcome of one external login attempt. It is delivered to the
// open windows once and never persisted.
type Result struct {
	Success     bool
	AccessToken string
	Error       string
	Message     string
}

// CallbackURL is the redirect target handed to the login page.
func CallbackURL(scheme string) string {
	return scheme + "://" + CallbackHost
}

// Parse extracts the result from a callback URL. A token wins over an error
// when both are present.
func Parse(raw, scheme string) (Result, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	if !strings.EqualFold(u.Scheme, scheme) {
		return Result{}, fmt.Errorf("%w: scheme %q", ErrMalformedCallback, u.Scheme)
	}
	if !strings.EqualFold(u.Host, CallbackHost) {
		return Result{}, fmt.Errorf("%w: host %q", ErrMalformedCallback, u.Host)
	}

	q := u.Query()
	if token := q.Get("access_token"); token != "" {
		return Result{Success: true, AccessToken: token}, nil
	}
	if e := q.Get("error"); e != "" {
		return Result{Error: e, Message: q.Get("message")}, nil
	}
	return Result{}, ErrMalformedCallback
}

// FindCallbackURL returns the first argument that uses scheme. Launchers pass
// the URL as a plain argument on Windows and Linux.
func FindCallbackURL(args []string, scheme string) (string, bool) {
	prefix := strings.ToLower(scheme) + ":"
	for _, arg := range args {
		if strings.HasPrefix(strings.ToLower(arg), prefix) {
			return arg, true
		}
	}
	return "", false
}
