package ipc

// Window roles.
const (
	RoleMain        = "main"
	RoleQuickAccess = "quick-access"
)

// EventKind names a shell-to-window notification.
type EventKind string

const (
	// EventExternalLogin carries the outcome of a browser sign-in.
	EventExternalLogin EventKind = "external-login"
	// EventSessionChanged tells windows to drop their cached token and re-read.
	EventSessionChanged EventKind = "session-changed"
	EventFocus          EventKind = "focus"
	EventHide           EventKind = "hide"
)

// ExternalLoginResult is the payload of EventExternalLogin.
type ExternalLoginResult struct {
	Success     bool   `json:"success"`
	AccessToken string `json:"access_token,omitempty"`
	Error       string `json:"error,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Event is one notification on a window's Subscribe stream.
type Event struct {
	Kind  EventKind            `json:"kind"`
	Login *ExternalLoginResult `json:"login,omitempty"`
	// Present reports, for EventSessionChanged, whether a token is now held.
	Present bool `json:"present,omitempty"`
}

type empty struct{}

type tokenMessage struct {
	Token string `json:"token"`
}

type argsMessage struct {
	Args []string `json:"args"`
}

type subscribeRequest struct {
	Role string `json:"role"`
}
