// Package apierror maps responses of the remote API onto a closed set of error kinds.
//
// The server speaks three error shapes:
//   - {"detail": "text"}
//   - {"detail": [{"msg": "text", "loc": ["body", "field"]}]} (validation)
//   - {"error": "code", "message": "text"}
//
// Classification is driven by the HTTP status first and the body shape second.
// Free-text matching is confined to compat.go.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind is the category of a failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindUnauthorized
	KindForbidden
	KindValidation
	KindNotFound
	KindConflict
	KindRateLimited
	KindServer
	KindAlreadyVerified
	KindSessionTerminated
)

var kindNames = map[Kind]string{
	KindUnknown:           "unknown",
	KindNetwork:           "network",
	KindUnauthorized:      "unauthorized",
	KindForbidden:         "forbidden",
	KindValidation:        "validation",
	KindNotFound:          "not_found",
	KindConflict:          "conflict",
	KindRateLimited:       "rate_limited",
	KindServer:            "server",
	KindAlreadyVerified:   "already_verified",
	KindSessionTerminated: "session_terminated",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// FieldError is one entry of a validation failure.
type FieldError struct {
	Field   string
	Message string
}

// Error is a classified API failure.
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Fields  []FieldError
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("api %s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("api %s: %s", e.Kind, e.Message)
}

// Is lets errors.Is match on kind: errors.Is(err, &Error{Kind: KindNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Status == 0 || t.Status == e.Status)
}

// body is the union of the shapes the server emits.
type body struct {
	Detail  json.RawMessage `json:"detail"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

type validationItem struct {
	Msg string `json:"msg"`
	Loc []any  `json:"loc"`
}

// FromResponse classifies a non-2xx response. raw is the already-read body.
func FromResponse(status int, raw []byte) *Error {
	e := &Error{Kind: kindForStatus(status), Status: status}
	parseBody(e, raw)

	if e.Message == "" {
		e.Message = strings.ToLower(http.StatusText(status))
		if e.Message == "" {
			e.Message = "unexpected response"
		}
	}

	if isAlreadyVerified(status, e.Message) {
		e.Kind = KindAlreadyVerified
	}
	return e
}

func parseBody(e *Error, raw []byte) {
	var b body
	if len(raw) == 0 || json.Unmarshal(raw, &b) != nil {
		return
	}

	e.Code = b.Error
	e.Message = b.Message

	if len(b.Detail) == 0 {
		return
	}

	var text string
	if err := json.Unmarshal(b.Detail, &text); err == nil {
		e.Message = text
		return
	}

	var items []validationItem
	if err := json.Unmarshal(b.Detail, &items); err == nil && len(items) > 0 {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			e.Fields = append(e.Fields, FieldError{Field: fieldName(it.Loc), Message: it.Msg})
			msgs = append(msgs, it.Msg)
		}
		e.Message = strings.Join(msgs, "; ")
		if e.Kind == KindUnknown || e.Status == http.StatusBadRequest {
			e.Kind = KindValidation
		}
	}
}

// fieldName picks the last string element of a location path.
func fieldName(loc []any) string {
	for i := len(loc) - 1; i >= 0; i-- {
		if s, ok := loc[i].(string); ok {
			return s
		}
	}
	return ""
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return KindValidation
	case status >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}

// Classify returns the kind of any error produced by the client stack.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	// Wrappers that name their own kind take precedence over the API error they wrap.
	var kinded interface{ APIKind() Kind }
	if errors.As(err, &kinded) {
		return kinded.APIKind()
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindNetwork
	}
	return KindUnknown
}
