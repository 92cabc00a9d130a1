package apiclient

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

// Attempt is one try of an outbound request. The body is buffered so the
// request can be sent again after a refresh.
type Attempt struct {
	Request *http.Request
	Body    []byte
	// Number is 1 for the original send and 2 for the single replay.
	Number int
	// Token is the bearer credential this attempt was sent with.
	Token string
	// RequestID is shared by the original send and its replay.
	RequestID string
}

func newAttempt(req *http.Request) (*Attempt, error) {
	a := &Attempt{Request: req, Number: 1, RequestID: req.Header.Get(headerRequestID)}
	if a.RequestID == "" {
		a.RequestID = uuid.NewString()
	}
	if req.Body == nil || req.Body == http.NoBody {
		return a, nil
	}

	body, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to buffer request body: %w", err)
	}
	a.Body = body
	return a, nil
}

// next returns the replay of a.
func (a *Attempt) next() *Attempt {
	return &Attempt{Request: a.Request, Body: a.Body, Number: a.Number + 1, RequestID: a.RequestID}
}

// build clones the original request with a fresh body reader.
func (a *Attempt) build() *http.Request {
	r := a.Request.Clone(a.Request.Context())
	if a.Body == nil {
		return r
	}
	r.Body = io.NopCloser(bytes.NewReader(a.Body))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(a.Body)), nil
	}
	r.ContentLength = int64(len(a.Body))
	return r
}
