// Package apiclient is the HTTP client for the remote API. Every request goes
// through authTransport, which attaches the current bearer token and recovers
// from expired sessions with a single coordinated refresh.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-authgate/speaknative/internal/apierror"
	"github.com/go-authgate/speaknative/internal/logging"
	"github.com/go-authgate/speaknative/internal/refresh"
	"github.com/go-authgate/speaknative/internal/tokenstore"
)

const (
	defaultTimeout = 15 * time.Second
	refreshTimeout = 10 * time.Second
	maxBodySize    = 4 << 20
)

// Options configures a Client.
type Options struct {
	// BaseURL is the API root, e.g. https://host/api/v1.
	BaseURL string
	Store   tokenstore.Store
	// Jar carries the server's refresh cookie. A fresh jar is created when nil.
	Jar http.CookieJar
	// Transport is the network transport under the auth layer.
	Transport http.RoundTripper
	Timeout   time.Duration
	Logger    *slog.Logger
	Hooks     refresh.Hooks
}

// Client talks to the remote API on behalf of one process.
type Client struct {
	base  *url.URL
	http  *http.Client
	store tokenstore.Store
	coord *refresh.Coordinator
	log   *slog.Logger

	// defaultToken is the Authorization value every new request starts from.
	// The store updates it synchronously on Set and Remove.
	defaultToken atomic.Pointer[string]
}

// New builds a Client.
func New(opts Options) (*Client, error) {
	if opts.Store == nil {
		return nil, errors.New("apiclient: store is required")
	}
	base, err := parseBase(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	jar := opts.Jar
	if jar == nil {
		if jar, err = tokenstore.NewJar(); err != nil {
			return nil, err
		}
	}
	next := opts.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{base: base, store: opts.Store, log: log}
	c.coord = refresh.New(c, opts.Store,
		refresh.WithHooks(opts.Hooks),
		refresh.WithCurrentToken(c.token),
		refresh.WithLogger(log.With(slog.String("component", "refresh"))),
	)
	c.http = &http.Client{
		Jar:     jar,
		Timeout: timeout,
		Transport: &authTransport{
			next:   next,
			tokens: c.token,
			coord:  c.coord,
			log:    log,
		},
	}

	c.setDefaultToken(opts.Store.Cached())
	opts.Store.Watch(c.setDefaultToken)
	return c, nil
}

func parseBase(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("apiclient: invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("apiclient: base url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("apiclient: base url must include a host")
	}
	return u, nil
}

func (c *Client) setDefaultToken(token string) {
	c.defaultToken.Store(&token)
}

func (c *Client) token() string {
	if p := c.defaultToken.Load(); p != nil {
		return *p
	}
	return ""
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.base.String() }

// Coordinator exposes the refresh state machine, mostly for status displays.
func (c *Client) Coordinator() *refresh.Coordinator { return c.coord }

// HTTPClient returns the underlying client with the auth transport installed.
func (c *Client) HTTPClient() *http.Client { return c.http }

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends a JSON request and decodes a JSON response into out (when non-nil).
// Non-2xx responses come back as *apierror.Error.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s body: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apierror.FromResponse(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", path, err)
	}
	return nil
}
