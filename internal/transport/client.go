// Package transport provides the HTTP plumbing shared by the external
// source clients: base URL resolution, authentication, JSON encoding and
// mapping of non-success responses onto pkg/errors.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/errors"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = constants.DefaultHTTPTimeout

// Client performs authenticated JSON requests against one external system.
type Client struct {
	system  string
	baseURL string
	http    *http.Client
	auth    Authenticator
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client, for example with one
// returned by an oauth2 config.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithAuth sets the authenticator applied to every request.
func WithAuth(auth Authenticator) Option {
	return func(c *Client) {
		if auth != nil {
			c.auth = auth
		}
	}
}

// New creates a transport client for the named system rooted at baseURL.
func New(system, baseURL string, opts ...Option) *Client {
	c := &Client{
		system:  system,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultHTTPTimeout},
		auth:    &NoAuth{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// System returns the name of the external system.
func (c *Client) System() string {
	return c.system
}

// URL joins path and query onto the base URL.
func (c *Client) URL(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Do performs an HTTP request with authentication applied.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	c.auth.Apply(req)

	req.Header.Set("Accept", "application/json")
	if req.Method == http.MethodPost || req.Method == http.MethodPut || req.Method == http.MethodPatch {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &errors.APIError{
			System:   c.system,
			Endpoint: req.URL.String(),
			Message:  "request failed",
			Err:      err,
		}
	}
	return resp, nil
}

// Get performs a GET request and decodes a 200 response into target.
func (c *Client) Get(ctx context.Context, path string, query url.Values, target any) error {
	return c.Send(ctx, http.MethodGet, path, query, nil, target)
}

// Send performs a request with an optional JSON body and decodes the
// response into target (which may be nil). accepted lists the success
// status codes and defaults to 200.
func (c *Client) Send(ctx context.Context, method, path string, query url.Values, body, target any, accepted ...int) error {
	endpoint := c.URL(path, query)

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.WrapParse("json", method+" "+endpoint, err)
		}
		reader = bytes.NewReader(payload)
	}

	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
	}
	if err != nil {
		return errors.WrapResource("create", "request", method+" "+endpoint, err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	return DecodeResponse(c.system, resp, target, accepted...)
}
