package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"droffers.app/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// ErrNoToken is returned when an endpoint that requires authentication is
// called with no access token and no refresh credential to obtain one. The
// request never leaves the client.
var ErrNoToken = errors.New("api: no access token")

// Error is a non-2xx response from the marketplace API.
type Error struct {
	Status  int
	Method  string
	Path    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("api: %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}

// StatusOf extracts the HTTP status from an API error, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// TokenSource supplies bearer credentials and owns 401 recovery. The client
// never stores tokens itself.
type TokenSource interface {
	// AccessToken returns the current access token, or "" when anonymous.
	AccessToken() string
	// CanRefresh reports whether a refresh credential is available.
	CanRefresh() bool
	// Refresh exchanges the refresh token for a new pair and returns the new
	// access token. Concurrent callers share a single in-flight exchange.
	Refresh(ctx context.Context) (string, error)
}

// Client issues requests against the marketplace REST API. All outbound
// traffic of the frontend goes through it.
type Client struct {
	base   *url.URL
	http   *http.Client
	tokens TokenSource
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying transport (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New creates a Client for the given API root. Requests carry cookies so the
// upstream can correlate server-side sessions.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api: unsupported scheme %q", base.Scheme)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		base: base,
		http: &http.Client{Timeout: 30 * time.Second, Jar: jar},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		c.http.Jar = jar
	}
	return c, nil
}

// SetTokenSource wires the session manager in. Must be called before any
// authenticated request; the split from New breaks the construction cycle
// between client and session.
func (c *Client) SetTokenSource(ts TokenSource) { c.tokens = ts }

type reqOptions struct {
	noAuth      bool
	noRetry     bool
	requireAuth bool
	headers     map[string]string
	responded   *int
}

// ReqOption adjusts a single request.
type ReqOption func(*reqOptions)

// NoAuth suppresses the Authorization header (public endpoints).
func NoAuth() ReqOption { return func(o *reqOptions) { o.noAuth = true } }

// NoRetry disables the 401 refresh-and-replay (the refresh call itself).
func NoRetry() ReqOption { return func(o *reqOptions) { o.noRetry = true } }

// RequireAuth fails the request with ErrNoToken when no credentials exist,
// skipping a round trip that can only 401 (owner/dashboard endpoints).
func RequireAuth() ReqOption { return func(o *reqOptions) { o.requireAuth = true } }

// WithHeader adds a request header.
func WithHeader(key, value string) ReqOption {
	return func(o *reqOptions) {
		if o.headers == nil {
			o.headers = map[string]string{}
		}
		o.headers[key] = value
	}
}

// do issues one API call. body (when non-nil) is JSON-encoded; out (when
// non-nil) receives the decoded response body. Array-valued params are
// serialized as repeated keys.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any, opts ...ReqOption) error {
	var ro reqOptions
	for _, opt := range opts {
		opt(&ro)
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode body: %w", err)
		}
	}

	token := ""
	if !ro.noAuth && c.tokens != nil {
		token = c.tokens.AccessToken()
	}
	// A missing token with a refresh credential still goes out: the 401
	// interception below recovers it.
	if ro.requireAuth && token == "" && (c.tokens == nil || !c.tokens.CanRefresh()) {
		return ErrNoToken
	}

	resp, err := c.send(ctx, method, path, params, payload, token, ro.headers)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && !ro.noRetry && c.tokens != nil && c.tokens.CanRefresh() {
		original := readError(resp, method, path)
		fresh, rerr := c.tokens.Refresh(ctx)
		if rerr != nil {
			// Refresh settled against us: surface the 401 that triggered it.
			return original
		}
		resp, err = c.send(ctx, method, path, params, payload, fresh, ro.headers)
		if err != nil {
			return err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readError(resp, method, path)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode %s %s: %w", method, path, err)
	}
	return nil
}

// send performs a single attempt. The payload is replayed from bytes so a
// post-refresh retry reuses the identical body.
func (c *Client) send(ctx context.Context, method, path string, params url.Values, payload []byte, token string, headers map[string]string) (*http.Response, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(params) > 0 {
		// url.Values.Encode emits one key=value pair per array element,
		// which is the form the upstream filter parser expects.
		u.RawQuery = params.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("api: new request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set(authHeader, bearer+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		obs.ObserveAPIRequest(method, obs.CanonicalPath(path), 0, time.Since(start))
		return nil, fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	obs.ObserveAPIRequest(method, obs.CanonicalPath(path), resp.StatusCode, time.Since(start))
	return resp, nil
}

func readError(resp *http.Response, method, path string) error {
	defer resp.Body.Close()
	apiErr := &Error{Status: resp.StatusCode, Method: method, Path: path}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&payload); err == nil {
		if payload.Message != "" {
			apiErr.Message = payload.Message
		} else {
			apiErr.Message = payload.Error
		}
	}
	return apiErr
}
