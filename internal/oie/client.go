package oie

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/publicsuffix"
)

const (
	maxResponseBodySize = 4 << 20 // 4MB
	maxErrorTextSize    = 512

	defaultTimeout = 10 * time.Second

	// RequestedWith is the X-Requested-With value the server expects from
	// its own web clients.
	RequestedWith = "OIEUI"
)

// connection pooling limits, shared by every backend polled from one process
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// Option configures a [Client].
type Option func(*Client)

// WithCredentials sets the service account used by
// [Client.AuthenticatedChannels].
func WithCredentials(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithHeaders adds headers sent with every request. They cannot override
// Accept or X-Requested-With.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// WithTimeout bounds each call, retries included. Defaults to 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithInsecureSkipVerify disables TLS certificate verification. Engine
// servers commonly run with self-signed certificates.
func WithInsecureSkipVerify(skip bool) Option {
	return func(c *Client) {
		c.insecure = skip
	}
}

// WithLogger sets the logger used to report retries.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client talks to one engine server.
//
// Each Client owns a cookie jar, so it holds at most one server session.
// Client is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	headers    map[string]string
	username   string
	password   string
	timeout    time.Duration
	insecure   bool
	logger     *slog.Logger

	mu       sync.Mutex
	loggedIn bool
}

// NewClient creates a [Client] for the server at baseURL.
//
// Returns an error if baseURL is not an absolute http or https URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL must be http or https, got %q", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base URL has no host: %q", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")

	c := &Client{
		baseURL: u,
		headers: make(map[string]string),
		timeout: defaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		MaxConnsPerHost:     defaultMaxConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
	}
	if c.insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	c.httpClient = &http.Client{
		// no client timeout - calls are bounded via context
		Transport: transport,
		Jar:       jar,
	}
	return c, nil
}

// BaseURL returns the server base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Login opens a server session with the given credentials.
func (c *Client) Login(ctx context.Context, username, password string) error {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	if _, err := c.send(ctx, opLogin, http.MethodPost, "/api/users/_login", form); err != nil {
		c.setLoggedIn(false)
		return err
	}
	c.setLoggedIn(true)
	return nil
}

// Logout closes the server session.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.send(ctx, opLogout, http.MethodPost, "/api/users/_logout", url.Values{})
	c.setLoggedIn(false)
	return err
}

// Channels fetches all channels visible to the current session.
func (c *Client) Channels(ctx context.Context) ([]Channel, error) {
	body, err := c.send(ctx, opChannels, http.MethodGet, "/api/channels", nil)
	if err != nil {
		return nil, err
	}
	return DecodeChannels(body)
}

// AuthenticatedChannels fetches channels with the configured service
// account, logging in first when no session is open.
//
// When the server rejects the session (401 or 403) the client logs in again
// once and retries. Without credentials it behaves like [Client.Channels].
func (c *Client) AuthenticatedChannels(ctx context.Context) ([]Channel, error) {
	if c.username == "" {
		return c.Channels(ctx)
	}

	if !c.isLoggedIn() {
		if err := c.Login(ctx, c.username, c.password); err != nil {
			return nil, err
		}
	}

	channels, err := c.Channels(ctx)
	if !errors.Is(err, ErrUnauthorized) {
		return channels, err
	}

	c.logger.Debug("session rejected, logging in again", "url", c.BaseURL())
	if err := c.Login(ctx, c.username, c.password); err != nil {
		return nil, err
	}
	return c.Channels(ctx)
}

// Close closes idle connections. The client stays usable.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	c.httpClient.CloseIdleConnections()
}

func (c *Client) isLoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedIn
}

func (c *Client) setLoggedIn(v bool) {
	c.mu.Lock()
	c.loggedIn = v
	c.mu.Unlock()
}

// send performs one API call with retries and returns the response body.
//
// A nil form sends no body. Transport errors and 5xx responses are retried
// until the client timeout elapses; any other non-2xx response is returned
// as a *StatusError straight away.
func (c *Client) send(ctx context.Context, op, method, path string, form url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = c.timeout

	var (
		body    []byte
		lastErr error
	)
	operation := func() error {
		b, err := c.do(ctx, op, method, path, form)
		if err != nil {
			if ctx.Err() == nil {
				lastErr = err
			}
			var se *StatusError
			if errors.As(err, &se) && !se.Temporary() {
				return backoff.Permanent(err)
			}
			return err
		}
		body = b
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Debug("retrying engine request",
			"op", op,
			"url", c.BaseURL(),
			"error", err.Error(),
			"wait", wait.String(),
		)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify); err != nil {
		// report the server's answer rather than the expired deadline
		if errors.Is(err, context.DeadlineExceeded) && lastErr != nil {
			return nil, lastErr
		}
		return nil, err
	}
	return body, nil
}

// do performs a single HTTP round trip.
func (c *Client) do(ctx context.Context, op, method, path string, form url.Values) ([]byte, error) {
	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reqBody)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", RequestedWith)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// read one byte past the limit to detect oversized bodies
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Op: op, Code: resp.StatusCode, Text: errorText(body)}
	}
	if len(body) > maxResponseBodySize {
		return nil, backoff.Permanent(fmt.Errorf("response body exceeds %d bytes", maxResponseBodySize))
	}
	return body, nil
}

// errorText returns the trimmed start of an error response body.
func errorText(body []byte) string {
	if len(body) > maxErrorTextSize {
		body = body[:maxErrorTextSize]
	}
	return strings.TrimSpace(string(body))
}
