package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/knowledgemap/pkg/buildinfo"
	kmerrors "github.com/matzehuels/knowledgemap/pkg/errors"
	"github.com/matzehuels/knowledgemap/pkg/httputil"
	"github.com/matzehuels/knowledgemap/pkg/observability"
)

// Client provides shared HTTP functionality for the graph service.
// It handles retry logic, bearer authentication and common request headers.
type Client struct {
	http    *http.Client
	baseURL *url.URL
	headers map[string]string
	retry   httputil.Policy
	logger  *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		if token != "" {
			c.headers["Authorization"] = "Bearer " + token
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(p httputil.Policy) Option { return func(c *Client) { c.retry = p } }

// WithLogger sets the logger used for retry warnings.
func WithLogger(l *log.Logger) Option { return func(c *Client) { c.logger = l } }

// WithHeader adds a default header.
func WithHeader(key, value string) Option { return func(c *Client) { c.headers[key] = value } }

// NewClient creates a Client for the service at baseURL. An empty baseURL
// uses [DefaultBaseURL].
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if err := kmerrors.ValidateURL(baseURL); err != nil {
		return nil, err
	}
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, kmerrors.Wrap(kmerrors.ErrCodeInvalidInput, err, "invalid base URL %q", baseURL)
	}

	c := &Client{
		http:    NewHTTPClient(),
		baseURL: u,
		headers: map[string]string{"Accept": "application/json", "User-Agent": buildinfo.UserAgent()},
		retry:   httputil.DefaultPolicy,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = func(attempt int, err error) {
			c.logger.Warn("graph service request failed, retrying", "attempt", attempt, "error", err)
		}
	}
	return c, nil
}

// BaseURL returns the service base URL.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// Get performs a GET on path (relative to the base URL) and JSON-decodes
// the response into v. Transient failures are retried.
func (c *Client) Get(ctx context.Context, path string, v any) error {
	return c.retry.Do(ctx, func() error {
		body, err := c.doRequest(ctx, path)
		if err != nil {
			return err
		}
		defer body.Close()
		if err := json.NewDecoder(body).Decode(v); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		return nil
	})
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.JoinPath(path).String()
}

func (c *Client) doRequest(ctx context.Context, path string) (io.ReadCloser, error) {
	u := c.endpoint(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	hooks := observability.HTTP()
	hooks.OnRequest(ctx, req.Method, req.URL.Host, req.URL.Path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, req.URL.Host, req.URL.Path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, httputil.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	hooks.OnResponse(ctx, req.Method, req.URL.Host, req.URL.Path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return resp.Body, nil
}

func checkStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, code)
	case code >= 500:
		return httputil.Retryable(fmt.Errorf("%w: status %d", ErrNetwork, code))
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
