// Package http provides the HTTP plumbing shared by the YouTube clients:
// per-host rate limiting and classification of failures into retriable
// transport errors, retriable statuses and fatal statuses.
package http

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Config holds HTTP client configuration.
type Config struct {
	// Timeout for individual HTTP requests (0 = none; chunk uploads can be long).
	Timeout time.Duration

	// User agent for HTTP requests
	UserAgent string

	// Rate limiter configuration
	RateLimiter RateLimiterConfig
}

// DefaultConfig returns sensible defaults for HTTP client configuration.
func DefaultConfig() *Config {
	return &Config{
		UserAgent:   "ytreact/1.0",
		RateLimiter: DefaultRateLimiterConfig(),
	}
}

// Client sends single requests through a rate limiter. It never retries;
// callers own the retry policy.
type Client struct {
	base        *http.Client
	config      *Config
	rateLimiter *RateLimiter
}

// New creates a Client. base is typically an OAuth-authorized client; nil
// uses a plain client.
func New(cfg *Config, base *http.Client) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if base == nil {
		base = &http.Client{}
	}
	if cfg.Timeout > 0 {
		clone := *base
		clone.Timeout = cfg.Timeout
		base = &clone
	}
	return &Client{
		base:        base,
		config:      cfg,
		rateLimiter: NewRateLimiter(cfg.RateLimiter),
	}
}

// Do sends req once. Connection-level failures are returned as
// *TransportError tagged with op. Other failures, such as a token that
// cannot be refreshed, are returned wrapped with op only. Any response,
// whatever its status, is returned to the caller.
func (c *Client) Do(req *http.Request, op string) (*http.Response, error) {
	ctx := req.Context()
	if err := c.rateLimiter.Wait(ctx, req.URL.String()); err != nil {
		return nil, err
	}

	if req.Header.Get("User-Agent") == "" && c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if isConnectionFailure(err) {
			return nil, &TransportError{Op: op, Err: err}
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if class := statusClass(resp.StatusCode); class != "" {
		log.Printf("http: %s: %s %d", op, class, resp.StatusCode)
	}
	return resp, nil
}

// ReadError drains resp into an *HTTPError and closes the body. A body
// that cannot be read is a transport failure.
func ReadError(resp *http.Response, op string) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("read error body: %w", err)}
	}
	return &HTTPError{StatusCode: resp.StatusCode, Body: body}
}

// Close releases idle connections.
func (c *Client) Close() error {
	if c.base != nil {
		c.base.CloseIdleConnections()
	}
	return nil
}
