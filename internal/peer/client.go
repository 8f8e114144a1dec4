// Package peer talks to other dashsrv instances over plain HTTP.
//
// Client.Get is a fixed-timeout GET that never returns an error: the outcome
// is carried in Response.Success and Response.Reason. Client.FetchStatus builds
// on it to read and validate a peer's /api/local self-report.
package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds one GET, including reading the body.
	DefaultTimeout = 3000 * time.Millisecond
	// DefaultUserAgent identifies dashsrv to peers and media servers.
	DefaultUserAgent = "dashsrv/1.0.0"

	maxBodyBytes = 4 << 20
)

// Response is the result of one GET.
type Response struct {
	Body       []byte
	StatusCode int
	Success    bool
	Reason     string
}

// ClientConfig holds configuration for the peer client.
type ClientConfig struct {
	// Timeout is the per-request timeout (default: 3s)
	Timeout time.Duration

	// UserAgent is sent with every request (default: dashsrv/1.0.0)
	UserAgent string

	// Transport overrides the HTTP transport, mostly for tests
	Transport http.RoundTripper
}

// Client performs GET requests against peers and media servers.
type Client struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
}

// NewClient creates a new peer client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
	}
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Get fetches target, which may omit the scheme ("10.0.0.2:8080/api/local").
// Any status outside 2xx is a failure.
func (c *Client) Get(ctx context.Context, target string) Response {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, normalizeURL(target), nil)
	if err != nil {
		return Response{Reason: fmt.Sprintf("invalid request: %v", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{Reason: describeError(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Response{StatusCode: resp.StatusCode, Reason: describeError(err)}
	}

	out := Response{Body: body, StatusCode: resp.StatusCode}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		out.Reason = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return out
	}
	out.Success = true
	return out
}

func normalizeURL(target string) string {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	return "http://" + target
}

func describeError(err error) string {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return "Timed out"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return "Connection refused"
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return "Connection closed"
	}
	return err.Error()
}
