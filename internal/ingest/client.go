package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxReportSize caps the body read from a modeler.
const maxReportSize = 4 << 20 // 4MB

// DefaultTimeout applies to fetches made with a zero timeout.
const DefaultTimeout = 10 * time.Second

// connection pooling limits; modelers are few and long-lived
const (
	defaultMaxIdleConns        = 16
	defaultMaxIdleConnsPerHost = 2
	defaultMaxConnsPerHost     = 4
	defaultIdleConnTimeout     = 90 * time.Second
)

// Response is the outcome of one report fetch.
type Response struct {
	// Body is the report, truncated to maxReportSize.
	Body []byte

	// StatusCode is zero when no response was received.
	StatusCode int

	Latency time.Duration

	// Err is set when the request failed or the modeler answered with a
	// non-2xx status.
	Err error
}

// Client fetches reports from modelers.
//
// Timeouts are applied per request through the context so every modeler can
// have its own.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a [Client] with a small connection pool.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}
}

// Fetch GETs url with headers and returns the body. Errors are reported in
// [Response.Err] rather than returned.
func (c *Client) Fetch(ctx context.Context, url string, headers map[string]string, timeout time.Duration) Response {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{Latency: time.Since(start), Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{Latency: time.Since(start), Err: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReportSize))
	out := Response{Body: body, StatusCode: resp.StatusCode, Latency: time.Since(start)}
	switch {
	case err != nil:
		out.Err = fmt.Errorf("failed to read report: %w", err)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		out.Err = fmt.Errorf("modeler answered %s", resp.Status)
	}
	return out
}

// Close releases idle connections. The client stays usable.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
