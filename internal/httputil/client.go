// Package httputil provides the outbound HTTP client used for integration
// deliveries.
package httputil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxResponseBytes = 1 << 20

// Config configures the client.
type Config struct {
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
}

// Client posts JSON payloads and retries transient failures.
type Client struct {
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
}

// NewClient creates a client. Zero values pick 10s timeout, 2 retries and
// 500ms linear backoff.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 2
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.Backoff
	if backoff == 0 {
		backoff = 500 * time.Millisecond
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{httpClient: httpClient, maxRetries: maxRetries, backoff: backoff}
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Body)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// PostJSON sends body to url. Transport errors, 429 and 5xx responses are
// retried. The last response is returned alongside a *StatusError when it
// is not successful.
func (c *Client) PostJSON(ctx context.Context, url string, body []byte, headers map[string]string) (Response, error) {
	var (
		resp    Response
		lastErr error
	)
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return resp, ctx.Err()
			case <-time.After(c.backoff * time.Duration(attempt)):
			}
		}
		resp, lastErr = c.post(ctx, url, body, headers)
		if lastErr == nil && resp.StatusCode < 300 {
			return resp, nil
		}
		if lastErr == nil && !retryable(resp.StatusCode) {
			break
		}
	}
	if lastErr != nil {
		return resp, lastErr
	}
	msg := strings.TrimSpace(string(resp.Body))
	if len(msg) > 512 {
		msg = msg[:512] + "...(truncated)"
	}
	return resp, &StatusError{StatusCode: resp.StatusCode, Body: msg}
}

func (c *Client) post(ctx context.Context, url string, body []byte, headers map[string]string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "gestly-integrations/1")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	data, _, err := ReadAllWithLimit(httpResp.Body, maxResponseBytes)
	if err != nil {
		return Response{StatusCode: httpResp.StatusCode}, fmt.Errorf("read response body: %w", err)
	}
	return Response{StatusCode: httpResp.StatusCode, Body: data}, nil
}

// ReadAllWithLimit reads at most limit bytes and reports whether the body
// was longer.
func ReadAllWithLimit(r io.Reader, limit int64) ([]byte, bool, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > limit {
		return data[:limit], true, nil
	}
	return data, false, nil
}
