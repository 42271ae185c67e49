package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const maxResponseBytes = 10 << 20

// restClient is the JSON-over-HTTP transport shared by the REST platforms
type restClient struct {
	httpClient *http.Client
}

func newRESTClient(httpClient *http.Client) *restClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &restClient{httpClient: httpClient}
}

func (c *restClient) getJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return &TransientError{Err: fmt.Errorf("failed to execute request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &TransientError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if err := CheckStatus(resp, body); err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &TransientError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// CheckStatus classifies a non-2xx response into the adapter error taxonomy
func CheckStatus(resp *http.Response, body []byte) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &AuthError{StatusCode: code, Message: snippet(body)}
	case code == http.StatusTooManyRequests:
		return &RateLimitedError{RetryAfter: ParseRetryAfter(resp.Header, time.Now()), Message: snippet(body)}
	case code >= 500:
		return &TransientError{Err: fmt.Errorf("status %d: %s", code, snippet(body))}
	default:
		return fmt.Errorf("platform API error: status %d: %s", code, snippet(body))
	}
}

// ParseRetryAfter reads a Retry-After header in seconds or HTTP-date form
func ParseRetryAfter(h http.Header, now time.Time) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}

func snippet(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
