package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/richxcame/fleet-performance/pkg/logger"
	"github.com/richxcame/fleet-performance/pkg/middleware"
	"github.com/richxcame/fleet-performance/pkg/resilience"
	"github.com/richxcame/fleet-performance/pkg/tracing"
)

const (
	tracerName      = "httpclient"
	maxResponseBody = 64 << 20
)

// Client wraps http.Client with convenience methods, retry and circuit breaker support
type Client struct {
	httpClient  *http.Client
	baseURL     string
	name        string
	retryConfig *resilience.RetryConfig
	breaker     *resilience.CircuitBreaker
}

// Option configures the HTTP client
type Option func(*Client)

// WithRetry enables retry logic with the given configuration
func WithRetry(config resilience.RetryConfig) Option {
	return func(c *Client) {
		if config.RetryableChecker == nil {
			config.RetryableChecker = IsRetryable
		}
		c.retryConfig = &config
	}
}

// WithBreaker routes every attempt through the given circuit breaker
func WithBreaker(breaker *resilience.CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = breaker
	}
}

// WithName sets the label used for retry metrics
func WithName(name string) Option {
	return func(c *Client) {
		c.name = name
	}
}

// NewClient creates a new HTTP client
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		name:    "http",
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Post makes a POST request with JSON body
func (c *Client) Post(ctx context.Context, path string, body interface{}, headers map[string]string) ([]byte, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = data
	}
	return c.execute(ctx, http.MethodPost, path, "application/json", payload, headers)
}

// PostJSON posts body and decodes the JSON response into out
func (c *Client) PostJSON(ctx context.Context, path string, body, out interface{}, headers map[string]string) error {
	respBody, err := c.Post(ctx, path, body, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// PostForm makes a POST request with a form-encoded body
func (c *Client) PostForm(ctx context.Context, path string, form url.Values, headers map[string]string) ([]byte, error) {
	return c.execute(ctx, http.MethodPost, path, "application/x-www-form-urlencoded", []byte(form.Encode()), headers)
}

// Get makes a GET request
func (c *Client) Get(ctx context.Context, path string, headers map[string]string) ([]byte, error) {
	return c.execute(ctx, http.MethodGet, path, "", nil, headers)
}

func (c *Client) execute(ctx context.Context, method, path, contentType string, payload []byte, headers map[string]string) ([]byte, error) {
	op := func(ctx context.Context) (interface{}, error) {
		return c.do(ctx, method, path, contentType, payload, headers)
	}
	if c.breaker != nil {
		inner := op
		op = func(ctx context.Context) (interface{}, error) {
			return c.breaker.Execute(ctx, inner)
		}
	}

	var (
		result interface{}
		err    error
	)
	if c.retryConfig != nil {
		result, err = resilience.RetryWithName(ctx, *c.retryConfig, op, c.name)
	} else {
		result, err = op(ctx)
	}
	if err != nil {
		return nil, err
	}

	body, _ := result.([]byte)
	return body, nil
}

func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + path
}

func (c *Client) do(ctx context.Context, method, path, contentType string, payload []byte, headers map[string]string) ([]byte, error) {
	target := c.resolve(path)
	var respBody []byte

	_, err := tracing.TraceHTTPClient(ctx, tracerName, method, target, func(ctx context.Context) (int, error) {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
		if err != nil {
			return 0, resilience.Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")
		injectCorrelationID(ctx, req)
		for key, value := range headers {
			req.Header.Set(key, value)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, fmt.Errorf("failed to make request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode >= 400 {
			return resp.StatusCode, &HTTPError{
				StatusCode: resp.StatusCode,
				Body:       truncateBody(respBody),
			}
		}
		return resp.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}

	return respBody, nil
}

// HTTPError represents an HTTP error response
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// StatusCode extracts the HTTP status from err, or 0 when err is not an HTTP error
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// IsRetryable determines if a request error is worth another attempt
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}

	if status := StatusCode(err); status != 0 {
		return resilience.IsRetryableHTTPStatus(status)
	}

	// network issues and client timeouts
	return true
}

// IsUpstreamFailure reports whether err says the upstream is unhealthy. Client errors
// such as 400 or 404 do not count against a circuit breaker.
func IsUpstreamFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	status := StatusCode(err)
	if status == 0 {
		return true
	}
	return status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout
}

func truncateBody(body []byte) string {
	const max = 1024
	if len(body) > max {
		return string(body[:max]) + "...(truncated)"
	}
	return string(body)
}

func injectCorrelationID(ctx context.Context, req *http.Request) {
	if ctx == nil || req == nil {
		return
	}

	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		req.Header.Set(middleware.CorrelationIDHeader, correlationID)
	}
}
