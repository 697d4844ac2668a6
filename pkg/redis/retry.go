package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/richxcame/fleet-performance/pkg/resilience"
)

// RetryableOperation executes a Redis operation with retry logic for transient failures
func RetryableOperation[T any](ctx context.Context, operation func(context.Context) (T, error), operationName string) (T, error) {
	config := resilience.DefaultRetryConfig()
	config.MaxAttempts = 3
	config.InitialBackoff = 50 * time.Millisecond
	config.MaxBackoff = 1 * time.Second
	config.RetryableChecker = isRedisRetryable

	return resilience.Do(ctx, config, operationName, operation)
}

// RetryableSet sets a key-value pair with retry logic
func (c *Client) RetryableSet(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	_, err := RetryableOperation(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.SetWithExpiration(ctx, key, value, expiration)
	}, "redis.set")
	return err
}

// RetryableGetBytes gets a raw value by key with retry logic
func (c *Client) RetryableGetBytes(ctx context.Context, key string) ([]byte, error) {
	return RetryableOperation(ctx, func(ctx context.Context) ([]byte, error) {
		return c.GetBytes(ctx, key)
	}, "redis.get")
}

// RetryableGetInt64 reads a counter with retry logic
func (c *Client) RetryableGetInt64(ctx context.Context, key string) (int64, error) {
	return RetryableOperation(ctx, func(ctx context.Context) (int64, error) {
		return c.GetInt64(ctx, key)
	}, "redis.get_counter")
}

// RetryableIncr increments a counter with retry logic
func (c *Client) RetryableIncr(ctx context.Context, key string) (int64, error) {
	return RetryableOperation(ctx, func(ctx context.Context) (int64, error) {
		return c.IncrCounter(ctx, key)
	}, "redis.incr")
}

// RetryingClient routes the cache and counter reads and writes through the
// retryable operations. Everything else goes straight to the wrapped client.
type RetryingClient struct {
	*Client
}

// WithRetry wraps c so GetBytes, SetWithExpiration, GetInt64 and IncrCounter retry transient failures
func WithRetry(c *Client) *RetryingClient {
	return &RetryingClient{Client: c}
}

// GetBytes reads a raw value, retrying transient failures
func (r *RetryingClient) GetBytes(ctx context.Context, key string) ([]byte, error) {
	return r.Client.RetryableGetBytes(ctx, key)
}

// SetWithExpiration stores a value, retrying transient failures
func (r *RetryingClient) SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return r.Client.RetryableSet(ctx, key, value, expiration)
}

// GetInt64 reads a counter, retrying transient failures
func (r *RetryingClient) GetInt64(ctx context.Context, key string) (int64, error) {
	return r.Client.RetryableGetInt64(ctx, key)
}

// IncrCounter increments a counter, retrying transient failures
func (r *RetryingClient) IncrCounter(ctx context.Context, key string) (int64, error) {
	return r.Client.RetryableIncr(ctx, key)
}

// isRedisRetryable determines if a Redis error should be retried
func isRedisRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Don't retry context errors
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Don't retry Nil (key not found) - this is expected behavior
	if errors.Is(err, redis.Nil) {
		return false
	}

	// Check for connection errors
	errMsg := strings.ToLower(err.Error())
	retryableMessages := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"network is unreachable",
		"temporary failure",
		"timeout",
		"server closed",
		"unexpected eof",
		"pool timeout",
		"i/o timeout",
		"connection pool exhausted",
		"loading",     // Redis is loading dataset
		"busy",        // Redis is busy (script execution, etc.)
		"masterdown",  // Master is down
		"readonly",    // Replica is read-only (for write operations on replica)
		"noscript",    // Script not in cache (can retry after loading)
		"cluster",     // Cluster-related transient errors
		"moved",       // Key moved to another node (Redis Cluster)
		"ask",         // Redirection in Redis Cluster
		"tryagain",    // Redis asking to retry
		"clusterdown", // Cluster is down
	}

	for _, msg := range retryableMessages {
		if strings.Contains(errMsg, msg) {
			return true
		}
	}

	// Don't retry on validation errors
	nonRetryableMessages := []string{
		"wrongtype",   // Operation against a key holding the wrong kind of value
		"err syntax",  // Syntax error
		"err invalid", // Invalid argument
		"noauth",      // Authentication required
		"wrongpass",   // Invalid password
		"noperm",      // No permission
		"err unknown", // Unknown command
		"execabort",   // Transaction aborted
	}

	for _, msg := range nonRetryableMessages {
		if strings.Contains(errMsg, msg) {
			return false
		}
	}

	// Retry by default for unknown errors (conservative approach for cache)
	return true
}
