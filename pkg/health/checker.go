package health

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/richxcame/fleet-performance/pkg/resilience"
)

// Checker is a health check function that returns an error if unhealthy
type Checker func() error

// Pinger is anything with a context-aware liveness ping, such as the redis client
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckerConfig holds configuration for health checkers
type CheckerConfig struct {
	Timeout time.Duration
}

// DefaultCheckerConfig returns default configuration for health checkers
func DefaultCheckerConfig() CheckerConfig {
	return CheckerConfig{
		Timeout: 2 * time.Second,
	}
}

// DatabaseChecker returns a health check function for the feed database
func DatabaseChecker(db *sql.DB) Checker {
	return DatabaseCheckerWithConfig(db, DefaultCheckerConfig())
}

// DatabaseCheckerWithConfig returns a database health checker with custom configuration
func DatabaseCheckerWithConfig(db *sql.DB, cfg CheckerConfig) Checker {
	return func() error {
		if db == nil {
			return fmt.Errorf("database connection is nil")
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		return nil
	}
}

// RedisChecker returns a health check function for the report cache
func RedisChecker(client Pinger) Checker {
	return RedisCheckerWithConfig(client, DefaultCheckerConfig())
}

// RedisCheckerWithConfig returns a Redis health checker with custom configuration
func RedisCheckerWithConfig(client Pinger, cfg CheckerConfig) Checker {
	return func() error {
		if client == nil {
			return fmt.Errorf("redis client is nil")
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()

		if err := client.Ping(ctx); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		return nil
	}
}

// BreakerChecker fails while the breaker is refusing requests
func BreakerChecker(breaker *resilience.CircuitBreaker) Checker {
	return func() error {
		if !breaker.Allow() {
			return fmt.Errorf("circuit breaker %s is %s", breaker.Name(), breaker.State())
		}
		return nil
	}
}

// ConnectedChecker adapts a boolean connection probe, e.g. the event bus
func ConnectedChecker(name string, connected func() bool) Checker {
	return func() error {
		if connected == nil || !connected() {
			return fmt.Errorf("%s is not connected", name)
		}
		return nil
	}
}

// AsyncChecker wraps a checker to run asynchronously with a timeout
func AsyncChecker(checker Checker, timeout time.Duration) Checker {
	return func() error {
		errChan := make(chan error, 1)
		go func() {
			errChan <- checker()
		}()

		select {
		case err := <-errChan:
			return err
		case <-time.After(timeout):
			return fmt.Errorf("health check timeout after %v", timeout)
		}
	}
}

// CachedChecker caches the result of a health check for a given duration
type CachedChecker struct {
	checker    Checker
	cacheTTL   time.Duration
	mu         sync.Mutex
	lastCheck  time.Time
	lastResult error
}

// NewCachedChecker creates a new cached health checker
func NewCachedChecker(checker Checker, cacheTTL time.Duration) *CachedChecker {
	return &CachedChecker{
		checker:  checker,
		cacheTTL: cacheTTL,
	}
}

// Check runs the health check, using cached result if still valid
func (c *CachedChecker) Check() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if !c.lastCheck.IsZero() && now.Sub(c.lastCheck) < c.cacheTTL {
		return c.lastResult
	}

	c.lastResult = c.checker()
	c.lastCheck = now
	return c.lastResult
}
