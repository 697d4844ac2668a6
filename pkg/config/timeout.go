package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Default and maximum timeouts, in seconds
const (
	DefaultHTTPClientTimeout     = 30
	DefaultDatabaseQueryTimeout  = 10
	DefaultRedisOperationTimeout = 5
	DefaultRequestTimeout        = 30

	MaxHTTPClientTimeout     = 300
	MaxDatabaseQueryTimeout  = 300
	MaxRedisOperationTimeout = 60
	MaxRequestTimeout        = 300
)

// TimeoutConfig holds timeouts for outbound calls and inbound requests
type TimeoutConfig struct {
	HTTPClientTimeout     int
	DatabaseQueryTimeout  int
	RedisOperationTimeout int
	DefaultRequestTimeout int
	RouteOverrides        map[string]int // "METHOD:/path" -> seconds
}

func (c TimeoutConfig) validate() error {
	checks := []struct {
		name  string
		value int
		max   int
	}{
		{"HTTP_CLIENT_TIMEOUT", c.HTTPClientTimeout, MaxHTTPClientTimeout},
		{"DB_QUERY_TIMEOUT", c.DatabaseQueryTimeout, MaxDatabaseQueryTimeout},
		{"REDIS_OPERATION_TIMEOUT", c.RedisOperationTimeout, MaxRedisOperationTimeout},
		{"DEFAULT_REQUEST_TIMEOUT", c.DefaultRequestTimeout, MaxRequestTimeout},
	}
	for _, check := range checks {
		if check.value > check.max {
			return fmt.Errorf("%s (%d) exceeds maximum of %d seconds", check.name, check.value, check.max)
		}
	}
	return nil
}

func parseRouteOverrides(raw string) (map[string]int, error) {
	var parsed map[string]int
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("invalid ROUTE_TIMEOUT_OVERRIDES value: %w", err)
	}

	overrides := make(map[string]int, len(parsed))
	for route, seconds := range parsed {
		if seconds <= 0 {
			continue
		}
		if seconds > MaxRequestTimeout {
			return nil, fmt.Errorf("route timeout for %s (%d) exceeds maximum of %d seconds", route, seconds, MaxRequestTimeout)
		}
		overrides[route] = seconds
	}
	return overrides, nil
}

func seconds(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}

// HTTPClientTimeoutDuration returns the outbound HTTP timeout
func (c TimeoutConfig) HTTPClientTimeoutDuration() time.Duration {
	return seconds(c.HTTPClientTimeout, DefaultHTTPClientTimeout)
}

// DatabaseQueryTimeoutDuration returns the per-query timeout
func (c TimeoutConfig) DatabaseQueryTimeoutDuration() time.Duration {
	return seconds(c.DatabaseQueryTimeout, DefaultDatabaseQueryTimeout)
}

// RedisOperationTimeoutDuration returns the per-command Redis timeout
func (c TimeoutConfig) RedisOperationTimeoutDuration() time.Duration {
	return seconds(c.RedisOperationTimeout, DefaultRedisOperationTimeout)
}

// DefaultRequestTimeoutDuration returns the inbound request timeout
func (c TimeoutConfig) DefaultRequestTimeoutDuration() time.Duration {
	return seconds(c.DefaultRequestTimeout, DefaultRequestTimeout)
}

// TimeoutForRoute returns the timeout for a method and route pattern
func (c TimeoutConfig) TimeoutForRoute(method, route string) time.Duration {
	if override, ok := c.RouteOverrides[method+":"+route]; ok && override > 0 {
		return time.Duration(override) * time.Second
	}
	return c.DefaultRequestTimeoutDuration()
}
