package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/fleet-performance/pkg/resilience"
)

// Status values
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// DependencyStatus represents the health status of a single dependency
type DependencyStatus struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Critical  bool      `json:"critical"`
	LatencyMS int64     `json:"latency_ms"`
	Message   string    `json:"message,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// DeepHealthStatus represents the complete health status of the service
type DeepHealthStatus struct {
	Status        string                      `json:"status"`
	Version       string                      `json:"version,omitempty"`
	UptimeSeconds int64                       `json:"uptime_seconds"`
	Dependencies  map[string]DependencyStatus `json:"dependencies"`
	Breakers      map[string]BreakerStatus    `json:"circuit_breakers,omitempty"`
	CheckedAt     time.Time                   `json:"checked_at"`
}

// BreakerStatus represents the status of a circuit breaker
type BreakerStatus struct {
	Name   string `json:"name"`
	State  string `json:"state"`
	Allows bool   `json:"allows_requests"`
}

type dependency struct {
	check    Checker
	critical bool
}

// DeepChecker reports every dependency and breaker of the service.
// A failing critical dependency makes the service unhealthy, anything else degrades it.
type DeepChecker struct {
	dependencies map[string]dependency
	breakers     map[string]*resilience.CircuitBreaker
	version      string
	startTime    time.Time
	timeout      time.Duration
	cacheTTL     time.Duration

	mu          sync.RWMutex
	lastResult  *DeepHealthStatus
	lastChecked time.Time
}

// DeepCheckerConfig holds configuration for the deep checker
type DeepCheckerConfig struct {
	Version  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// DefaultDeepCheckerConfig returns sensible defaults
func DefaultDeepCheckerConfig() DeepCheckerConfig {
	return DeepCheckerConfig{
		Version:  "unknown",
		Timeout:  5 * time.Second,
		CacheTTL: 10 * time.Second,
	}
}

// NewDeepChecker creates a new deep health checker
func NewDeepChecker(config DeepCheckerConfig) *DeepChecker {
	return &DeepChecker{
		dependencies: make(map[string]dependency),
		breakers:     make(map[string]*resilience.CircuitBreaker),
		version:      config.Version,
		startTime:    time.Now(),
		timeout:      config.Timeout,
		cacheTTL:     config.CacheTTL,
	}
}

// AddDependency registers a named check
func (d *DeepChecker) AddDependency(name string, check Checker, critical bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dependencies[name] = dependency{check: check, critical: critical}
	d.lastResult = nil
}

// AddCircuitBreaker adds a circuit breaker to monitor
func (d *DeepChecker) AddCircuitBreaker(name string, breaker *resilience.CircuitBreaker) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.breakers[name] = breaker
	d.lastResult = nil
}

// Checks returns the registered dependency checks, for readiness probes
func (d *DeepChecker) Checks() (checks map[string]func() error, optional []string) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	checks = make(map[string]func() error, len(d.dependencies))
	for name, dep := range d.dependencies {
		checks[name] = dep.check
		if !dep.critical {
			optional = append(optional, name)
		}
	}
	sort.Strings(optional)
	return checks, optional
}

// Check performs a deep health check on all dependencies
func (d *DeepChecker) Check(ctx context.Context) *DeepHealthStatus {
	d.mu.RLock()
	if d.lastResult != nil && time.Since(d.lastChecked) < d.cacheTTL {
		result := d.lastResult
		d.mu.RUnlock()
		return result
	}
	deps := make(map[string]dependency, len(d.dependencies))
	for name, dep := range d.dependencies {
		deps[name] = dep
	}
	breakers := make(map[string]*resilience.CircuitBreaker, len(d.breakers))
	for name, b := range d.breakers {
		breakers[name] = b
	}
	d.mu.RUnlock()

	status := &DeepHealthStatus{
		Status:        StatusHealthy,
		Version:       d.version,
		UptimeSeconds: int64(time.Since(d.startTime).Seconds()),
		Dependencies:  make(map[string]DependencyStatus, len(deps)),
		Breakers:      make(map[string]BreakerStatus, len(breakers)),
		CheckedAt:     time.Now(),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, dep := range deps {
		wg.Add(1)
		go func(name string, dep dependency) {
			defer wg.Done()
			depStatus := d.runCheck(ctx, name, dep)

			mu.Lock()
			defer mu.Unlock()
			status.Dependencies[name] = depStatus
			switch {
			case depStatus.Status == StatusHealthy:
			case dep.critical:
				status.Status = StatusUnhealthy
			case status.Status == StatusHealthy:
				status.Status = StatusDegraded
			}
		}(name, dep)
	}

	wg.Wait()

	for name, breaker := range breakers {
		allows := breaker.Allow()
		if !allows && status.Status == StatusHealthy {
			status.Status = StatusDegraded
		}
		status.Breakers[name] = BreakerStatus{
			Name:   name,
			State:  breaker.State(),
			Allows: allows,
		}
	}

	d.mu.Lock()
	d.lastResult = status
	d.lastChecked = time.Now()
	d.mu.Unlock()

	return status
}

func (d *DeepChecker) runCheck(ctx context.Context, name string, dep dependency) DependencyStatus {
	start := time.Now()
	result := DependencyStatus{Name: name, Critical: dep.critical, CheckedAt: start}

	err := AsyncChecker(dep.check, d.timeout)()
	result.LatencyMS = time.Since(start).Milliseconds()

	if ctx.Err() != nil && err == nil {
		err = ctx.Err()
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
		return result
	}

	result.Status = StatusHealthy
	return result
}

// GinHandler returns a Gin handler for the deep health check endpoint
func (d *DeepChecker) GinHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := d.Check(c.Request.Context())

		httpStatus := http.StatusOK
		if status.Status == StatusUnhealthy {
			httpStatus = http.StatusServiceUnavailable
		}

		c.JSON(httpStatus, status)
	}
}
