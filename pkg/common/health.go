package common

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Timestamp string                 `json:"timestamp"`
	Uptime    string                 `json:"uptime,omitempty"`
	Checks    map[string]CheckStatus `json:"checks,omitempty"`
}

// CheckStatus represents the status of a single health check
type CheckStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Duration  string `json:"duration,omitempty"`
	Timestamp string `json:"timestamp"`
}

var (
	startTime = time.Now()
)

// LivenessProbe returns a simple liveness check
func LivenessProbe(serviceName, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{
			Status:    "alive",
			Service:   serviceName,
			Version:   version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Uptime:    time.Since(startTime).String(),
		})
	}
}

// ReadinessProbe returns a readiness check with dependency validation.
// Checks listed in optional only degrade the status and never fail the probe.
func ReadinessProbe(serviceName, version string, checks map[string]func() error, optional ...string) gin.HandlerFunc {
	soft := make(map[string]bool, len(optional))
	for _, name := range optional {
		soft[name] = true
	}

	return func(c *gin.Context) {
		now := time.Now().UTC()
		results := runChecks(checks, now)

		status := "ready"
		statusCode := http.StatusOK
		for name, result := range results {
			if result.Status == "healthy" {
				continue
			}
			if soft[name] {
				if status == "ready" {
					status = "degraded"
				}
				continue
			}
			status = "not ready"
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, HealthResponse{
			Status:    status,
			Service:   serviceName,
			Version:   version,
			Timestamp: now.Format(time.RFC3339),
			Uptime:    time.Since(startTime).String(),
			Checks:    results,
		})
	}
}

func runChecks(checks map[string]func() error, now time.Time) map[string]CheckStatus {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckStatus, len(checks))
	)

	for name, check := range checks {
		wg.Add(1)
		go func(n string, cf func() error) {
			defer wg.Done()
			start := time.Now()
			err := cf()
			result := CheckStatus{
				Status:    "healthy",
				Duration:  time.Since(start).String(),
				Timestamp: now.Format(time.RFC3339),
			}
			if err != nil {
				result.Status = "unhealthy"
				result.Message = err.Error()
			}
			mu.Lock()
			results[n] = result
			mu.Unlock()
		}(name, check)
	}

	wg.Wait()
	return results
}
