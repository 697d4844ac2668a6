package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/timeout"
	"github.com/gin-gonic/gin"
	"github.com/richxcame/fleet-performance/pkg/common"
	"github.com/richxcame/fleet-performance/pkg/config"
	"github.com/richxcame/fleet-performance/pkg/logger"
	"go.uber.org/zap"
)

// RequestTimeout bounds each request by the timeout configured for its route.
// On expiry the client gets a 504 and the handler's context is cancelled.
func RequestTimeout(cfg *config.TimeoutConfig) gin.HandlerFunc {
	var (
		mu       sync.Mutex
		handlers = make(map[time.Duration]gin.HandlerFunc)
	)

	handlerFor := func(d time.Duration) gin.HandlerFunc {
		mu.Lock()
		defer mu.Unlock()
		if h, ok := handlers[d]; ok {
			return h
		}
		h := timeout.New(
			timeout.WithTimeout(d),
			timeout.WithResponse(timeoutResponse(d)),
		)
		handlers[d] = h
		return h
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		handlerFor(cfg.TimeoutForRoute(c.Request.Method, route))(c)
	}
}

func timeoutResponse(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger.WithContext(c.Request.Context()).Warn("Request timeout",
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
			zap.Duration("timeout", d),
		)

		c.Header("X-Timeout", "true")
		c.JSON(http.StatusGatewayTimeout, common.Response{
			Success: false,
			Error: &common.ErrorInfo{
				Code:      http.StatusGatewayTimeout,
				ErrorCode: "REQUEST_TIMEOUT",
				Message:   "Request timeout: the request took too long to process",
			},
		})
	}
}
