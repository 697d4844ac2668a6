package common

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/fleet-performance/pkg/logger"
	"go.uber.org/zap"
)

var driverIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,128}$`)

// HandleServiceError handles service errors with consistent patterns.
// Returns true if an error was handled (and response was sent), false otherwise.
//
// Usage:
//
//	report, err := h.service.Report(ctx, query)
//	if HandleServiceError(c, err, "failed to build report") {
//	    return
//	}
func HandleServiceError(c *gin.Context, err error, fallbackMessage string) bool {
	return HandleServiceErrorWithCode(c, err, http.StatusInternalServerError, fallbackMessage)
}

// HandleServiceErrorWithCode handles service errors with a custom fallback status code.
func HandleServiceErrorWithCode(c *gin.Context, err error, fallbackCode int, fallbackMessage string) bool {
	if err == nil {
		return false
	}

	if appErr, ok := AsAppError(err); ok {
		if appErr.Code >= http.StatusInternalServerError {
			logger.ErrorContext(c.Request.Context(), appErr.Message, zap.Error(appErr.Err))
			_ = c.Error(appErr)
		}
		AppErrorResponse(c, appErr)
		return true
	}

	logger.ErrorContext(c.Request.Context(), fallbackMessage,
		zap.Error(err),
	)
	_ = c.Error(err)

	ErrorResponse(c, fallbackCode, fallbackMessage)
	return true
}

// ParseDriverIDParam reads and validates a driver identifier path parameter.
// On failure the error response is already written.
func ParseDriverIDParam(c *gin.Context, paramName string) (string, bool) {
	value := c.Param(paramName)
	if value == "" {
		AppErrorResponse(c, NewValidationError("driver ID is required"))
		return "", false
	}
	if !driverIDPattern.MatchString(value) {
		AppErrorResponse(c, NewValidationError("invalid driver ID"))
		return "", false
	}
	return value, true
}

// BindQuery binds query parameters and sends error response on failure.
// Returns true on success, false on failure (response already sent).
func BindQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		AppErrorResponse(c, NewBadRequestError(err.Error(), err))
		return false
	}
	return true
}
