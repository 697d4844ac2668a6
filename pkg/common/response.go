package common

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vmihailenco/msgpack/v5"
)

// MIMEMsgpack is the content type used for binary report responses
const MIMEMsgpack = "application/x-msgpack"

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message"`
}

// Meta carries response metadata for report endpoints
type Meta struct {
	DriverID  string `json:"driver_id,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
	Total     int    `json:"total,omitempty"`
	Cached    bool   `json:"cached"`
	ComputeMS int64  `json:"compute_ms,omitempty"`
}

// WantsMsgpack reports whether the caller asked for a msgpack body
func WantsMsgpack(c *gin.Context) bool {
	if strings.EqualFold(c.Query("format"), "msgpack") {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), MIMEMsgpack)
}

func render(c *gin.Context, statusCode int, body Response) {
	if WantsMsgpack(c) {
		enc, err := marshalMsgpack(body)
		if err == nil {
			c.Data(statusCode, MIMEMsgpack, enc)
			return
		}
	}
	c.JSON(statusCode, body)
}

func marshalMsgpack(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SuccessResponseWithMeta sends a successful response with metadata
func SuccessResponseWithMeta(c *gin.Context, data interface{}, meta *Meta) {
	render(c, http.StatusOK, Response{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

// AcceptedResponse acknowledges an asynchronous operation
func AcceptedResponse(c *gin.Context, data interface{}) {
	render(c, http.StatusAccepted, Response{
		Success: true,
		Data:    data,
	})
}

// ErrorResponse sends an error response
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    statusCode,
			Message: message,
		},
	})
}

// AppErrorResponse sends an AppError response
func AppErrorResponse(c *gin.Context, err *AppError) {
	c.JSON(err.Code, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      err.Code,
			ErrorCode: err.ErrorCode,
			Message:   err.Message,
		},
	})
}
