package common_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/fleet-performance/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name            string
		err             error
		fallbackMsg     string
		expectHandled   bool
		expectStatus    int
		expectContains  string
		expectErrorCode string
	}{
		{
			name:          "nil error returns false",
			err:           nil,
			fallbackMsg:   "failed",
			expectHandled: false,
		},
		{
			name:            "AppError is handled",
			err:             common.NewValidationError("from must not be after to"),
			fallbackMsg:     "failed to build report",
			expectHandled:   true,
			expectStatus:    http.StatusBadRequest,
			expectContains:  "from must not be after to",
			expectErrorCode: common.CodeValidation,
		},
		{
			name:            "wrapped AppError is unwrapped",
			err:             fmt.Errorf("compute: %w", common.NewServiceUnavailableError("state log feed unavailable", nil)),
			fallbackMsg:     "failed to build report",
			expectHandled:   true,
			expectStatus:    http.StatusServiceUnavailable,
			expectContains:  "state log feed unavailable",
			expectErrorCode: common.CodeCircuitOpen,
		},
		{
			name:           "regular error uses fallback",
			err:            errors.New("redis: connection refused"),
			fallbackMsg:    "failed to build report",
			expectHandled:  true,
			expectStatus:   http.StatusInternalServerError,
			expectContains: "failed to build report",
		},
		{
			name:            "bad gateway AppError",
			err:             common.NewBadGatewayError("trip feed failed", errors.New("502")),
			fallbackMsg:     "failed",
			expectHandled:   true,
			expectStatus:    http.StatusBadGateway,
			expectContains:  "trip feed failed",
			expectErrorCode: common.CodeUpstream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)

			handled := common.HandleServiceError(c, tt.err, tt.fallbackMsg)
			assert.Equal(t, tt.expectHandled, handled)

			if tt.expectHandled {
				assert.Equal(t, tt.expectStatus, w.Code)
				assert.Contains(t, w.Body.String(), tt.expectContains)

				var resp common.Response
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.False(t, resp.Success)
				assert.Equal(t, tt.expectErrorCode, resp.Error.ErrorCode)
			}
		})
	}
}

func TestParseDriverIDParam(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		expectOK     bool
		expectStatus int
	}{
		{name: "numeric id", value: "482193", expectOK: true},
		{name: "uuid id", value: "2f1c7c2e-6f8e-4a55-9b0a-1f2d8f3c0e11", expectOK: true},
		{name: "empty", value: "", expectOK: false, expectStatus: http.StatusBadRequest},
		{name: "spaces", value: "driver 1", expectOK: false, expectStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)
			c.Params = gin.Params{{Key: "driver_id", Value: tt.value}}

			id, ok := common.ParseDriverIDParam(c, "driver_id")
			assert.Equal(t, tt.expectOK, ok)
			if tt.expectOK {
				assert.Equal(t, tt.value, id)
			} else {
				assert.Equal(t, tt.expectStatus, w.Code)
			}
		})
	}
}

func TestBindQuery(t *testing.T) {
	type query struct {
		Date string `form:"date" binding:"required"`
	}

	t.Run("valid", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/test?date=2024-03-05", nil)

		var q query
		assert.True(t, common.BindQuery(c, &q))
		assert.Equal(t, "2024-03-05", q.Date)
	})

	t.Run("missing required", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)

		var q query
		assert.False(t, common.BindQuery(c, &q))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSuccessResponse_Msgpack(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/test?format=msgpack", nil)

	common.SuccessResponseWithMeta(c, map[string]int{"trips": 3}, &common.Meta{DriverID: "d1", Cached: true})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, common.MIMEMsgpack, w.Header().Get("Content-Type"))

	var decoded map[string]interface{}
	require.NoError(t, msgpack.Unmarshal(w.Body.Bytes(), &decoded))
	assert.Equal(t, true, decoded["success"])
	meta, ok := decoded["meta"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "d1", meta["driver_id"])
}

func TestSuccessResponse_JSONByDefault(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)

	common.SuccessResponseWithMeta(c, []string{"a"}, nil)

	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"success":true,"data":["a"]}`, w.Body.String())
}
