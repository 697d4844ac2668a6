package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/richxcame/fleet-performance/pkg/logger"
	"github.com/richxcame/fleet-performance/pkg/middleware"
	"github.com/richxcame/fleet-performance/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func TestClient_PostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/fleetIntegration/v1/getFleetOrders", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "corr-1", r.Header.Get(middleware.CorrelationIDHeader))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 100, body["limit"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{"code": 0, "message": "OK"})
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", time.Second)
	ctx := logger.ContextWithCorrelationID(context.Background(), "corr-1")

	var out struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	err := client.PostJSON(ctx, "/fleetIntegration/v1/getFleetOrders",
		map[string]int{"limit": 100}, &out, map[string]string{"Authorization": "Bearer tok"})

	require.NoError(t, err)
	assert.Equal(t, "OK", out.Message)
}

func TestClient_PostForm_AbsoluteURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		_, _ = w.Write([]byte(`{"access_token":"abc"}`))
	}))
	defer server.Close()

	client := NewClient("https://unused.example.com", time.Second)
	body, err := client.PostForm(context.Background(), server.URL+"/token", url.Values{"grant_type": {"client_credentials"}}, nil)

	require.NoError(t, err)
	assert.JSONEq(t, `{"access_token":"abc"}`, string(body))
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, WithRetry(fastRetry(3)))
	body, err := client.Get(context.Background(), "/", nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`bad token`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, WithRetry(fastRetry(3)))
	_, err := client.Get(context.Background(), "/", nil)

	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_BreakerOpens(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	breaker := resilience.NewCircuitBreaker(resilience.Settings{
		Name:             "httpclient-test",
		Timeout:          time.Minute,
		FailureThreshold: 2,
		IsFailure:        IsUpstreamFailure,
	}, nil)
	client := NewClient(server.URL, time.Second, WithBreaker(breaker))

	for i := 0; i < 2; i++ {
		_, err := client.Get(context.Background(), "/", nil)
		require.Error(t, err)
	}

	_, err := client.Get(context.Background(), "/", nil)
	assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIsUpstreamFailure(t *testing.T) {
	assert.False(t, IsUpstreamFailure(nil))
	assert.False(t, IsUpstreamFailure(&HTTPError{StatusCode: http.StatusBadRequest}))
	assert.True(t, IsUpstreamFailure(&HTTPError{StatusCode: http.StatusBadGateway}))
	assert.True(t, IsUpstreamFailure(&HTTPError{StatusCode: http.StatusTooManyRequests}))
	assert.True(t, IsUpstreamFailure(errors.New("dial tcp: connection refused")))
	assert.False(t, IsUpstreamFailure(context.Canceled))
}
