package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	redisclient "github.com/richxcame/fleet-performance/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	DriverID string  `json:"driver_id"`
	Gross    float64 `json:"gross"`
	Days     []int   `json:"days"`
}

func newTestManager(t *testing.T) (*Manager, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	return NewManager(redisclient.Wrap(db)), mock
}

func TestManager_Get_Success(t *testing.T) {
	m, mock := newTestManager(t)
	payload, err := Encode(sample{DriverID: "d1", Gross: 42.5, Days: []int{1, 2}})
	require.NoError(t, err)

	mock.ExpectGet("key").SetVal(string(payload))

	var got sample
	require.NoError(t, m.Get(context.Background(), "key", &got))
	assert.Equal(t, sample{DriverID: "d1", Gross: 42.5, Days: []int{1, 2}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_Get_Miss(t *testing.T) {
	m, mock := newTestManager(t)
	mock.ExpectGet("key").RedisNil()

	var got sample
	assert.ErrorIs(t, m.Get(context.Background(), "key", &got), ErrMiss)
}

func TestManager_Get_CorruptPayload(t *testing.T) {
	m, mock := newTestManager(t)
	mock.ExpectGet("key").SetVal("\xc1")

	var got sample
	err := m.Get(context.Background(), "key", &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}

func TestManager_Set(t *testing.T) {
	m, mock := newTestManager(t)
	value := sample{DriverID: "d1"}
	payload, err := Encode(value)
	require.NoError(t, err)

	mock.ExpectSet("key", payload, 15*time.Minute).SetVal("OK")

	require.NoError(t, m.Set(context.Background(), "key", value, 15*time.Minute))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_GetOrCompute_Hit(t *testing.T) {
	m, mock := newTestManager(t)
	payload, err := Encode(sample{DriverID: "cached"})
	require.NoError(t, err)
	mock.ExpectGet("key").SetVal(string(payload))

	var got sample
	hit, err := m.GetOrCompute(context.Background(), "key", time.Minute, &got, func(context.Context) (interface{}, error) {
		t.Fatal("compute must not run on a hit")
		return nil, nil
	})

	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "cached", got.DriverID)
}

func TestManager_GetOrCompute_MissStores(t *testing.T) {
	m, mock := newTestManager(t)
	value := sample{DriverID: "fresh", Gross: 10}
	payload, err := Encode(value)
	require.NoError(t, err)

	mock.ExpectGet("key").RedisNil()
	mock.ExpectSet("key", payload, time.Minute).SetVal("OK")

	var got sample
	hit, err := m.GetOrCompute(context.Background(), "key", time.Minute, &got, func(context.Context) (interface{}, error) {
		return value, nil
	})

	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, value, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_GetOrCompute_DegradesOnRedisFailure(t *testing.T) {
	m, mock := newTestManager(t)
	value := sample{DriverID: "fresh"}
	payload, err := Encode(value)
	require.NoError(t, err)

	mock.ExpectGet("key").SetErr(errors.New("connection refused"))
	mock.ExpectSet("key", payload, time.Minute).SetErr(errors.New("connection refused"))

	var got sample
	hit, err := m.GetOrCompute(context.Background(), "key", time.Minute, &got, func(context.Context) (interface{}, error) {
		return value, nil
	})

	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "fresh", got.DriverID)
}

func TestManager_GetOrCompute_ComputeError(t *testing.T) {
	m, mock := newTestManager(t)
	mock.ExpectGet("key").RedisNil()
	boom := errors.New("feed unavailable")

	var got sample
	_, err := m.GetOrCompute(context.Background(), "key", time.Minute, &got, func(context.Context) (interface{}, error) {
		return nil, boom
	})

	assert.ErrorIs(t, err, boom)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "performance:report:d1:abcdef0123456789:v3", Keys.Report("d1", "abcdef0123456789", 3))
	assert.Equal(t, "performance:feed_version:d1", Keys.FeedVersion("d1"))

	h := Hash("2024-03-05", "2024-03-06", "UTC")
	assert.Len(t, h, 16)
	assert.Equal(t, h, Hash("2024-03-05", "2024-03-06", "UTC"))
	assert.NotEqual(t, h, Hash("2024-03-05", "2024-03-06UTC"))
}

func TestManager_RetryingStore(t *testing.T) {
	db, mock := redismock.NewClientMock()
	m := NewManager(redisclient.WithRetry(redisclient.Wrap(db)))
	payload, err := Encode(sample{DriverID: "d1"})
	require.NoError(t, err)

	mock.ExpectGet("missing").RedisNil()
	mock.ExpectGet("key").SetErr(errors.New("dial tcp: connection refused"))
	mock.ExpectGet("key").SetVal(string(payload))

	var got sample
	assert.ErrorIs(t, m.Get(context.Background(), "missing", &got), ErrMiss)
	require.NoError(t, m.Get(context.Background(), "key", &got))
	assert.Equal(t, "d1", got.DriverID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
