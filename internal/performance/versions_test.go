package performance

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	redisclient "github.com/richxcame/fleet-performance/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVersions(t *testing.T) (*FeedVersions, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	return NewFeedVersions(redisclient.Wrap(db)), mock
}

func TestFeedVersions_CurrentDefaultsToZero(t *testing.T) {
	v, mock := newTestVersions(t)
	mock.ExpectGet("performance:feed_version:driver-1").RedisNil()

	version, err := v.Current(context.Background(), "driver-1")

	require.NoError(t, err)
	assert.Equal(t, int64(0), version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeedVersions_Current(t *testing.T) {
	v, mock := newTestVersions(t)
	mock.ExpectGet("performance:feed_version:driver-1").SetVal("7")

	version, err := v.Current(context.Background(), "driver-1")

	require.NoError(t, err)
	assert.Equal(t, int64(7), version)
}

func TestFeedVersions_Bump(t *testing.T) {
	v, mock := newTestVersions(t)
	mock.ExpectIncr("performance:feed_version:driver-1").SetVal(8)

	version, err := v.Bump(context.Background(), "driver-1")

	require.NoError(t, err)
	assert.Equal(t, int64(8), version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeedVersions_BumpFailure(t *testing.T) {
	v, mock := newTestVersions(t)
	mock.ExpectIncr("performance:feed_version:driver-1").SetErr(errors.New("WRONGTYPE Operation against a key"))

	_, err := v.Bump(context.Background(), "driver-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bump feed version")
}

func TestFeedVersions_RetriesTransientFailures(t *testing.T) {
	db, mock := redismock.NewClientMock()
	v := NewFeedVersions(redisclient.WithRetry(redisclient.Wrap(db)))
	mock.ExpectIncr("performance:feed_version:driver-1").SetErr(errors.New("dial tcp: connection refused"))
	mock.ExpectIncr("performance:feed_version:driver-1").SetVal(9)

	version, err := v.Bump(context.Background(), "driver-1")

	require.NoError(t, err)
	assert.Equal(t, int64(9), version)
	assert.NoError(t, mock.ExpectationsWereMet())
}
