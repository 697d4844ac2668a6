package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPostgresRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"no rows", sql.ErrNoRows, false},
		{"cancelled", context.Canceled, false},
		{"pgx serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"pgx syntax error", &pgconn.PgError{Code: "42601"}, false},
		{"pq admin shutdown", &pq.Error{Code: "57P01"}, true},
		{"pq statement timeout", &pq.Error{Code: "57014"}, false},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"unexpected eof", errors.New("unexpected EOF"), true},
		{"unknown", errors.New("something odd"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isPostgresRetryable(tt.err))
		})
	}
}

func TestRetryableQueryRetriesTransientErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT count").WillReturnError(&pq.Error{Code: "40001"})
	mock.ExpectQuery("SELECT count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	n, err := RetryableQuery(context.Background(), db, "test.count", "SELECT count(*) FROM driver_orders", nil, func(rows *sql.Rows) (int, error) {
		var n int
		for rows.Next() {
			if err := rows.Scan(&n); err != nil {
				return 0, err
			}
		}
		return n, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryableQueryStopsOnPermanentErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT bogus").WillReturnError(&pq.Error{Code: "42703"})

	_, err = RetryableQuery(context.Background(), db, "test.bogus", "SELECT bogus", nil, func(rows *sql.Rows) (int, error) {
		return 0, nil
	})

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
