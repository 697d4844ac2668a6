package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/richxcame/fleet-performance/pkg/resilience"
)

// Querier is satisfied by *sql.DB and *sql.Tx
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// ReadRetryConfig returns the retry policy for read-only feed queries
func ReadRetryConfig() resilience.RetryConfig {
	config := resilience.DefaultRetryConfig()
	config.MaxAttempts = 3
	config.InitialBackoff = 100 * time.Millisecond
	config.MaxBackoff = 2 * time.Second
	config.RetryableChecker = isPostgresRetryable
	return config
}

// RetryableQuery executes a read query with retry logic for transient failures.
// scan consumes the rows; rows are closed afterwards.
func RetryableQuery[T any](ctx context.Context, db Querier, operationName, query string, args []interface{}, scan func(*sql.Rows) (T, error)) (T, error) {
	return resilience.Do(ctx, ReadRetryConfig(), operationName, func(ctx context.Context) (T, error) {
		var zero T
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return zero, err
		}
		defer rows.Close()

		result, err := scan(rows)
		if err != nil {
			return zero, err
		}
		if err := rows.Err(); err != nil {
			return zero, err
		}
		return result, nil
	})
}

// sqlState extracts a SQLSTATE code from pgx or lib/pq errors
func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// isPostgresRetryable determines if a PostgreSQL error should be retried
func isPostgresRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrNoRows) {
		return false
	}

	if code := sqlState(err); code != "" {
		switch code {
		case "40001", "40P01", "55P03": // serialization, deadlock, lock not available
			return true
		case "53000", "53300", "53400": // resource and connection limits
			return true
		case "08000", "08003", "08006", "57P01", "57P02", "57P03": // connection lost or server restarting
			return true
		case "58000", "XX000":
			return true
		case "57014": // query_canceled by statement_timeout
			return false
		default:
			return false
		}
	}

	errMsg := strings.ToLower(err.Error())
	retryableMessages := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"network is unreachable",
		"temporary failure",
		"timeout",
		"too many connections",
		"server closed",
		"unexpected eof",
	}

	for _, msg := range retryableMessages {
		if strings.Contains(errMsg, msg) {
			return true
		}
	}

	return false
}
