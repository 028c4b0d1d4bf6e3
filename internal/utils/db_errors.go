package utils

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// Postgres error classes surfaced as their own metric labels. Codes are
// from https://www.postgresql.org/docs/current/errcodes-appendix.html.
var pgErrorTypes = map[pq.ErrorCode]string{
	"23505": "unique_violation",
	"23503": "foreign_key_violation",
	"23502": "not_null_violation",
	"23514": "check_violation",
	"40001": "serialization_failure",
	"40P01": "deadlock",
	"57014": "query_canceled",
	"08000": "connection_error",
	"08003": "connection_error",
	"08006": "connection_error",
}

// GetDBErrorType buckets a database error for use as a metrics label.
func GetDBErrorType(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "no_rows"
	case errors.Is(err, sql.ErrConnDone):
		return "connection_closed"
	case errors.Is(err, sql.ErrTxDone):
		return "transaction_done"
	case errors.Is(err, context.Canceled):
		return "context_canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "context_deadline_exceeded"
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if errType, ok := pgErrorTypes[pqErr.Code]; ok {
			return errType
		}
		return "postgres_error"
	}

	return "unknown"
}

// IsRetryableDBError reports whether err is a transient serialization
// failure or deadlock that a fresh transaction may resolve.
func IsRetryableDBError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}
