package metrics

import (
	"testing"

	"github.com/alitto/pond/v2"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB opens an in-memory database so the sqlstats collector has a
// pool to observe without needing Postgres.
func setupTestDB(t *testing.T) *sqlx.DB {
	db, err := sqlx.Connect("sqlite3", ":memory:")
	require.NoError(t, err)
	return db
}

func gatherNames(t *testing.T, ms MetricsService) map[string]int {
	t.Helper()

	metricFamilies, err := ms.GetRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]int, len(metricFamilies))
	for _, mf := range metricFamilies {
		names[mf.GetName()] = len(mf.GetMetric())
	}
	return names
}

func TestNewMetricsService(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ms := NewMetricsService(db)
	assert.NotNil(t, ms)
	assert.NotNil(t, ms.GetRegistry())
}

func TestHTTPAndDBMetrics(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ms := NewMetricsService(db)

	t.Run("http_request_metrics", func(t *testing.T) {
		ms.IncNumRequests("/accounts/{accountID}/emails/query", "POST", 200)
		ms.ObserveRequestDuration("/accounts/{accountID}/emails/query", "POST", 0.05)

		names := gatherNames(t, ms)
		assert.Equal(t, 1, names["http_requests_total"])
		assert.Equal(t, 1, names["http_request_duration_seconds"])
	})

	t.Run("db_query_metrics", func(t *testing.T) {
		ms.IncDBQuery("QueryIDs", "emails")
		ms.ObserveDBQueryDuration("QueryIDs", "emails", 0.01)
		ms.IncDBQueryError("QueryIDs", "emails", "deadlock")

		names := gatherNames(t, ms)
		assert.Equal(t, 1, names["db_queries_total"])
		assert.Equal(t, 1, names["db_query_duration_seconds"])
		assert.Equal(t, 1, names["db_query_errors_total"])
	})
}

func TestMethodMetrics(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ms := NewMetricsService(db)

	ms.IncMethodCall("Email", "changes")
	ms.IncMethodCall("Email", "query")
	ms.IncMethodError("Email", "query", "anchorNotFound")
	ms.ObserveMethodDuration("Email", "changes", 0.02)

	names := gatherNames(t, ms)
	assert.Equal(t, 2, names["sync_method_calls_total"])
	assert.Equal(t, 1, names["sync_method_errors_total"])
	assert.Equal(t, 1, names["sync_method_duration_seconds"])
}

func TestPurgeMetrics(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ms := NewMetricsService(db)

	ms.IncQueryStatesPurged(3)
	ms.IncQueryStatesPurged(2)
	ms.IncQueryStatePurgeFailure()

	names := gatherNames(t, ms)
	assert.Equal(t, 1, names["query_states_purged_total"])
	assert.Equal(t, 1, names["query_state_purge_errors_total"])
}

func TestRegisterPoolMetrics(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ms := NewMetricsService(db)

	pool := pond.NewPool(1)
	defer pool.StopAndWait()
	ms.RegisterPoolMetrics("purge", pool)

	names := gatherNames(t, ms)
	assert.Contains(t, names, "pool_workers_running")
	assert.Contains(t, names, "pool_tasks_submitted_total")
	assert.Contains(t, names, "pool_tasks_failed_total")
}
