// Package metrics exposes the Prometheus instrumentation used across the
// service: HTTP request metrics, per-model database query metrics,
// synchronization method metrics and worker pool gauges.
package metrics

import (
	"strconv"

	"github.com/alitto/pond/v2"
	"github.com/dlmiddlecote/sqlstats"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
)

type MetricsService interface {
	GetRegistry() *prometheus.Registry
	RegisterPoolMetrics(name string, pool pond.Pool)

	IncNumRequests(endpoint, method string, statusCode int)
	ObserveRequestDuration(endpoint, method string, duration float64)

	ObserveDBQueryDuration(queryType, table string, duration float64)
	IncDBQuery(queryType, table string)
	IncDBQueryError(queryType, table, errorType string)

	IncMethodCall(collection, method string)
	IncMethodError(collection, method, errorType string)
	ObserveMethodDuration(collection, method string, duration float64)

	IncQueryStatesPurged(count int)
	IncQueryStatePurgeFailure()
}

type metricsService struct {
	registry *prometheus.Registry
	db       *sqlx.DB

	numRequestsTotal       *prometheus.CounterVec
	requestsDuration       *prometheus.SummaryVec
	dbQueryDuration        *prometheus.SummaryVec
	dbQueriesTotal         *prometheus.CounterVec
	dbQueryErrorsTotal     *prometheus.CounterVec
	methodCallsTotal       *prometheus.CounterVec
	methodErrorsTotal      *prometheus.CounterVec
	methodDuration         *prometheus.SummaryVec
	queryStatesPurgedTotal prometheus.Counter
	queryStatePurgeErrors  prometheus.Counter
}

func NewMetricsService(db *sqlx.DB) MetricsService {
	m := &metricsService{
		registry: prometheus.NewRegistry(),
		db:       db,
	}

	m.numRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "method", "status_code"},
	)
	m.requestsDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "http_request_duration_seconds",
			Help:       "Duration of HTTP requests",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"endpoint", "method"},
	)

	m.dbQueryDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "db_query_duration_seconds",
			Help:       "Duration of database queries",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"query_type", "table"},
	)
	m.dbQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"query_type", "table"},
	)
	m.dbQueryErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_query_errors_total",
			Help: "Total number of database query errors",
		},
		[]string{"query_type", "table", "error_type"},
	)

	m.methodCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_method_calls_total",
			Help: "Total number of synchronization method calls",
		},
		[]string{"collection", "method"},
	)
	m.methodErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_method_errors_total",
			Help: "Total number of modeled synchronization method errors",
		},
		[]string{"collection", "method", "error_type"},
	)
	m.methodDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "sync_method_duration_seconds",
			Help:       "Duration of synchronization method calls",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"collection", "method"},
	)

	m.queryStatesPurgedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "query_states_purged_total",
			Help: "Total number of stale query-state snapshots purged",
		},
	)
	m.queryStatePurgeErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "query_state_purge_errors_total",
			Help: "Total number of failed query-state purge runs",
		},
	)

	m.registerMetrics()
	return m
}

func (m *metricsService) registerMetrics() {
	collector := sqlstats.NewStatsCollector("mail-backend-db", m.db)
	m.registry.MustRegister(
		collector,
		m.numRequestsTotal,
		m.requestsDuration,
		m.dbQueryDuration,
		m.dbQueriesTotal,
		m.dbQueryErrorsTotal,
		m.methodCallsTotal,
		m.methodErrorsTotal,
		m.methodDuration,
		m.queryStatesPurgedTotal,
		m.queryStatePurgeErrors,
	)
}

func (m *metricsService) GetRegistry() *prometheus.Registry {
	return m.registry
}

func (m *metricsService) RegisterPoolMetrics(name string, pool pond.Pool) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name:        "pool_workers_running",
			Help:        "Number of running worker goroutines",
			ConstLabels: prometheus.Labels{"pool": name},
		},
		func() float64 {
			return float64(pool.RunningWorkers())
		},
	))
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name:        "pool_tasks_submitted_total",
			Help:        "Total number of tasks submitted to the pool",
			ConstLabels: prometheus.Labels{"pool": name},
		},
		func() float64 {
			return float64(pool.SubmittedTasks())
		},
	))
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name:        "pool_tasks_failed_total",
			Help:        "Total number of pool tasks that completed with an error",
			ConstLabels: prometheus.Labels{"pool": name},
		},
		func() float64 {
			return float64(pool.FailedTasks())
		},
	))
}

func (m *metricsService) IncNumRequests(endpoint, method string, statusCode int) {
	m.numRequestsTotal.WithLabelValues(endpoint, method, strconv.Itoa(statusCode)).Inc()
}

func (m *metricsService) ObserveRequestDuration(endpoint, method string, duration float64) {
	m.requestsDuration.WithLabelValues(endpoint, method).Observe(duration)
}

func (m *metricsService) ObserveDBQueryDuration(queryType, table string, duration float64) {
	m.dbQueryDuration.WithLabelValues(queryType, table).Observe(duration)
}

func (m *metricsService) IncDBQuery(queryType, table string) {
	m.dbQueriesTotal.WithLabelValues(queryType, table).Inc()
}

func (m *metricsService) IncDBQueryError(queryType, table, errorType string) {
	m.dbQueryErrorsTotal.WithLabelValues(queryType, table, errorType).Inc()
}

func (m *metricsService) IncMethodCall(collection, method string) {
	m.methodCallsTotal.WithLabelValues(collection, method).Inc()
}

func (m *metricsService) IncMethodError(collection, method, errorType string) {
	m.methodErrorsTotal.WithLabelValues(collection, method, errorType).Inc()
}

func (m *metricsService) ObserveMethodDuration(collection, method string, duration float64) {
	m.methodDuration.WithLabelValues(collection, method).Observe(duration)
}

func (m *metricsService) IncQueryStatesPurged(count int) {
	m.queryStatesPurgedTotal.Add(float64(count))
}

func (m *metricsService) IncQueryStatePurgeFailure() {
	m.queryStatePurgeErrors.Inc()
}
