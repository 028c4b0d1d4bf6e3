package metrics

import (
	"github.com/alitto/pond/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
)

// MockMetricsService is a mock implementation of MetricsService.
type MockMetricsService struct {
	mock.Mock
}

var _ MetricsService = (*MockMetricsService)(nil)

func NewMockMetricsService() *MockMetricsService {
	return &MockMetricsService{}
}

func (m *MockMetricsService) GetRegistry() *prometheus.Registry {
	args := m.Called()
	return args.Get(0).(*prometheus.Registry)
}

func (m *MockMetricsService) RegisterPoolMetrics(name string, pool pond.Pool) {
	m.Called(name, pool)
}

func (m *MockMetricsService) IncNumRequests(endpoint, method string, statusCode int) {
	m.Called(endpoint, method, statusCode)
}

func (m *MockMetricsService) ObserveRequestDuration(endpoint, method string, duration float64) {
	m.Called(endpoint, method, duration)
}

func (m *MockMetricsService) ObserveDBQueryDuration(queryType, table string, duration float64) {
	m.Called(queryType, table, duration)
}

func (m *MockMetricsService) IncDBQuery(queryType, table string) {
	m.Called(queryType, table)
}

func (m *MockMetricsService) IncDBQueryError(queryType, table, errorType string) {
	m.Called(queryType, table, errorType)
}

func (m *MockMetricsService) IncMethodCall(collection, method string) {
	m.Called(collection, method)
}

func (m *MockMetricsService) IncMethodError(collection, method, errorType string) {
	m.Called(collection, method, errorType)
}

func (m *MockMetricsService) ObserveMethodDuration(collection, method string, duration float64) {
	m.Called(collection, method, duration)
}

func (m *MockMetricsService) IncQueryStatesPurged(count int) {
	m.Called(count)
}

func (m *MockMetricsService) IncQueryStatePurgeFailure() {
	m.Called()
}
