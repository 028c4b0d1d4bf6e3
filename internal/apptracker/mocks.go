package apptracker

import (
	"github.com/stretchr/testify/mock"
)

type MockAppTracker struct {
	mock.Mock
}

var _ AppTracker = (*MockAppTracker)(nil)

func (m *MockAppTracker) CaptureMessage(message string) {
	m.Called(message)
}

func (m *MockAppTracker) CaptureException(exception error) {
	m.Called(exception)
}
