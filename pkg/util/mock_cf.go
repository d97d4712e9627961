package util

import (
	"sync"
	"time"

	"github.com/devlibx/gox-base/v2"
)

// MockCrossFunction provides a controllable, accelerated time service for
// testing code that waits on linger/backoff/retention durations without
// actually waiting that long. Time advances automatically between calls at
// `acceleration`x real time, and Sleep shrinks by the same factor.
type MockCrossFunction struct {
	gox.CrossFunction
	mockTime     time.Time
	startTime    time.Time
	acceleration int64
	mutex        sync.RWMutex
}

func NewMockCrossFunction(initialTime time.Time) *MockCrossFunction {
	return &MockCrossFunction{
		CrossFunction: gox.NewNoOpCrossFunction(),
		mockTime:      initialTime,
		startTime:     time.Now(),
		acceleration:  10,
	}
}

func (m *MockCrossFunction) Now() time.Time {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	elapsed := time.Since(m.startTime)
	return m.mockTime.Add(elapsed * time.Duration(m.acceleration))
}

func (m *MockCrossFunction) SetTime(t time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.mockTime = t
	m.startTime = time.Now()
}

func (m *MockCrossFunction) AdvanceTime(duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	elapsed := time.Since(m.startTime)
	m.mockTime = m.mockTime.Add(elapsed*time.Duration(m.acceleration) + duration)
	m.startTime = time.Now()
}

func (m *MockCrossFunction) Sleep(d time.Duration) {
	m.mutex.RLock()
	accel := m.acceleration
	m.mutex.RUnlock()
	time.Sleep(d / time.Duration(accel))
}
