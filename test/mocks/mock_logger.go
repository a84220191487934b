package mocks

import (
	"sync"

	"github.com/kevin07696/subscription-billing/internal/domain/ports"
)

// MockLogger records every call per level
type MockLogger struct {
	mu         sync.Mutex
	InfoCalls  []LogCall
	ErrorCalls []LogCall
	WarnCalls  []LogCall
	DebugCalls []LogCall
}

var _ ports.Logger = (*MockLogger)(nil)

// LogCall is one captured log line
type LogCall struct {
	Message string
	Fields  []ports.Field
}

// Field returns the value logged under key, or nil
func (c LogCall) Field(key string) interface{} {
	for _, f := range c.Fields {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

func (m *MockLogger) record(calls *[]LogCall, msg string, fields []ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*calls = append(*calls, LogCall{Message: msg, Fields: fields})
}

func (m *MockLogger) Info(msg string, fields ...ports.Field)  { m.record(&m.InfoCalls, msg, fields) }
func (m *MockLogger) Error(msg string, fields ...ports.Field) { m.record(&m.ErrorCalls, msg, fields) }
func (m *MockLogger) Warn(msg string, fields ...ports.Field)  { m.record(&m.WarnCalls, msg, fields) }
func (m *MockLogger) Debug(msg string, fields ...ports.Field) { m.record(&m.DebugCalls, msg, fields) }
