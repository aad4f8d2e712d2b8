package deliver

import (
	"context"
	"sync"
)

// MockSink records every delivery for assertions.
type MockSink struct {
	mu    sync.Mutex
	calls []string
	// Err, when set, is returned by Replace.
	Err error
}

func (m *MockSink) Replace(_ context.Context, _, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.calls = append(m.calls, text)
	return nil
}

// Calls returns the delivered texts in order.
func (m *MockSink) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}
