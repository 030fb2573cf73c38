package flow

import (
	"context"
	"sync"
)

// Manager keys live flows by the message that hosts their controls.
type Manager struct {
	mu    sync.RWMutex
	flows map[string]*Flow
}

// NewManager creates an empty flow registry.
func NewManager() *Manager {
	return &Manager{flows: make(map[string]*Flow)}
}

// Bind registers a flow under its message ID, replacing any previous
// flow on the same message.
func (m *Manager) Bind(f *Flow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flows[f.MessageID] = f
}

// Get looks up the flow attached to a message.
func (m *Manager) Get(messageID string) (*Flow, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.flows[messageID]
	return f, ok
}

// Unbind removes a flow from the registry.
func (m *Manager) Unbind(messageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.flows, messageID)
}

// Count returns the number of registered flows.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.flows)
}

// PurgeExpired drops flows that reached a terminal state. The
// cleanup scheduler calls this periodically so abandoned messages do
// not pin flows forever.
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for id, f := range m.flows {
		if f.State().Terminal() {
			delete(m.flows, id)
			removed++
		}
	}
	return removed, nil
}
