package workflow

import "squish/internal/queue"

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running    bool
	LastError  string
	LastRecord *queue.Snapshot
	Counts     map[queue.Status]int
}

// Status returns the latest workflow information.
func (m *Manager) Status() StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastRecord := m.lastRecord
	m.mu.RUnlock()

	summary := StatusSummary{Running: running, Counts: m.store.Counts()}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastRecord != nil {
		copy := *lastRecord
		summary.LastRecord = &copy
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastRecord(snapshot queue.Snapshot) {
	m.mu.Lock()
	m.lastRecord = &snapshot
	m.mu.Unlock()
}
