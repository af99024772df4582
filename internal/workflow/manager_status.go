package workflow

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running   bool
	Workers   int
	Busy      int
	Completed int64
	Failed    int64
	LastJobID int64
	LastError string
}

// Status returns the latest workflow information.
func (m *Manager) Status() StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:   m.running,
		Workers:   m.workers,
		LastJobID: m.lastJobID,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	m.mu.RUnlock()

	summary.Busy = int(m.busy.Load())
	summary.Completed = m.completed.Load()
	summary.Failed = m.failed.Load()
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(id int64) {
	m.mu.Lock()
	m.lastJobID = id
	m.mu.Unlock()
}
