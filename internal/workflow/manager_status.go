package workflow

// StatusSummary is a snapshot of scheduler state.
type StatusSummary struct {
	Running        bool
	Workers        int
	QueueDepth     int
	QueueCapacity  int
	Backpressure   string
	InFlight       []string
	Processed      int64
	Failed         int64
	LastError      string
	LastWorkflowID string
}

// Status returns the current scheduler snapshot.
func (m *Manager) Status() StatusSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := StatusSummary{
		Running:        m.running,
		Workers:        m.settings.Workers,
		QueueCapacity:  m.settings.QueueCapacity,
		Backpressure:   m.settings.Backpressure,
		InFlight:       make([]string, 0, len(m.active)),
		Processed:      m.processed,
		Failed:         m.failed,
		LastWorkflowID: m.lastID,
	}
	if m.queue != nil {
		summary.QueueDepth = len(m.queue)
	}
	for id := range m.active {
		summary.InFlight = append(summary.InFlight, id)
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
