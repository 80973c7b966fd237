package workflow

import "time"

func (m *Manager) count(fn func(*counters)) {
	m.mu.Lock()
	fn(&m.counters)
	m.mu.Unlock()
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

// Stats is a snapshot of manager state.
type Stats struct {
	Running    bool          `json:"running"`
	StartedAt  time.Time     `json:"started_at,omitempty"`
	Uptime     time.Duration `json:"uptime"`
	LastCycle  time.Time     `json:"last_cycle,omitempty"`
	QueueDepth int           `json:"queue_depth"`
	Processed  int64         `json:"processed"`
	Succeeded  int64         `json:"succeeded"`
	Failed     int64         `json:"failed"`
	Retried    int64         `json:"retried"`
	LockLost   int64         `json:"lock_lost"`
	LastError  string        `json:"last_error,omitempty"`
}

// Stats returns current counters.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := Stats{
		Running:    m.running,
		StartedAt:  m.startedAt,
		LastCycle:  m.lastCycle,
		QueueDepth: m.depth,
		Processed:  m.counters.processed,
		Succeeded:  m.counters.succeeded,
		Failed:     m.counters.failed,
		Retried:    m.counters.retried,
		LockLost:   m.counters.lockLost,
	}
	if m.running && !m.startedAt.IsZero() {
		stats.Uptime = m.now().Sub(m.startedAt)
	}
	if m.lastErr != nil {
		stats.LastError = m.lastErr.Error()
	}
	return stats
}
