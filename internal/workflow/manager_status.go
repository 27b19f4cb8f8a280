package workflow

import (
	"slices"
	"strings"
	"time"
)

// TaskStatus reports the health of one loop.
type TaskStatus struct {
	Name                string
	Interval            time.Duration
	Runs                int
	Failures            int
	ConsecutiveFailures int
	LastRun             time.Time
	LastError           string
	NextRun             time.Time
}

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running bool
	Tasks   []TaskStatus
}

// Status returns the latest loop information ordered by name.
func (m *Manager) Status() StatusSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	summary := StatusSummary{Running: m.running}
	for _, st := range m.status {
		summary.Tasks = append(summary.Tasks, *st)
	}
	slices.SortFunc(summary.Tasks, func(a, b TaskStatus) int { return strings.Compare(a.Name, b.Name) })
	return summary
}

func (m *Manager) record(name string, started time.Time, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.status[name]
	if st == nil {
		return
	}
	st.Runs++
	st.LastRun = started
	if err != nil {
		st.Failures++
		st.ConsecutiveFailures++
		st.LastError = err.Error()
		return
	}
	st.ConsecutiveFailures = 0
	st.LastError = ""
}

func (m *Manager) setNextRun(name string, at time.Time) {
	m.mu.Lock()
	if st := m.status[name]; st != nil {
		st.NextRun = at
	}
	m.mu.Unlock()
}
