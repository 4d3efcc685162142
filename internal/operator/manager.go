package operator

import (
	"sort"
	"sync"
	"time"
)

// DefaultMaxIdleSeconds is the long-idle alert threshold when none is
// configured, matching the original OperatorManager's default.
const DefaultMaxIdleSeconds = 300

// Manager is the process-wide Operator Manager: a single in-memory
// registry guarded by one mutex (spec §8: every mutator must run under
// a mutex or serialized actor; select_operator + start_call must be
// atomic with respect to concurrent select_operator calls).
type Manager struct {
	mu             sync.Mutex
	sessions       map[string]*Session
	maxIdleSeconds int
}

// NewManager constructs an empty registry.
func NewManager(maxIdleSeconds int) *Manager {
	if maxIdleSeconds <= 0 {
		maxIdleSeconds = DefaultMaxIdleSeconds
	}
	return &Manager{sessions: make(map[string]*Session), maxIdleSeconds: maxIdleSeconds}
}

func (m *Manager) AddOperator(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

func (m *Manager) RemoveOperator(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil
	}
	delete(m.sessions, id)
	return s
}

func (m *Manager) GetOperator(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

func (m *Manager) AllOperators() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

func (m *Manager) availableLocked() []*Session {
	var out []*Session
	for _, s := range m.sessions {
		if s.IsAvailable() {
			out = append(out, s)
		}
	}
	return out
}

func (m *Manager) AvailableCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.availableLocked())
}

func (m *Manager) countByStatus(status Status) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.status == status {
			n++
		}
	}
	return n
}

func (m *Manager) OnCallCount() int  { return m.countByStatus(StatusOnCall) }
func (m *Manager) OfflineCount() int { return m.countByStatus(StatusOffline) }
func (m *Manager) OnBreakCount() int { return m.countByStatus(StatusOnBreak) }

// SelectOperator returns the AVAILABLE operator idle the longest,
// ties broken deterministically by operator id, or nil if none is
// available. Callers that intend to assign a call must call
// AssignCall while still holding no external lock; SelectOperator and
// AssignCall are each internally atomic but the pair is only atomic
// against other SelectOperator/AssignCall calls if invoked back to
// back without yielding — use SelectAndAssign for the combined atomic
// operation required by spec §8.
func (m *Manager) SelectOperator() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectLocked()
}

func (m *Manager) selectLocked() *Session {
	available := m.availableLocked()
	if len(available) == 0 {
		return nil
	}
	sort.Slice(available, func(i, j int) bool {
		di, dj := available[i].IdleDuration(), available[j].IdleDuration()
		if di != dj {
			return di > dj
		}
		return available[i].ID < available[j].ID
	})
	return available[0]
}

// SelectAndAssign performs selection and assignment under a single
// lock acquisition so two concurrent calls can never be routed to the
// same operator (spec §8).
func (m *Manager) SelectAndAssign(callID, leadID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.selectLocked()
	if s == nil {
		return nil
	}
	if err := s.StartCall(callID, leadID); err != nil {
		return nil
	}
	return s
}

// AssignCall assigns a call to a specific operator id; succeeds iff
// that operator is AVAILABLE.
func (m *Manager) AssignCall(operatorID, callID, leadID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[operatorID]
	if !ok || !s.IsAvailable() {
		return false
	}
	return s.StartCall(callID, leadID) == nil
}

func (m *Manager) EndCall(operatorID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[operatorID]
	if !ok {
		return false
	}
	return s.EndCall() == nil
}

// GetLongIdleOperators returns AVAILABLE operators idle longer than
// the configured threshold.
func (m *Manager) GetLongIdleOperators() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	threshold := time.Duration(m.maxIdleSeconds) * time.Second
	var out []*Session
	for _, s := range m.sessions {
		if s.IsAvailable() && s.IdleDuration() > threshold {
			out = append(out, s)
		}
	}
	return out
}

// FindOperatorByCall returns the operator currently bound to callID,
// or nil.
func (m *Manager) FindOperatorByCall(callID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.currentCallID == callID {
			return s
		}
	}
	return nil
}

// Stats is the Operator Manager's aggregate view.
type Stats struct {
	Total       int
	Available   int
	OnCall      int
	OnBreak     int
	Offline     int
	Utilization float64
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := len(m.sessions)
	onCall := 0
	offline := 0
	onBreak := 0
	available := 0
	for _, s := range m.sessions {
		switch s.status {
		case StatusOnCall:
			onCall++
		case StatusOffline:
			offline++
		case StatusOnBreak:
			onBreak++
		case StatusAvailable:
			available++
		}
	}
	denom := total - offline
	if denom < 1 {
		denom = 1
	}
	return Stats{
		Total:       total,
		Available:   available,
		OnCall:      onCall,
		OnBreak:     onBreak,
		Offline:     offline,
		Utilization: float64(onCall) / float64(denom),
	}
}
