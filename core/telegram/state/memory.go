package state

import "sync"

type memoryManager struct {
	mu       sync.RWMutex
	sessions map[Key]*Session
}

// NewMemoryManager constructs the in-memory Manager. Sessions vanish on restart.
func NewMemoryManager() Manager {
	return &memoryManager{
		sessions: make(map[Key]*Session),
	}
}

// Get returns the session for a key if it exists, otherwise returns a default idle session.
func (m *memoryManager) Get(key Key) Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if session, ok := m.sessions[key]; ok {
		return session.clone()
	}
	return Session{State: StateIdle}
}

// Update applies fn to the stored session and returns a copy of the result.
func (m *memoryManager) Update(key Key, fn func(s *Session)) Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := Session{State: StateIdle}
	if session, ok := m.sessions[key]; ok {
		current = session.clone()
	}
	fn(&current)
	if current.State == "" {
		current.State = StateIdle
	}

	if current.State == StateIdle && len(current.Fields) == 0 {
		delete(m.sessions, key)
	} else {
		stored := current.clone()
		m.sessions[key] = &stored
	}
	return current
}

// Clear removes the entire session for a key.
func (m *memoryManager) Clear(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
}

// InProgress reports whether the key currently has an active FSM state.
func (m *memoryManager) InProgress(key Key) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[key]
	return ok && sess.State != StateIdle
}

// Len returns the number of live sessions.
func (m *memoryManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
