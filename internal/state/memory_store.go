package state

import (
	"context"
	"sync"
)

// MemoryCalls tracks method invocations for test verification.
type MemoryCalls struct {
	Load int
	Save int
}

// MemoryStore is an in-memory Store. It stores deep copies so callers cannot
// mutate persisted state by accident.
type MemoryStore struct {
	mu    sync.RWMutex
	state *ScheduleState
	calls MemoryCalls

	// SaveErr, when set, is returned by every Save.
	SaveErr error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context) (*ScheduleState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Load++
	if m.state == nil {
		return Default(), nil
	}
	return m.state.Clone(), nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, s *ScheduleState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Save++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if err := s.Validate(); err != nil {
		return err
	}
	m.state = s.Clone()
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }

// Calls returns a snapshot of the call counters.
func (m *MemoryStore) Calls() MemoryCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}
