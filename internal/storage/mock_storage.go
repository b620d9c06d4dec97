package storage

import (
	"fmt"
	"sync"
)

// MockStore is an in-memory Store for tests.
type MockStore struct {
	mu   sync.RWMutex
	runs []RunRecord

	// SaveErr, when set, is returned by SaveRun to simulate failures.
	SaveErr error
}

// NewMockStore returns an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{}
}

// SaveRun appends the record in memory.
func (m *MockStore) SaveRun(record RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.runs = append(m.runs, record)
	return nil
}

// GetRuns returns a copy of the stored records.
func (m *MockStore) GetRuns() []RunRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RunRecord, len(m.runs))
	copy(out, m.runs)
	return out
}

// GetRun looks a record up by id.
func (m *MockStore) GetRun(id string) (RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, run := range m.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return RunRecord{}, fmt.Errorf("run %q: %w", id, ErrRunNotFound)
}

var _ Store = (*MockStore)(nil)
