package state

import (
	"sync"
)

// MockStore provides an in-memory store for testing.
type MockStore struct {
	mu      sync.RWMutex
	records []*Record
	err     error
}

// NewMockStore creates a mock history store.
func NewMockStore() *MockStore {
	return &MockStore{}
}

// FailWith makes Append return err. Nil restores normal behavior.
func (m *MockStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Append stores a copy of record.
func (m *MockStore) Append(record *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}

	copy := *record
	m.records = append(m.records, &copy)
	return nil
}

// List returns records newest first.
func (m *MockStore) List(limit int) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Record
	for i := len(m.records) - 1; i >= 0; i-- {
		if limit > 0 && len(result) == limit {
			break
		}
		copy := *m.records[i]
		result = append(result, &copy)
	}
	return result, nil
}

// Records returns all records in insertion order.
func (m *MockStore) Records() []*Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]*Record(nil), m.records...)
}

// Close releases resources.
func (m *MockStore) Close() error {
	return nil
}
