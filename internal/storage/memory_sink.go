package storage

import (
	"context"
	"sync"
)

// MemorySink keeps artifacts in memory. Used by tests and dry runs.
type MemorySink struct {
	mu     sync.RWMutex
	files  map[string][]byte
	writes []string
	err    error
}

// NewMemorySink creates an empty memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		files: make(map[string][]byte),
	}
}

// FailWith makes every following Write return err. Nil restores writes.
func (m *MemorySink) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Write saves a copy of data.
func (m *MemorySink) Write(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.writes = append(m.writes, name)
	if m.err != nil {
		return "", m.err
	}

	m.files[name] = make([]byte, len(data))
	copy(m.files[name], data)
	return name, nil
}

// Read returns a copy of a stored artifact.
func (m *MemorySink) Read(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.files[name]
	if !ok {
		return nil, false
	}

	result := make([]byte, len(data))
	copy(result, data)
	return result, true
}

// Writes returns the names of all attempted writes, in order.
func (m *MemorySink) Writes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]string(nil), m.writes...)
}

// FileExists checks if an artifact was stored.
func (m *MemorySink) FileExists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.files[name]
	return exists
}

// Clear removes all artifacts and the write log.
func (m *MemorySink) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files = make(map[string][]byte)
	m.writes = nil
}
