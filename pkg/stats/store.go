package stats

import (
	"context"
	"sync"
)

// Store is the hash-field counter store behind a Counter.
type Store interface {
	// HasField reports whether field is set in the hash at key.
	HasField(ctx context.Context, key, field string) (bool, error)

	// SetFields writes all fields of the hash at key in one call.
	SetFields(ctx context.Context, key string, fields map[string]int64) error

	// IncrField adds n to field of the hash at key.
	IncrField(ctx context.Context, key, field string, n int64) error

	// Fields returns every field of the hash at key. A missing key yields an
	// empty map.
	Fields(ctx context.Context, key string) (map[string]int64, error)

	// Delete removes the hash at key.
	Delete(ctx context.Context, key string) error
}

// Memory is an in-process Store.
type Memory struct {
	mu     sync.Mutex
	hashes map[string]map[string]int64
}

// NewMemory creates an empty in-memory counter store.
func NewMemory() *Memory {
	return &Memory{hashes: make(map[string]map[string]int64)}
}

func (m *Memory) HasField(_ context.Context, key, field string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.hashes[key][field]
	return ok, nil
}

func (m *Memory) SetFields(_ context.Context, key string, fields map[string]int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.hashes[key]
	if h == nil {
		h = make(map[string]int64, len(fields))
		m.hashes[key] = h
	}
	for f, v := range fields {
		h[f] = v
	}
	return nil
}

func (m *Memory) IncrField(_ context.Context, key, field string, n int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.hashes[key]
	if h == nil {
		h = make(map[string]int64)
		m.hashes[key] = h
	}
	h[field] += n
	return nil
}

func (m *Memory) Fields(_ context.Context, key string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.hashes[key]))
	for f, v := range m.hashes[key] {
		out[f] = v
	}
	return out, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.hashes, key)
	m.mu.Unlock()
	return nil
}
