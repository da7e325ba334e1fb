package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memEntry struct {
	data      []byte
	updatedAt time.Time
}

// Memory is an in-process store for tests and single-node development.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	now     func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memEntry),
		now:     time.Now,
	}
}

// SetClock replaces the time source used for write times.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// Touch overwrites the write time of an existing key.
func (m *Memory) Touch(key string, t time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return false
	}
	e.updatedAt = t
	m.entries[key] = e
	return true
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.data...), nil
}

func (m *Memory) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memEntry{
		data:      append([]byte(nil), data...),
		updatedAt: m.now(),
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) LastWriteTime(_ context.Context, key string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	return e.updatedAt, nil
}

func (m *Memory) Entry(_ context.Context, key string) ([]byte, time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, time.Time{}, ErrNotFound
	}
	return append([]byte(nil), e.data...), e.updatedAt, nil
}

func (m *Memory) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	seen := map[string]struct{}{}
	for k := range m.entries {
		seen[TopLevel(k)] = struct{}{}
	}
	m.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) DeleteRecursive(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if under(k, name) {
			delete(m.entries, k)
		}
	}
	return nil
}
