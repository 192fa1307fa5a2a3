package datastore

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store. Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]map[string]string // namespace -> key -> value
	closed bool
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]map[string]string),
	}
}

// Namespace implements Store.
func (m *MemoryStore) Namespace(name string) Namespace {
	return &memoryNamespace{store: m, name: name}
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.data = nil
	return nil
}

type memoryNamespace struct {
	store *MemoryStore
	name  string
}

func (n *memoryNamespace) Name() string { return n.name }

func (n *memoryNamespace) Get(_ context.Context, key string) (string, error) {
	m := n.store
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return "", ErrStoreClosed
	}
	v, ok := m.data[n.name][key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (n *memoryNamespace) Set(_ context.Context, key, value string) error {
	m := n.store
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if m.data[n.name] == nil {
		m.data[n.name] = make(map[string]string)
	}
	m.data[n.name][key] = value
	return nil
}

func (n *memoryNamespace) Remove(_ context.Context, key string) error {
	m := n.store
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.data[n.name], key)
	return nil
}

func (n *memoryNamespace) Contains(_ context.Context, key string) (bool, error) {
	m := n.store
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, ErrStoreClosed
	}
	_, ok := m.data[n.name][key]
	return ok, nil
}

func (n *memoryNamespace) Keys(_ context.Context) ([]string, error) {
	m := n.store
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	keys := make([]string, 0, len(m.data[n.name]))
	for k := range m.data[n.name] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (n *memoryNamespace) RemoveAll(_ context.Context) error {
	m := n.store
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.data, n.name)
	return nil
}
