package registry

import (
	"sort"
	"strings"
	"sync"
)

type entry[V any] struct {
	name  string // spelling used at registration
	value V
}

// Registry maps case-insensitive names to values.
// It uses sync.RWMutex for read-heavy workloads.
type Registry[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
}

// New creates an empty registry.
func New[V any]() *Registry[V] {
	return &Registry[V]{
		entries: make(map[string]entry[V]),
	}
}

// Key normalizes a name for comparison.
func Key(name string) string {
	return strings.ToLower(name)
}

// Add inserts value under name unless an entry with the same name, ignoring
// case, already exists. It reports whether the value was inserted.
func (r *Registry[V]) Add(name string, value V) bool {
	k := Key(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[k]; exists {
		return false
	}
	r.entries[k] = entry[V]{name: name, value: value}
	return true
}

// Get returns the value registered under name.
func (r *Registry[V]) Get(name string) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[Key(name)]
	return e.value, ok
}

// Has reports whether name is registered.
func (r *Registry[V]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[Key(name)]
	return ok
}

// Remove deletes name and returns the value it held.
func (r *Registry[V]) Remove(name string) (V, bool) {
	k := Key(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[k]
	if ok {
		delete(r.entries, k)
	}
	return e.value, ok
}

// Names returns the registered names in their original spelling, sorted
// case-insensitively.
func (r *Registry[V]) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.name)
	}
	r.mu.RUnlock()

	sort.Slice(names, func(i, j int) bool {
		return Key(names[i]) < Key(names[j])
	})
	return names
}

// Values returns a snapshot of all values ordered like Names.
func (r *Registry[V]) Values() []V {
	var values []V
	r.Range(func(_ string, v V) bool {
		values = append(values, v)
		return true
	})
	return values
}

// Len returns the number of entries.
func (r *Registry[V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Range calls fn for each entry in Names order until fn returns false.
// It iterates over a snapshot taken under the read lock.
func (r *Registry[V]) Range(fn func(name string, value V) bool) {
	r.mu.RLock()
	snapshot := make([]entry[V], 0, len(r.entries))
	for _, e := range r.entries {
		snapshot = append(snapshot, e)
	}
	r.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool {
		return Key(snapshot[i].name) < Key(snapshot[j].name)
	})
	for _, e := range snapshot {
		if !fn(e.name, e.value) {
			return
		}
	}
}
