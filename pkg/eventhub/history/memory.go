package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
)

// MemoryRecorder is an in-memory recorder for testing.
// Data is lost when the process exits.
type MemoryRecorder struct {
	mu      sync.RWMutex
	entries []Entry
	closed  bool
}

// NewMemoryRecorder creates a new in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Record implements Recorder.
func (m *MemoryRecorder) Record(_ context.Context, e *event.Event) error {
	entry, ok := entryFor(e)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrRecorderClosed
	}
	if ok {
		m.entries = append(m.entries, entry)
	}
	return nil
}

// Count implements Recorder.
func (m *MemoryRecorder) Count(_ context.Context, hash uint64, from, to time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrRecorderClosed
	}

	n := 0
	for _, entry := range m.entries {
		if entry.Hash == hash && inWindow(entry.Timestamp, from, to) {
			n++
		}
	}
	return n, nil
}

// Summary returns record counts grouped by event type and source.
func (m *MemoryRecorder) Summary(_ context.Context) ([]TypeCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrRecorderClosed
	}

	type key struct{ eventType, source string }
	counts := make(map[key]int)
	for _, entry := range m.entries {
		counts[key{entry.Type, entry.Source}]++
	}

	out := make([]TypeCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, TypeCount{Type: k.eventType, Source: k.source, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Source < out[j].Source
	})
	return out, nil
}

// Prune removes records older than before and returns how many were removed.
func (m *MemoryRecorder) Prune(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrRecorderClosed
	}

	kept := m.entries[:0]
	var removed int64
	for _, entry := range m.entries {
		if entry.Timestamp.Before(before) {
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	m.entries = kept
	return removed, nil
}

// Len returns the number of stored records.
func (m *MemoryRecorder) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close implements Recorder.
func (m *MemoryRecorder) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.entries = nil
	return nil
}
