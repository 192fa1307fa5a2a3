// Package state provides versioned shared state storage.
//
// A Store maps integer versions (event sequence numbers) to immutable state
// snapshots. Versions only move forward: once a version holds an entry, no
// entry can be created at or below it. A pending entry may be promoted to a
// set entry exactly once, at its own version.
//
// Queries resolve to the entry at the greatest stored version not above the
// requested one. A query older than every stored version resolves to the
// earliest entry, which is treated as the best available answer.
package state

import (
	"sort"
	"sync"
)

// Kind selects one of the two independent shared state namespaces.
type Kind int

const (
	// KindStandard is the regular shared state namespace.
	KindStandard Kind = iota
	// KindXDM is the XDM shared state namespace.
	KindXDM
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindStandard:
		return "standard"
	case KindXDM:
		return "xdm"
	default:
		return "unknown"
	}
}

// Status is the resolution status of a shared state entry.
type Status int

const (
	// StatusNone means no state was found.
	StatusNone Status = iota
	// StatusSet means the state holds a final value.
	StatusSet
	// StatusPending means the owner promised a value that is not known yet.
	StatusPending
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusSet:
		return "set"
	case StatusPending:
		return "pending"
	default:
		return "unknown"
	}
}

// Entry is a resolved state snapshot. Value is a private copy owned by the
// caller; it is nil for pending and none results.
type Entry struct {
	Status Status
	Value  map[string]any
}

// DefaultCacheSize is the default number of recently resolved queries kept.
const DefaultCacheSize = 8

// Store is a versioned state store for one (component, kind) pair.
// It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	versions []int64 // ascending
	entries  map[int64]Entry

	cache *lookaside
}

// NewStore creates an empty store with the default lookaside cache size.
func NewStore() *Store {
	return NewStoreWithCache(DefaultCacheSize)
}

// NewStoreWithCache creates an empty store remembering up to size resolved
// queries. A size of zero disables the cache.
func NewStoreWithCache(size int) *Store {
	return &Store{
		entries: make(map[int64]Entry),
		cache:   newLookaside(size),
	}
}

// Set stores data at version. It fails if version is not strictly greater
// than every stored version. Unsupported values in data are dropped.
func (s *Store) Set(version int64, data map[string]any) bool {
	return s.add(version, Entry{Status: StatusSet, Value: Sanitize(data)})
}

// SetPending stores a pending entry at version under the same precondition
// as Set.
func (s *Store) SetPending(version int64) bool {
	return s.add(version, Entry{Status: StatusPending})
}

func (s *Store) add(version int64, entry Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.versions); n > 0 && version <= s.versions[n-1] {
		return false
	}
	s.versions = append(s.versions, version)
	s.entries[version] = entry
	s.cache.reset()
	return true
}

// UpdatePending promotes the pending entry at exactly version to a set entry
// holding data. It fails if there is no entry at version or the entry is
// already set.
func (s *Store) UpdatePending(version int64, data map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[version]
	if !ok || entry.Status != StatusPending {
		return false
	}
	s.entries[version] = Entry{Status: StatusSet, Value: Sanitize(data)}
	s.cache.reset()
	return true
}

// Resolve returns the entry at the greatest stored version not above
// version, falling back to the earliest entry. Pending entries are returned
// as pending.
func (s *Store) Resolve(version int64) Entry {
	return s.resolve(version, false)
}

// ResolveLastSet is Resolve restricted to set entries. Pending entries are
// invisible to it; if no set entry exists the result is StatusNone.
func (s *Store) ResolveLastSet(version int64) Entry {
	return s.resolve(version, true)
}

func (s *Store) resolve(version int64, lastSet bool) Entry {
	key := cacheKey{version: version, lastSet: lastSet}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if entry, ok := s.cache.get(key); ok {
		return entry.clone()
	}

	var entry Entry
	if lastSet {
		entry = s.floorSet(version)
	} else {
		entry = s.floor(version)
	}
	s.cache.put(key, entry)
	return entry.clone()
}

// floor must be called with s.mu held.
func (s *Store) floor(version int64) Entry {
	if len(s.versions) == 0 {
		return Entry{Status: StatusNone}
	}
	i := s.floorIndex(version)
	if i < 0 {
		return s.entries[s.versions[0]]
	}
	return s.entries[s.versions[i]]
}

// floorSet must be called with s.mu held.
func (s *Store) floorSet(version int64) Entry {
	for i := s.floorIndex(version); i >= 0; i-- {
		if e := s.entries[s.versions[i]]; e.Status == StatusSet {
			return e
		}
	}
	for _, v := range s.versions {
		if e := s.entries[v]; e.Status == StatusSet {
			return e
		}
	}
	return Entry{Status: StatusNone}
}

// floorIndex returns the index of the greatest version <= version, or -1.
func (s *Store) floorIndex(version int64) int {
	return sort.Search(len(s.versions), func(i int) bool {
		return s.versions[i] > version
	}) - 1
}

// Clear drops every entry. Subsequent queries return StatusNone until new
// entries are added, and any version may be used again.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.versions = nil
	s.entries = make(map[int64]Entry)
	s.cache.reset()
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.versions)
}

// LatestVersion returns the greatest stored version and whether one exists.
func (s *Store) LatestVersion() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.versions) == 0 {
		return 0, false
	}
	return s.versions[len(s.versions)-1], true
}

func (e Entry) clone() Entry {
	return Entry{Status: e.Status, Value: Sanitize(e.Value)}
}
