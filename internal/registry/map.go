package registry

import (
	"cmp"
	"slices"
	"sync"
)

// Map is a generic thread-safe map.
//
// Unlike a cache it never evicts: an entry lives until Delete or
// LoadAndDelete removes it.
type Map[K cmp.Ordered, V any] struct {
	mu      sync.Mutex
	entries map[K]V
}

// New creates an empty map.
func New[K cmp.Ordered, V any]() *Map[K, V] {
	return &Map[K, V]{
		entries: make(map[K]V),
	}
}

// Load retrieves a value.
// Returns (value, true) if found, (zero, false) otherwise.
func (m *Map[K, V]) Load(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.entries[key]
	return v, ok
}

// Store inserts or replaces the value for key.
func (m *Map[K, V]) Store(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = value
}

// LoadAndDelete removes the entry for key and returns its previous value.
func (m *Map[K, V]) LoadAndDelete(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.entries[key]
	if ok {
		delete(m.entries, key)
	}
	return v, ok
}

// Delete removes an entry.
// Returns true if the entry was found and removed.
func (m *Map[K, V]) Delete(key K) bool {
	_, ok := m.LoadAndDelete(key)
	return ok
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries)
}

// Keys returns a sorted snapshot of the keys.
func (m *Map[K, V]) Keys() []K {
	m.mu.Lock()
	keys := make([]K, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	m.mu.Unlock()

	slices.Sort(keys)
	return keys
}

// Range calls f for each entry in key order until f returns false.
// f runs on a snapshot without the lock held, so it may call back into m.
func (m *Map[K, V]) Range(f func(key K, value V) bool) {
	for _, k := range m.Keys() {
		v, ok := m.Load(k)
		if !ok {
			continue
		}
		if !f(k, v) {
			return
		}
	}
}
