// Package registry provides a generic, mutex-guarded keyed store.
//
// Map[K, V] is the building block for the readback engine's task tables:
// one instance per resource kind, each mapping a request handle to the
// shared task that tracks it.
//
//	m := registry.New[uint64, *task]()
//	m.Store(1, t)
//	t, ok := m.Load(1)
//
// # Thread Safety
//
// Map is safe for concurrent use. The lock is held only for the duration
// of a single map operation; callbacks passed to Range run without it.
// A Map must not be copied after creation (it contains a mutex).
package registry
