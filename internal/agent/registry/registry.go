// Package registry tracks which users currently have a request in flight.
//
// A Registry holds at most one Handle per key. Acquire is an atomic
// check-and-set, so two near-simultaneous events for the same user cannot
// both start a pipeline. The mutex only guards the map and is never held
// while a pipeline runs.
package registry

import "sync"

// Handle is one in-flight processing session for a key.
type Handle[K comparable] struct {
	done chan struct{}
	once sync.Once
}

func newHandle[K comparable]() *Handle[K] {
	return &Handle[K]{done: make(chan struct{})}
}

// Done is closed once the handle has been released.
func (h *Handle[K]) Done() <-chan struct{} {
	return h.done
}

func (h *Handle[K]) finish() {
	h.once.Do(func() { close(h.done) })
}

// Registry maps keys to their active Handle.
type Registry[K comparable] struct {
	mu     sync.Mutex
	active map[K]*Handle[K]
}

func New[K comparable]() *Registry[K] {
	return &Registry[K]{active: make(map[K]*Handle[K])}
}

// Acquire creates and stores a handle for key when none exists and returns it
// with true. When key is already active it returns the existing handle and false.
// A successful Acquire must be paired with exactly one Release.
func (r *Registry[K]) Acquire(key K) (*Handle[K], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.active[key]; ok {
		return h, false
	}
	h := newHandle[K]()
	r.active[key] = h
	return h, true
}

// Release fires the completion signal of key's handle and removes it.
// It is a no-op when key is not active.
func (r *Registry[K]) Release(key K) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.active[key]
	if !ok {
		return
	}
	h.finish()
	delete(r.active, key)
}

// IsActive reports whether key has a handle.
func (r *Registry[K]) IsActive(key K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.active[key]
	return ok
}

// Len returns the number of active handles.
func (r *Registry[K]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.active)
}
