// Package observer provides the ordered callback registry used for route
// lifecycle subscriptions, history listeners and router result observers.
package observer

import (
	"slices"
	"sync"
)

// Registry is an ordered callback registry. The zero value is ready to use.
// Callers invoke the Snapshot outside any lock of their own, so callbacks may
// subscribe or unsubscribe re-entrantly.
type Registry[F any] struct {
	mu     sync.Mutex
	nextID uint64
	fns    map[uint64]F
}

// Add registers fn and returns a function that removes it. The remover is
// idempotent.
func (l *Registry[F]) Add(fn F) func() {
	l.mu.Lock()
	if l.fns == nil {
		l.fns = make(map[uint64]F)
	}
	id := l.nextID
	l.nextID++
	l.fns[id] = fn
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.fns, id)
			l.mu.Unlock()
		})
	}
}

// Snapshot returns the current callbacks in registration order.
func (l *Registry[F]) Snapshot() []F {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]uint64, 0, len(l.fns))
	for id := range l.fns {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]F, len(ids))
	for i, id := range ids {
		out[i] = l.fns[id]
	}
	return out
}

// Len returns the number of registered callbacks.
func (l *Registry[F]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fns)
}
