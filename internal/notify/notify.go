// Package notify provides a small typed observer registry.
//
// Every event source in Cue Logic (container structure changes, parameter
// values, manager add/remove, action events) owns one List per event kind.
// Subscribing returns an unsubscribe func, so callers never need to compare
// func values.
//
// Thread Safety: List is safe for concurrent use. Emit snapshots the current
// subscribers and invokes them without holding the lock, so a subscriber may
// subscribe, unsubscribe or emit again from inside its callback.
package notify

import "sync"

// List is an ordered set of callbacks receiving values of type T.
// The zero value is ready to use.
type List[T any] struct {
	mu      sync.Mutex
	nextID  uint64
	entries []entry[T]
}

type entry[T any] struct {
	id uint64
	fn func(T)
}

// Add registers fn and returns a func that removes it again.
// Calling the returned func more than once is harmless.
func (l *List[T]) Add(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}

	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.entries = append(l.entries, entry[T]{id: id, fn: fn})
	l.mu.Unlock()

	return func() { l.remove(id) }
}

func (l *List[T]) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if e.id == id {
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			return
		}
	}
}

// Emit calls every registered callback in registration order.
func (l *List[T]) Emit(v T) {
	l.mu.Lock()
	fns := make([]func(T), len(l.entries))
	for i, e := range l.entries {
		fns[i] = e.fn
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len returns the number of registered callbacks.
func (l *List[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Reset drops every registered callback.
func (l *List[T]) Reset() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}
