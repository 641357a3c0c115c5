package notifier

import "sync"

// Locked is a write-once value. It starts with an initial value that the
// first Set replaces; every later Set is ignored.
type Locked[T any] struct {
	mu    sync.RWMutex
	value T
	set   bool
}

// NewLocked returns an unset Locked holding initial.
func NewLocked[T any](initial T) *Locked[T] {
	return &Locked[T]{value: initial}
}

// Set stores v if no value has been set yet and reports whether it did.
func (l *Locked[T]) Set(v T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.set {
		return false
	}
	l.value = v
	l.set = true
	return true
}

// Get returns the current value and whether it has been set.
func (l *Locked[T]) Get() (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.value, l.set
}

// Value returns the current value.
func (l *Locked[T]) Value() T {
	v, _ := l.Get()
	return v
}

// IsSet reports whether Set has succeeded.
func (l *Locked[T]) IsSet() bool {
	_, ok := l.Get()
	return ok
}
