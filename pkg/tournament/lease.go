package tournament

import "go.uber.org/atomic"

// Lease[T] is a release-on-drop handle to a pooled resource (a CPU set, an engine-handle
// pair). Callers acquire it from a pool and must call Release exactly once, typically in
// a defer immediately after a successful acquire; Release is idempotent so a defer can
// coexist safely with an earlier explicit call on an error path.
type Lease[T any] struct {
	value    T
	release  func(T)
	released atomic.Bool
}

// NewLease wraps value with release, called the first time Release is invoked.
func NewLease[T any](value T, release func(T)) *Lease[T] {
	return &Lease[T]{value: value, release: release}
}

// V returns the leased value.
func (l *Lease[T]) V() T {
	return l.value
}

// Release returns the value to its pool. Calling it more than once is a no-op.
func (l *Lease[T]) Release() {
	if l.released.CAS(false, true) {
		l.release(l.value)
	}
}
