package physics

import "sync"

// Future is a value that becomes available once. Callbacks registered
// before resolution run in registration order when it resolves; callbacks
// registered afterwards run immediately.
type Future[T any] struct {
	mu       sync.Mutex
	value    T
	resolved bool
	pending  []func(T)
	done     chan struct{}
}

// NewFuture creates an unresolved future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Then runs fn with the value, now or on resolution.
func (f *Future[T]) Then(fn func(T)) {
	f.mu.Lock()
	if !f.resolved {
		f.pending = append(f.pending, fn)
		f.mu.Unlock()
		return
	}
	v := f.value
	f.mu.Unlock()
	fn(v)
}

// Resolve sets the value and flushes pending callbacks. Only the first
// call has an effect; it reports whether this call resolved the future.
func (f *Future[T]) Resolve(v T) bool {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		return false
	}
	f.value = v
	f.resolved = true
	pending := f.pending
	f.pending = nil
	close(f.done)
	f.mu.Unlock()

	for _, fn := range pending {
		fn(v)
	}
	return true
}

// Value returns the value and whether the future has resolved.
func (f *Future[T]) Value() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.resolved
}

// Resolved reports whether Resolve has run.
func (f *Future[T]) Resolved() bool {
	_, ok := f.Value()
	return ok
}

// Done is closed on resolution.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Pending returns the number of queued callbacks.
func (f *Future[T]) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}
