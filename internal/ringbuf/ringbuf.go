// Package ringbuf provides a fixed-capacity FIFO window backed by a
// preallocated circular buffer. Pushing into a full window evicts the
// oldest element, so Len never exceeds Cap.
//
// A Window is not safe for concurrent use; the indicator engine owns its
// windows and drives them from a single goroutine.
package ringbuf

// Window is a bounded rolling window of the last N values.
type Window[T any] struct {
	buf   []T
	head  int // index of the oldest element
	count int

	evicted uint64
}

// New creates a window with the given capacity. Minimum capacity is 1.
func New[T any](capacity int) *Window[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Window[T]{buf: make([]T, capacity)}
}

// Push appends v. If the window is full the oldest value is evicted and
// returned with ok=true.
func (w *Window[T]) Push(v T) (old T, ok bool) {
	if w.count < len(w.buf) {
		w.buf[(w.head+w.count)%len(w.buf)] = v
		w.count++
		return old, false
	}
	old = w.buf[w.head]
	w.buf[w.head] = v
	w.head = (w.head + 1) % len(w.buf)
	w.evicted++
	return old, true
}

// At returns the i-th element, 0 being the oldest. Panics if out of range.
func (w *Window[T]) At(i int) T {
	if i < 0 || i >= w.count {
		panic("ringbuf: index out of range")
	}
	return w.buf[(w.head+i)%len(w.buf)]
}

// Last returns the newest element.
func (w *Window[T]) Last() (T, bool) {
	var zero T
	if w.count == 0 {
		return zero, false
	}
	return w.At(w.count - 1), true
}

// Slice copies the window contents, oldest first.
func (w *Window[T]) Slice() []T {
	out := make([]T, w.count)
	for i := range out {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}

// Len returns the number of values held.
func (w *Window[T]) Len() int { return w.count }

// Cap returns the window capacity.
func (w *Window[T]) Cap() int { return len(w.buf) }

// Full reports whether Len == Cap.
func (w *Window[T]) Full() bool { return w.count == len(w.buf) }

// Evicted returns the total number of values pushed out of the window.
func (w *Window[T]) Evicted() uint64 { return w.evicted }

// Reset empties the window without reallocating.
func (w *Window[T]) Reset() {
	var zero T
	for i := range w.buf {
		w.buf[i] = zero
	}
	w.head = 0
	w.count = 0
	w.evicted = 0
}
