// Package ring provides a fixed-capacity FIFO buffer. Once full, every push
// evicts the oldest element, so the length never exceeds the capacity chosen
// at construction and no reallocation happens after it.
//
// Ring is not safe for concurrent use; owners guard it with their own lock.
package ring

// Ring is a generic ring buffer holding at most Cap() elements.
type Ring[T any] struct {
	buf   []T
	head  int // index of the oldest element
	count int
}

// New creates a Ring with the given capacity. It panics if capacity < 1,
// because a zero-capacity window is a programming error.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		panic("ring: capacity must be positive")
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v at the tail. When the ring is full the head is evicted and
// returned with evicted=true.
func (r *Ring[T]) Push(v T) (old T, evicted bool) {
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = v
		r.count++
		return old, false
	}

	old = r.buf[r.head]
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	return old, true
}

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int { return r.count }

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Last returns the newest element.
func (r *Ring[T]) Last() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	return r.buf[(r.head+r.count-1)%len(r.buf)], true
}

// Snapshot returns a copy of the contents, oldest first. The copy shares no
// memory with the ring.
func (r *Ring[T]) Snapshot() []T {
	return r.Tail(r.count)
}

// Tail returns a copy of the newest n elements, oldest first. n is clamped
// to [0, Len()].
func (r *Ring[T]) Tail(n int) []T {
	if n > r.count {
		n = r.count
	}
	if n < 0 {
		n = 0
	}
	out := make([]T, n)
	start := r.head + r.count - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}
