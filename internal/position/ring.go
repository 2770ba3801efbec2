package position

// Ring is a bounded FIFO. Once full, each Push drops the oldest value.
// Storage grows on demand up to the capacity, so large capacities cost
// nothing until they are used.
type Ring[T any] struct {
	buf   []T
	pos   int // Next write index once the buffer reached capacity
	count int
	cap   int
}

// NewRing creates a ring holding at most capacity values (minimum 1).
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{cap: capacity}
}

// Push adds a value, evicting the oldest one when full.
func (r *Ring[T]) Push(val T) {
	if len(r.buf) < r.cap {
		r.buf = append(r.buf, val)
		r.count++
		return
	}
	r.buf[r.pos] = val
	r.pos = (r.pos + 1) % r.cap
}

// Values returns all stored values in chronological order.
func (r *Ring[T]) Values() []T {
	if r.count == 0 {
		return nil
	}
	result := make([]T, r.count)
	n := copy(result, r.buf[r.pos:])
	copy(result[n:], r.buf[:r.pos])
	return result
}

// Each calls fn for every value, oldest first, without copying.
func (r *Ring[T]) Each(fn func(T)) {
	for i := 0; i < r.count; i++ {
		fn(r.buf[(r.pos+i)%len(r.buf)])
	}
}

// Last returns the most recent value.
func (r *Ring[T]) Last() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	idx := (r.pos - 1 + len(r.buf)) % len(r.buf)
	return r.buf[idx], true
}

// Len returns the number of stored values.
func (r *Ring[T]) Len() int {
	return r.count
}

// Cap returns the maximum number of values kept.
func (r *Ring[T]) Cap() int {
	return r.cap
}
