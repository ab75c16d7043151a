// Package ringbuf provides a fixed-size lookback window. Pushing into a full
// window overwrites the oldest element, so memory stays bounded regardless
// of how many bars are replayed.
package ringbuf

// Window holds the most recent Cap() values pushed.
// Size is rounded up to a power of two internally for bitwise modulo,
// but Len never exceeds the requested size.
type Window[T any] struct {
	buf  []T
	mask uint64
	size int

	head uint64 // next write position
	n    int
}

// New creates a window holding at most size values. Minimum size is 1.
func New[T any](size int) *Window[T] {
	if size < 1 {
		size = 1
	}
	c := nextPow2(size)
	return &Window[T]{
		buf:  make([]T, c),
		mask: uint64(c - 1),
		size: size,
	}
}

// Push appends v, evicting the oldest value when the window is full.
func (w *Window[T]) Push(v T) {
	w.buf[w.head&w.mask] = v
	w.head++
	if w.n < w.size {
		w.n++
	}
}

// Len returns the current number of values.
func (w *Window[T]) Len() int { return w.n }

// Cap returns the window size.
func (w *Window[T]) Cap() int { return w.size }

// Full reports whether Len == Cap.
func (w *Window[T]) Full() bool { return w.n == w.size }

// At returns the i-th value, 0 being the oldest.
func (w *Window[T]) At(i int) T {
	start := w.head - uint64(w.n)
	return w.buf[(start+uint64(i))&w.mask]
}

// Last returns the most recent value and false if the window is empty.
func (w *Window[T]) Last() (T, bool) {
	var zero T
	if w.n == 0 {
		return zero, false
	}
	return w.At(w.n - 1), true
}

// Slice copies the window oldest first.
func (w *Window[T]) Slice() []T {
	out := make([]T, w.n)
	for i := range out {
		out[i] = w.At(i)
	}
	return out
}

// Reset empties the window.
func (w *Window[T]) Reset() {
	var zero T
	for i := range w.buf {
		w.buf[i] = zero
	}
	w.head = 0
	w.n = 0
}

// nextPow2 returns the smallest power of 2 >= n.
func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
