// Package ring provides a fixed-capacity FIFO buffer for metric history.
package ring

// Buffer holds the most recent values appended to it, evicting the oldest
// once capacity is reached. The zero value is not usable; call New.
type Buffer[T any] struct {
	data     []T
	head     int
	size     int
	capacity int
}

// New creates a buffer that retains at most capacity values.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}

	return &Buffer[T]{
		data:     make([]T, capacity),
		capacity: capacity,
	}
}

// Append adds a value, evicting the oldest entry if the buffer is full.
func (b *Buffer[T]) Append(value T) {
	if b.size < b.capacity {
		b.data[(b.head+b.size)%b.capacity] = value
		b.size++
		return
	}

	b.data[b.head] = value
	b.head = (b.head + 1) % b.capacity
}

// Snapshot returns the buffered values oldest-first. The returned slice is a
// copy; mutating it does not affect the buffer.
func (b *Buffer[T]) Snapshot() []T {
	out := make([]T, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.data[(b.head+i)%b.capacity]
	}

	return out
}

// Latest returns the most recently appended value.
func (b *Buffer[T]) Latest() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}

	return b.data[(b.head+b.size-1)%b.capacity], true
}

// Len returns the number of buffered values.
func (b *Buffer[T]) Len() int {
	return b.size
}

// Cap returns the buffer capacity.
func (b *Buffer[T]) Cap() int {
	return b.capacity
}

// Clear discards all buffered values.
func (b *Buffer[T]) Clear() {
	b.head = 0
	b.size = 0
}
