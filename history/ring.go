package history

// Ring is a capped FIFO buffer. Appending to a full ring evicts the oldest item.
// Ring is not safe for concurrent use; see Recorder.
type Ring[T any] struct {
	items []T
	start int
	size  int
}

// NewRing returns a ring holding at most capacity items (minimum 1).
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Append adds v as the newest item.
func (r *Ring[T]) Append(v T) {
	if r.size < len(r.items) {
		r.items[(r.start+r.size)%len(r.items)] = v
		r.size++
		return
	}
	r.items[r.start] = v
	r.start = (r.start + 1) % len(r.items)
}

// Items returns a copy of the contents, oldest first.
func (r *Ring[T]) Items() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.items[(r.start+i)%len(r.items)]
	}
	return out
}

// Latest returns the newest item.
func (r *Ring[T]) Latest() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.items[(r.start+r.size-1)%len(r.items)], true
}

func (r *Ring[T]) Len() int { return r.size }
func (r *Ring[T]) Cap() int { return len(r.items) }
