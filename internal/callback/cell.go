package callback

import "sync"

// Cell holds at most one value. Take hands it out once and empties the cell.
type Cell[T any] struct {
	mu    sync.Mutex
	value T
	full  bool
}

// Store replaces the held value.
func (c *Cell[T]) Store(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	c.full = true
}

// Take returns the held value and clears the cell. ok is false when the
// cell was empty.
func (c *Cell[T]) Take() (v T, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.full {
		return v, false
	}
	v = c.value
	var zero T
	c.value = zero
	c.full = false
	return v, true
}
