package db

import (
	"fmt"
	"iter"
)

// Range is an inclusive interval of integer coordinates. First may exceed
// Last, in which case the range counts down.
type Range struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

// NewRange returns the range [0, last], the meaning of a bare number in
// colsRange/rowsRange.
func NewRange(last int) Range { return Range{First: 0, Last: last} }

// Len returns the number of coordinates in the range.
func (r Range) Len() int {
	if r.Last >= r.First {
		return r.Last - r.First + 1
	}
	return r.First - r.Last + 1
}

// Descending reports whether the range counts down.
func (r Range) Descending() bool { return r.First > r.Last }

// At maps a 0-based position to its coordinate.
func (r Range) At(i int) int {
	if r.Descending() {
		return r.First - i
	}
	return r.First + i
}

// IndexOf is the inverse of At.
func (r Range) IndexOf(v int) int {
	if r.Descending() {
		return r.First - v
	}
	return v - r.First
}

// Contains reports whether v lies inside the range.
func (r Range) Contains(v int) bool {
	i := r.IndexOf(v)
	return i >= 0 && i < r.Len()
}

// All yields every coordinate in range order.
func (r Range) All() iter.Seq[int] {
	return func(yield func(int) bool) {
		for i := range r.Len() {
			if !yield(r.At(i)) {
				return
			}
		}
	}
}

func (r Range) String() string { return fmt.Sprintf("[%d, %d]", r.First, r.Last) }
