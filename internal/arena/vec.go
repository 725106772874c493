package arena

import (
	"fmt"
	"iter"
	"slices"
)

// Vec is a growable container that has to be sized with Reserve before the
// first Push. On overflow it doubles its capacity and copies the elements.
type Vec[T any] struct {
	data     []T
	n        int
	reserved bool
}

// NewVec returns a vector with capacity for n elements.
func NewVec[T any](n int) *Vec[T] {
	v := &Vec[T]{}
	v.Reserve(n)
	return v
}

// Reserve makes room for at least n elements.
func (v *Vec[T]) Reserve(n int) {
	if n < 0 {
		panic(fmt.Errorf("vec: negative reserve %d", n))
	}
	v.reserved = true
	if n <= len(v.data) {
		return
	}
	v.realloc(n)
}

func (v *Vec[T]) realloc(capacity int) {
	data := make([]T, capacity)
	copy(data, v.data[:v.n])
	v.data = data
}

// Push appends x, doubling the storage when full.
func (v *Vec[T]) Push(x T) {
	if !v.reserved {
		panic("vec: push before reserve")
	}
	if v.n == len(v.data) {
		next := 2 * len(v.data)
		if next == 0 {
			next = 1
		}
		v.realloc(next)
	}
	v.data[v.n] = x
	v.n++
}

// Len reports the number of stored elements.
func (v *Vec[T]) Len() int { return v.n }

// Cap reports the current capacity.
func (v *Vec[T]) Cap() int { return len(v.data) }

// At returns element i.
func (v *Vec[T]) At(i int) T {
	if i < 0 || i >= v.n {
		panic(fmt.Errorf("vec: index %d out of range [0,%d)", i, v.n))
	}
	return v.data[i]
}

// Set overwrites element i.
func (v *Vec[T]) Set(i int, x T) {
	if i < 0 || i >= v.n {
		panic(fmt.Errorf("vec: index %d out of range [0,%d)", i, v.n))
	}
	v.data[i] = x
}

// All iterates over the stored elements.
func (v *Vec[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := 0; i < v.n; i++ {
			if !yield(i, v.data[i]) {
				return
			}
		}
	}
}

// ToSlice returns a copy owned by the caller.
func (v *Vec[T]) ToSlice() []T {
	return slices.Clone(v.data[:v.n])
}
