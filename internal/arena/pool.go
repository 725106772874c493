package arena

import (
	"fmt"
	"iter"

	"fortio.org/safecast"
)

const defaultPoolChunk = 64

// Pool is a typed arena. Values live in chunks that never move, so pointers
// returned by New and Get stay valid for the pool's lifetime.
// Index 0 is reserved as the invalid handle.
type Pool[T any] struct {
	chunks [][]T
	n      uint32
}

// NewPool creates a pool whose first chunk holds capHint values.
func NewPool[T any](capHint uint32) *Pool[T] {
	if capHint == 0 {
		capHint = defaultPoolChunk
	}
	return &Pool[T]{chunks: [][]T{make([]T, 0, capHint)}}
}

// New stores v and returns its 1-based handle together with a stable pointer.
func (p *Pool[T]) New(v T) (uint32, *T) {
	last := len(p.chunks) - 1
	if len(p.chunks[last]) == cap(p.chunks[last]) {
		p.chunks = append(p.chunks, make([]T, 0, 2*cap(p.chunks[last])))
		last++
	}
	if p.n == ^uint32(0) {
		panic(fmt.Errorf("pool overflow: %d values", p.n))
	}
	p.chunks[last] = append(p.chunks[last], v)
	p.n++
	return p.n, &p.chunks[last][len(p.chunks[last])-1]
}

// Get returns the value for id or nil if id was never issued.
func (p *Pool[T]) Get(id uint32) *T {
	if id == 0 || id > p.n {
		return nil
	}
	idx := id - 1
	for _, c := range p.chunks {
		n, err := safecast.Conv[uint32](len(c))
		if err != nil {
			panic(fmt.Errorf("pool chunk overflow: %w", err))
		}
		if idx < n {
			return &c[idx]
		}
		idx -= n
	}
	return nil
}

// Len reports the number of values issued.
func (p *Pool[T]) Len() uint32 { return p.n }

// All iterates over every value in allocation order.
func (p *Pool[T]) All() iter.Seq2[uint32, *T] {
	return func(yield func(uint32, *T) bool) {
		var id uint32
		for _, c := range p.chunks {
			for i := range c {
				id++
				if !yield(id, &c[i]) {
					return
				}
			}
		}
	}
}
