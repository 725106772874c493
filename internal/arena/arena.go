// Package arena provides the memory owners used by one compilation unit:
// a chunked byte arena, typed node pools with stable pointers, an explicitly
// reserved growable vector and an arena-backed string interner.
//
// Nothing allocated here is freed individually. Storage is released when the
// owning unit drops the arena as a whole.
package arena

import (
	"fmt"

	"fortio.org/safecast"
)

const defaultChunkSize = 4096

// Ref addresses a byte range allocated from an Arena.
type Ref struct {
	Chunk uint32
	Off   uint32
	Len   uint32
}

// Arena is a bump allocator over a list of byte chunks.
// Chunks are never moved, so a Ref stays valid for the arena's lifetime.
type Arena struct {
	chunks [][]byte
	used   uint32 // bytes used in the last chunk
	total  uint64
}

// New creates an arena whose first chunk holds initial bytes (0 picks a default).
func New(initial uint32) *Arena {
	if initial == 0 {
		initial = defaultChunkSize
	}
	return &Arena{chunks: [][]byte{make([]byte, initial)}}
}

// Allocate reserves n bytes and returns a handle to them.
// A request that does not fit opens a new chunk of max(n, 2*previous) bytes.
func (a *Arena) Allocate(n uint32) Ref {
	cur := a.chunks[len(a.chunks)-1]
	if uint64(a.used)+uint64(n) > uint64(len(cur)) {
		a.grow(n)
	}
	idx, err := safecast.Conv[uint32](len(a.chunks) - 1)
	if err != nil {
		panic(fmt.Errorf("arena chunk index overflow: %w", err))
	}
	ref := Ref{Chunk: idx, Off: a.used, Len: n}
	a.used += n
	a.total += uint64(n)
	return ref
}

// Copy allocates len(b) bytes and copies b into them.
func (a *Arena) Copy(b []byte) Ref {
	n, err := safecast.Conv[uint32](len(b))
	if err != nil {
		panic(fmt.Errorf("arena allocation too large: %w", err))
	}
	ref := a.Allocate(n)
	copy(a.Bytes(ref), b)
	return ref
}

func (a *Arena) grow(n uint32) {
	prev := uint64(len(a.chunks[len(a.chunks)-1]))
	size := 2 * prev
	if uint64(n) > size {
		size = uint64(n)
	}
	sz, err := safecast.Conv[uint32](size)
	if err != nil {
		panic(fmt.Errorf("arena chunk overflow: %w", err))
	}
	a.chunks = append(a.chunks, make([]byte, sz))
	a.used = 0
}

// Bytes returns the storage behind ref. The slice is capped so appends never
// spill into neighbouring allocations.
func (a *Arena) Bytes(ref Ref) []byte {
	if int(ref.Chunk) >= len(a.chunks) {
		return nil
	}
	end := ref.Off + ref.Len
	return a.chunks[ref.Chunk][ref.Off:end:end]
}

// Chunks reports how many chunks the arena owns.
func (a *Arena) Chunks() int { return len(a.chunks) }

// Allocated reports the total number of bytes handed out.
func (a *Arena) Allocated() uint64 { return a.total }

// ChunkSize reports the size of chunk i, or 0 when i is out of range.
func (a *Arena) ChunkSize(i int) int {
	if i < 0 || i >= len(a.chunks) {
		return 0
	}
	return len(a.chunks[i])
}

// Reset drops every chunk but the first one. All refs become invalid.
func (a *Arena) Reset() {
	first := a.chunks[0]
	clear(first)
	a.chunks = [][]byte{first}
	a.used = 0
	a.total = 0
}
