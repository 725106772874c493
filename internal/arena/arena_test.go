package arena

import (
	"testing"
)

func TestArenaGrowthKeepsEarlierAllocations(t *testing.T) {
	a := New(16)
	refs := make([]Ref, 0, 64)
	for i := range 64 {
		ref := a.Allocate(5)
		b := a.Bytes(ref)
		for j := range b {
			b[j] = byte(i + j)
		}
		refs = append(refs, ref)
	}
	if a.Chunks() < 2 {
		t.Fatalf("expected arena to grow past the first chunk, chunks=%d", a.Chunks())
	}
	for i, ref := range refs {
		b := a.Bytes(ref)
		if len(b) != 5 {
			t.Fatalf("ref %d: len=%d, want 5", i, len(b))
		}
		for j := range b {
			if b[j] != byte(i+j) {
				t.Fatalf("ref %d byte %d changed: got %d want %d", i, j, b[j], byte(i+j))
			}
		}
	}
	if a.Allocated() != 64*5 {
		t.Fatalf("allocated=%d, want %d", a.Allocated(), 64*5)
	}
}

func TestArenaChunkSizing(t *testing.T) {
	tests := []struct {
		name    string
		initial uint32
		first   uint32
		second  uint32
		want    int
	}{
		{name: "doubles", initial: 8, first: 8, second: 4, want: 16},
		{name: "fits large request", initial: 8, first: 8, second: 100, want: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(tt.initial)
			a.Allocate(tt.first)
			a.Allocate(tt.second)
			if got := a.ChunkSize(1); got != tt.want {
				t.Fatalf("second chunk size=%d, want %d", got, tt.want)
			}
		})
	}
}

func TestArenaBytesAreCapped(t *testing.T) {
	a := New(32)
	first := a.Copy([]byte("ab"))
	second := a.Copy([]byte("cd"))
	b := a.Bytes(first)
	_ = append(b, 'x')
	if got := string(a.Bytes(second)); got != "cd" {
		t.Fatalf("append spilled into neighbour: %q", got)
	}
}

func TestPoolPointersStable(t *testing.T) {
	p := NewPool[int](2)
	ptrs := make([]*int, 0, 100)
	for i := range 100 {
		id, ptr := p.New(i)
		if id != uint32(i+1) {
			t.Fatalf("id=%d, want %d", id, i+1)
		}
		ptrs = append(ptrs, ptr)
	}
	for i, ptr := range ptrs {
		if *ptr != i {
			t.Fatalf("pointer %d now reads %d", i, *ptr)
		}
		if got := p.Get(uint32(i + 1)); got != ptr {
			t.Fatalf("Get(%d) returned a different pointer", i+1)
		}
	}
	if p.Get(0) != nil || p.Get(101) != nil {
		t.Fatalf("invalid ids must return nil")
	}
	count := 0
	for range p.All() {
		count++
	}
	if count != 100 {
		t.Fatalf("All visited %d values, want 100", count)
	}
}

func TestVecRequiresReserve(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on push before reserve")
		}
	}()
	var v Vec[int]
	v.Push(1)
}

func TestVecDoublesAndCopies(t *testing.T) {
	v := NewVec[string](1)
	v.Push("a")
	v.Push("b")
	if v.Cap() != 2 {
		t.Fatalf("cap=%d, want 2", v.Cap())
	}
	v.Push("c")
	if v.Cap() != 4 {
		t.Fatalf("cap=%d, want 4", v.Cap())
	}
	got := v.ToSlice()
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("unexpected contents %v", got)
	}
	got[0] = "z"
	if v.At(0) != "a" {
		t.Fatalf("ToSlice must return an owned copy")
	}
	v.Set(1, "B")
	var joined string
	for _, s := range v.All() {
		joined += s
	}
	if joined != "aBc" {
		t.Fatalf("iteration got %q", joined)
	}
}

func TestStringsIntern(t *testing.T) {
	s := NewStrings(New(8))
	a := s.Intern("alpha")
	b := s.Intern("beta")
	if a == b {
		t.Fatalf("distinct strings share an id")
	}
	if again := s.Intern("alpha"); again != a {
		t.Fatalf("re-intern returned %d, want %d", again, a)
	}
	if s.Intern("") != NoStr {
		t.Fatalf("empty string must map to NoStr")
	}
	if got := s.MustLookup(b); got != "beta" {
		t.Fatalf("lookup=%q", got)
	}
	if _, ok := s.Find("gamma"); ok {
		t.Fatalf("Find must not intern")
	}
	if _, ok := s.Lookup(StrID(99)); ok {
		t.Fatalf("lookup of unknown id must fail")
	}
}

func TestStringsInternNameNormalizes(t *testing.T) {
	s := NewStrings(nil)
	composed := s.InternName("caf\u00e9")
	decomposed := s.InternName("cafe\u0301")
	if composed != decomposed {
		t.Fatalf("NFC forms differ: %d vs %d", composed, decomposed)
	}
}
