package arena

import (
	"bytes"
	"fmt"
	"hash/maphash"

	"fortio.org/safecast"
	"golang.org/x/text/unicode/norm"
)

// StrID identifies an interned string.
type StrID uint32

// NoStr is the empty string.
const NoStr StrID = 0

// Strings interns byte strings into an Arena. Equal strings share one StrID.
type Strings struct {
	arena *Arena
	refs  []Ref              // id -> bytes (refs[0] = "")
	index map[uint64][]StrID // hash -> candidates
	seed  maphash.Seed
}

// NewStrings creates an interner backed by a (possibly shared) arena.
func NewStrings(a *Arena) *Strings {
	if a == nil {
		a = New(0)
	}
	return &Strings{
		arena: a,
		refs:  []Ref{{}},
		index: make(map[uint64][]StrID),
		seed:  maphash.MakeSeed(),
	}
}

// Intern stores s once and returns its ID.
func (s *Strings) Intern(str string) StrID {
	if str == "" {
		return NoStr
	}
	h := maphash.String(s.seed, str)
	for _, id := range s.index[h] {
		if string(s.arena.Bytes(s.refs[id])) == str {
			return id
		}
	}
	n, err := safecast.Conv[uint32](len(s.refs))
	if err != nil {
		panic(fmt.Errorf("strings overflow: %w", err))
	}
	id := StrID(n)
	s.refs = append(s.refs, s.arena.Copy([]byte(str)))
	s.index[h] = append(s.index[h], id)
	return id
}

// InternName interns an identifier in NFC form, so differently composed
// spellings of one name map to the same ID.
func (s *Strings) InternName(name string) StrID {
	return s.Intern(norm.NFC.String(name))
}

// Find returns the ID of str without interning it.
func (s *Strings) Find(str string) (StrID, bool) {
	if str == "" {
		return NoStr, true
	}
	for _, id := range s.index[maphash.String(s.seed, str)] {
		if bytes.Equal(s.arena.Bytes(s.refs[id]), []byte(str)) {
			return id, true
		}
	}
	return NoStr, false
}

// FindName is Find for identifiers interned with InternName.
func (s *Strings) FindName(name string) (StrID, bool) {
	return s.Find(norm.NFC.String(name))
}

// Lookup returns the string for id.
func (s *Strings) Lookup(id StrID) (string, bool) {
	if int(id) >= len(s.refs) {
		return "", false
	}
	return string(s.arena.Bytes(s.refs[id])), true
}

// MustLookup is Lookup that panics on an unknown id.
func (s *Strings) MustLookup(id StrID) string {
	str, ok := s.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("invalid string ID %d", id))
	}
	return str
}

// Len reports the number of interned strings including NoStr.
func (s *Strings) Len() int { return len(s.refs) }
