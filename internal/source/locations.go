package source

import (
	"fmt"
	"sort"

	"fortio.org/safecast"
)

// IntervalKind classifies a preprocessor interval.
type IntervalKind uint8

const (
	// IntervalInclude marks text pulled in from another file.
	IntervalInclude IntervalKind = iota + 1
	// IntervalMacro marks text produced by macro expansion.
	IntervalMacro
	// IntervalDirective marks a directive line removed from the output.
	IntervalDirective
)

func (k IntervalKind) String() string {
	switch k {
	case IntervalInclude:
		return "include"
	case IntervalMacro:
		return "macro"
	case IntervalDirective:
		return "directive"
	default:
		return fmt.Sprintf("IntervalKind(%d)", k)
	}
}

// PreprocInterval records where a stretch of preprocessed output came from.
type PreprocInterval struct {
	Kind     IntervalKind
	OutStart uint32
	OutEnd   uint32
	Name     string // include path or macro name
}

// LocFile holds the interval tables for one file: offsets in the
// preprocessed output (which spans point into) are mapped back to offsets in
// the original input.
type LocFile struct {
	Name     string
	OutStart []uint32 // start of each output interval, ascending
	InStart  []uint32 // input offset matching OutStart[i]
	Newlines []uint32 // offsets of '\n' in the input
	Preproc  []PreprocInterval
}

// Locations is the location manager stored alongside cached modules so that
// any later diagnostic can be mapped back to original source positions.
type Locations struct {
	Files []LocFile
}

// NewLocations returns an empty location manager.
func NewLocations() *Locations {
	return &Locations{}
}

// AddFile registers a file whose output equals its input and returns the
// index of the new table, which is also its FileID.
func (l *Locations) AddFile(name string, content []byte) FileID {
	idx, err := safecast.Conv[uint32](len(l.Files))
	if err != nil {
		panic(fmt.Errorf("locations overflow: %w", err))
	}
	l.Files = append(l.Files, LocFile{
		Name:     name,
		OutStart: []uint32{0},
		InStart:  []uint32{0},
		Newlines: newlineOffsets(content),
	})
	return FileID(idx)
}

// File returns the table for id or nil.
func (l *Locations) File(id FileID) *LocFile {
	if int(id) >= len(l.Files) {
		return nil
	}
	return &l.Files[id]
}

// ToInput maps an output offset to the original input offset.
func (f *LocFile) ToInput(out uint32) uint32 {
	if len(f.OutStart) == 0 {
		return out
	}
	// last interval whose start is <= out
	i := sort.Search(len(f.OutStart), func(i int) bool { return f.OutStart[i] > out }) - 1
	if i < 0 {
		return out
	}
	return f.InStart[i] + (out - f.OutStart[i])
}

// Interval returns the preprocessor interval covering out, if any.
func (f *LocFile) Interval(out uint32) (PreprocInterval, bool) {
	for _, iv := range f.Preproc {
		if out >= iv.OutStart && out < iv.OutEnd {
			return iv, true
		}
	}
	return PreprocInterval{}, false
}

// Position resolves the start of sp to a file name and line/column.
func (l *Locations) Position(sp Span) (string, LineCol, bool) {
	f := l.File(sp.File)
	if f == nil {
		return "", LineCol{}, false
	}
	return f.Name, lineCol(f.Newlines, f.ToInput(sp.Start)), true
}

// Equal reports whether both managers hold identical tables.
func (l *Locations) Equal(other *Locations) bool {
	if len(l.Files) != len(other.Files) {
		return false
	}
	for i := range l.Files {
		a, b := &l.Files[i], &other.Files[i]
		if a.Name != b.Name || !equalU32(a.OutStart, b.OutStart) ||
			!equalU32(a.InStart, b.InStart) || !equalU32(a.Newlines, b.Newlines) ||
			len(a.Preproc) != len(b.Preproc) {
			return false
		}
		for j := range a.Preproc {
			if a.Preproc[j] != b.Preproc[j] {
				return false
			}
		}
	}
	return true
}

// lineCol converts an input offset into a 1-based line and column.
func lineCol(newlines []uint32, off uint32) LineCol {
	n := sort.Search(len(newlines), func(i int) bool { return newlines[i] >= off })
	var start uint32
	if n > 0 {
		start = newlines[n-1] + 1
	}
	line, err := safecast.Conv[uint32](n + 1)
	if err != nil {
		panic(fmt.Errorf("line overflow: %w", err))
	}
	return LineCol{Line: line, Col: off - start + 1}
}

// newlineOffsets lists the offsets of every '\n' in content.
func newlineOffsets(content []byte) []uint32 {
	out := make([]uint32, 0, len(content)/32)
	for i, b := range content {
		if b != '\n' {
			continue
		}
		off, err := safecast.Conv[uint32](i)
		if err != nil {
			panic(fmt.Errorf("file too large: %w", err))
		}
		out = append(out, off)
	}
	return out
}

func equalU32(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
