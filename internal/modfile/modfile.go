// Package modfile reads and writes module-cache files and keeps a
// content-addressed store of them on disk.
//
// A modfile is the header, the version of the compiler that wrote it, the
// location tables needed to map spans back to the original sources and the
// serialized unit:
//
//	[header][version][file count, per file: name, out_start, in_start,
//	 newlines, preprocessor intervals][IR blob]
//
// A file written by any other version is rejected.
package modfile

import (
	"errors"
	"fmt"
	"io"

	"fortio.org/safecast"

	"irlower/internal/ir"
	"irlower/internal/serial"
	"irlower/internal/source"
	"irlower/internal/version"
)

// Header opens every modfile.
const Header = "irlower Modfile"

var (
	// ErrHeader is returned when the stream is not a modfile.
	ErrHeader = errors.New("modfile: bad header")
	// ErrVersion is returned when the modfile was written by another version.
	ErrVersion = errors.New("modfile: version mismatch")
)

// Format selects the stream encoding.
type Format uint8

const (
	FormatBinary Format = iota
	// FormatText is the whitespace-delimited debugging encoding.
	FormatText
)

func (f Format) String() string {
	if f == FormatText {
		return "text"
	}
	return "binary"
}

// Sniff guesses the encoding of a modfile from its first bytes: a binary
// file opens with the big-endian length of the header, a text file with
// that length in decimal.
func Sniff(prefix []byte) Format {
	if len(prefix) > 0 && prefix[0] >= '0' && prefix[0] <= '9' {
		return FormatText
	}
	return FormatBinary
}

// Save writes u and locs to w in the binary format.
func Save(w io.Writer, u *ir.Unit, locs *source.Locations) error {
	return SaveFormat(w, u, locs, FormatBinary)
}

// SaveFormat writes u and locs to w.
func SaveFormat(w io.Writer, u *ir.Unit, locs *source.Locations, f Format) error {
	var sw serial.Writer
	if f == FormatText {
		sw = serial.NewTextWriter(w)
	} else {
		sw = serial.NewBinaryWriter(w)
	}
	sw.String(Header)
	sw.String(version.Version)
	writeLocations(sw, locs)
	if err := sw.Err(); err != nil {
		return fmt.Errorf("modfile: save: %w", err)
	}
	if err := serial.Encode(sw, u); err != nil {
		return fmt.Errorf("modfile: save: %w", err)
	}
	return nil
}

// Load reads a binary modfile into u. Every module it brings in is marked
// as loaded from cache and reduced to its interface.
func Load(r io.Reader, u *ir.Unit) (*source.Locations, error) {
	return LoadFormat(r, u, FormatBinary)
}

// LoadFormat is Load for an explicit encoding.
func LoadFormat(r io.Reader, u *ir.Unit, f Format) (*source.Locations, error) {
	return load(r, u, f, true)
}

// ReadRaw reads a modfile into u as it was written, without reducing the
// modules it contains. Tools that show or rewrite modfiles use it.
func ReadRaw(r io.Reader, u *ir.Unit, f Format) (*source.Locations, error) {
	return load(r, u, f, false)
}

func load(r io.Reader, u *ir.Unit, f Format, externalize bool) (*source.Locations, error) {
	var sr serial.Reader
	if f == FormatText {
		sr = serial.NewTextReader(r)
	} else {
		sr = serial.NewBinaryReader(r)
	}
	if err := checkHeader(sr); err != nil {
		return nil, err
	}
	locs, err := readLocations(sr)
	if err != nil {
		return nil, fmt.Errorf("modfile: load: %w", err)
	}

	before := make(map[ir.SymbolID]bool)
	for _, id := range u.Scope(u.Global).Symbols() {
		before[id] = true
	}
	if err := serial.Decode(sr, u); err != nil {
		return nil, fmt.Errorf("modfile: load: %w", err)
	}
	if !externalize {
		return locs, nil
	}
	for _, id := range u.SortedSymbols(u.Global) {
		if before[id] {
			continue
		}
		if mod, ok := u.Symbol(id).Data.(*ir.ModuleData); ok {
			mod.LoadedFromCache = true
			u.Externalize(mod.Scope)
		}
	}
	return locs, nil
}

func checkHeader(r serial.Reader) error {
	header := r.String()
	if err := r.Err(); err != nil {
		if errors.Is(err, serial.ErrMalformed) {
			return ErrHeader
		}
		return fmt.Errorf("modfile: load: %w", err)
	}
	if header != Header {
		return fmt.Errorf("%w: %q", ErrHeader, header)
	}
	ver := r.String()
	if err := r.Err(); err != nil {
		return fmt.Errorf("modfile: load: %w", err)
	}
	if ver != version.Version {
		return fmt.Errorf("%w: file %q, compiler %q", ErrVersion, ver, version.Version)
	}
	return nil
}

func writeU32s(w serial.Writer, vs []uint32) {
	w.Int64(int64(len(vs)))
	for _, v := range vs {
		w.Int64(int64(v))
	}
}

func writeLocations(w serial.Writer, locs *source.Locations) {
	if locs == nil {
		w.Int64(0)
		return
	}
	w.Int64(int64(len(locs.Files)))
	for i := range locs.Files {
		f := &locs.Files[i]
		w.String(f.Name)
		writeU32s(w, f.OutStart)
		writeU32s(w, f.InStart)
		writeU32s(w, f.Newlines)
		w.Int64(int64(len(f.Preproc)))
		for _, p := range f.Preproc {
			w.Uint8(uint8(p.Kind))
			w.Int64(int64(p.OutStart))
			w.Int64(int64(p.OutEnd))
			w.String(p.Name)
		}
	}
}

// maxTable bounds the length of one decoded location table.
const maxTable = 1 << 26

func readCount(r serial.Reader) (int, error) {
	n := r.Int64()
	if err := r.Err(); err != nil {
		return 0, err
	}
	if n < 0 || n > maxTable {
		return 0, fmt.Errorf("%w: table length %d", serial.ErrMalformed, n)
	}
	return safecast.Conv[int](n)
}

func readU32(r serial.Reader) (uint32, error) {
	v := r.Int64()
	if err := r.Err(); err != nil {
		return 0, err
	}
	out, err := safecast.Conv[uint32](v)
	if err != nil {
		return 0, fmt.Errorf("%w: offset %d", serial.ErrMalformed, v)
	}
	return out, nil
}

func readU32s(r serial.Reader) ([]uint32, error) {
	n, err := readCount(r)
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		if out[i], err = readU32(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readLocations(r serial.Reader) (*source.Locations, error) {
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	locs := source.NewLocations()
	for range n {
		var f source.LocFile
		f.Name = r.String()
		if f.OutStart, err = readU32s(r); err != nil {
			return nil, err
		}
		if f.InStart, err = readU32s(r); err != nil {
			return nil, err
		}
		if len(f.InStart) != len(f.OutStart) {
			return nil, fmt.Errorf("%w: %s: %d output intervals, %d input starts",
				serial.ErrMalformed, f.Name, len(f.OutStart), len(f.InStart))
		}
		if f.Newlines, err = readU32s(r); err != nil {
			return nil, err
		}
		var np int
		if np, err = readCount(r); err != nil {
			return nil, err
		}
		for range np {
			var p source.PreprocInterval
			p.Kind = source.IntervalKind(r.Uint8())
			if p.OutStart, err = readU32(r); err != nil {
				return nil, err
			}
			if p.OutEnd, err = readU32(r); err != nil {
				return nil, err
			}
			p.Name = r.String()
			f.Preproc = append(f.Preproc, p)
		}
		if err := r.Err(); err != nil {
			return nil, err
		}
		locs.Files = append(locs.Files, f)
	}
	return locs, nil
}
