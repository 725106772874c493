package testkit

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"irlower/internal/ir"
	"irlower/internal/serial"
	"irlower/internal/verify"
)

type codec struct {
	name  string
	write func(io.Writer) serial.Writer
	read  func(io.Reader) serial.Reader
}

var codecs = []codec{
	{"binary",
		func(w io.Writer) serial.Writer { return serial.NewBinaryWriter(w) },
		func(r io.Reader) serial.Reader { return serial.NewBinaryReader(r) }},
	{"text",
		func(w io.Writer) serial.Writer { return serial.NewTextWriter(w) },
		func(r io.Reader) serial.Reader { return serial.NewTextReader(r) }},
}

// CheckRoundTrip encodes u with both encodings, decodes each stream into a
// fresh unit and requires an identical dump, an identical structural hash
// and a verifier-clean result.
func CheckRoundTrip(u *ir.Unit) error {
	want := ir.DumpString(u)
	wantHash := u.StructuralHash(u.Global)
	for _, c := range codecs {
		var buf bytes.Buffer
		if err := serial.Encode(c.write(&buf), u); err != nil {
			return fmt.Errorf("%s: encode: %w", c.name, err)
		}
		got := ir.NewUnit(ir.NewContext())
		if err := serial.Decode(c.read(&buf), got); err != nil {
			return fmt.Errorf("%s: decode: %w", c.name, err)
		}
		if dump := ir.DumpString(got); dump != want {
			return fmt.Errorf("%s: dump differs at %s", c.name, FirstDiff(want, dump))
		}
		if h := got.StructuralHash(got.Global); h != wantHash {
			return fmt.Errorf("%s: structural hash %s, want %s", c.name, h, wantHash)
		}
		if err := verify.Check(got); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return nil
}

// FirstDiff describes the first line where two dumps disagree.
func FirstDiff(want, got string) string {
	wl := strings.Split(want, "\n")
	gl := strings.Split(got, "\n")
	for i := 0; i < len(wl) || i < len(gl); i++ {
		var w, g string
		if i < len(wl) {
			w = wl[i]
		}
		if i < len(gl) {
			g = gl[i]
		}
		if w != g {
			return fmt.Sprintf("line %d: want %q, got %q", i+1, w, g)
		}
	}
	return "no difference"
}
