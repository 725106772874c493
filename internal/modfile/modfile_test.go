package modfile_test

import (
	"bytes"
	"errors"
	"testing"

	"irlower/internal/ir"
	"irlower/internal/modfile"
	"irlower/internal/serial"
	"irlower/internal/source"
	"irlower/internal/testkit"
)

func sampleLocations() *source.Locations {
	locs := source.NewLocations()
	locs.AddFile("mathlib.f90", []byte("module mathlib\ncontains\nend module\n"))
	id := locs.AddFile("main.f90", []byte("#include \"defs.h\"\nprogram main\nend program\n"))
	f := locs.File(id)
	f.OutStart = append(f.OutStart, 40)
	f.InStart = append(f.InStart, 18)
	f.Preproc = append(f.Preproc, source.PreprocInterval{
		Kind: source.IntervalInclude, OutStart: 0, OutEnd: 40, Name: "defs.h",
	})
	return locs
}

func save(t *testing.T, u *ir.Unit, locs *source.Locations, f modfile.Format) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := modfile.SaveFormat(&buf, u, locs, f); err != nil {
		t.Fatalf("save: %v", err)
	}
	return buf.Bytes()
}

func TestSaveLoad(t *testing.T) {
	locs := sampleLocations()
	data := save(t, testkit.Sample(), locs, modfile.FormatBinary)

	u := ir.NewUnit(nil)
	got, err := modfile.Load(bytes.NewReader(data), u)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.Equal(locs) {
		t.Fatalf("location tables differ: %+v", got.Files)
	}
	if name, lc, ok := got.Position(source.Span{File: 1, Start: 45}); !ok || name != "main.f90" || lc.Line != 2 {
		t.Fatalf("position = %s %+v %v", name, lc, ok)
	}

	modID, ok := u.ResolveLocal(u.Global, "mathlib")
	if !ok {
		t.Fatalf("mathlib not loaded")
	}
	mod := u.Symbol(modID).Data.(*ir.ModuleData)
	if !mod.LoadedFromCache {
		t.Fatalf("module not marked as loaded from cache")
	}
	sqID, _ := u.ResolveLocal(mod.Scope, "square")
	if fn := u.Function(sqID); fn.Body != nil || fn.ABI != ir.ABIExternal {
		t.Fatalf("square not externalized: abi %s, %d statements", fn.ABI, len(fn.Body))
	}
	piID, _ := u.ResolveLocal(mod.Scope, "pi")
	if d := u.Symbol(piID).Data.(*ir.VariableData); d.Init == nil {
		t.Fatalf("named constant lost its value")
	}
	progID, _ := u.Program()
	if len(u.Symbol(progID).Data.(*ir.ProgramData).Body) == 0 {
		t.Fatalf("program body dropped")
	}
}

func TestTextMatchesBinary(t *testing.T) {
	locs := sampleLocations()
	ub, ut := ir.NewUnit(nil), ir.NewUnit(nil)
	if _, err := modfile.LoadFormat(bytes.NewReader(save(t, testkit.Sample(), locs, modfile.FormatBinary)), ub, modfile.FormatBinary); err != nil {
		t.Fatalf("binary: %v", err)
	}
	text := save(t, testkit.Sample(), locs, modfile.FormatText)
	if modfile.Sniff(text) != modfile.FormatText {
		t.Fatalf("text modfile sniffed as binary")
	}
	if modfile.Sniff(save(t, testkit.Sample(), locs, modfile.FormatBinary)) != modfile.FormatBinary {
		t.Fatalf("binary modfile sniffed as text")
	}
	textLocs, err := modfile.LoadFormat(bytes.NewReader(text), ut, modfile.FormatText)
	if err != nil {
		t.Fatalf("text: %v", err)
	}
	if !textLocs.Equal(locs) {
		t.Fatalf("text location tables differ")
	}
	if a, b := ir.DumpString(ub), ir.DumpString(ut); a != b {
		t.Fatalf("dumps differ at %s", testkit.FirstDiff(a, b))
	}
}

func TestRejectsForeignStreams(t *testing.T) {
	header := func(h, v string) []byte {
		var buf bytes.Buffer
		w := serial.NewBinaryWriter(&buf)
		w.String(h)
		w.String(v)
		w.Int64(0)
		if err := w.Flush(); err != nil {
			t.Fatalf("flush: %v", err)
		}
		return buf.Bytes()
	}
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"garbage", []byte("hello world, this is not a modfile"), modfile.ErrHeader},
		{"other header", header("LFortran Modfile", "0.1"), modfile.ErrHeader},
		{"other version", header(modfile.Header, "0.0.0-elsewhere"), modfile.ErrVersion},
		{"empty", nil, serial.ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := modfile.Load(bytes.NewReader(tt.data), ir.NewUnit(nil))
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTruncatedModfile(t *testing.T) {
	data := save(t, testkit.Sample(), sampleLocations(), modfile.FormatBinary)
	for _, n := range []int{30, len(data) / 3, len(data) - 2} {
		_, err := modfile.Load(bytes.NewReader(data[:n]), ir.NewUnit(nil))
		if !errors.Is(err, serial.ErrTruncated) {
			t.Fatalf("cut at %d: got %v, want ErrTruncated", n, err)
		}
	}
}
