package serial_test

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"irlower/internal/ir"
	"irlower/internal/serial"
	"irlower/internal/source"
	"irlower/internal/testkit"
)

func encodeBinary(t *testing.T, u *ir.Unit) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := serial.Encode(serial.NewBinaryWriter(&buf), u); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func decodeBinary(data []byte) (*ir.Unit, error) {
	u := ir.NewUnit(ir.NewContext())
	return u, serial.Decode(serial.NewBinaryReader(bytes.NewReader(data)), u)
}

func TestRoundTripSample(t *testing.T) {
	if err := testkit.CheckRoundTrip(testkit.Sample()); err != nil {
		t.Fatalf("round trip: %v", err)
	}
}

func TestRoundTripEmptyUnit(t *testing.T) {
	if err := testkit.CheckRoundTrip(ir.NewUnit(nil)); err != nil {
		t.Fatalf("round trip: %v", err)
	}
}

func TestMutualRecursion(t *testing.T) {
	b := testkit.NewBuilder()
	evenID, even := b.Func(b.U.Global, "even", ir.AccessPublic)
	oddID, odd := b.Func(b.U.Global, "odd", ir.AccessPublic)
	en := b.Param(even, "n", b.I4, ir.IntentIn)
	on := b.Param(odd, "n", b.I4, ir.IntentIn)
	b.Result(even, "r", b.L)
	b.Result(odd, "r", b.L)
	even.Body = []*ir.Stmt{b.CallStmt(oddID, b.Bin(ir.OpSub, b.Ref(en), b.Int(1)))}
	odd.Body = []*ir.Stmt{b.CallStmt(evenID, b.Bin(ir.OpSub, b.Ref(on), b.Int(1)))}
	if err := testkit.CheckRoundTrip(b.U); err != nil {
		t.Fatalf("round trip: %v", err)
	}
}

// A reference read before its definition must end up pointing at the very
// symbol the definition fills.
func TestForwardReferenceKeepsHandle(t *testing.T) {
	b := testkit.NewBuilder()
	_, prog := b.Program("alpha")
	zID, z := b.Func(b.U.Global, "zeta", ir.AccessPublic)
	b.Param(z, "q", b.I4, ir.IntentIn)
	prog.Body = []*ir.Stmt{b.CallStmt(zID, b.Int(7))}

	got, err := decodeBinary(encodeBinary(t, b.U))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	progID, ok := got.Program()
	if !ok {
		t.Fatalf("program lost")
	}
	call := got.Symbol(progID).Data.(*ir.ProgramData).Body[0].Data.(*ir.CallStmtData)
	want, ok := got.ResolveLocal(got.Global, "zeta")
	if !ok {
		t.Fatalf("zeta not bound")
	}
	if call.Callee != want {
		t.Fatalf("callee handle %d, want %d", call.Callee, want)
	}
	sym := got.Symbol(want)
	if !sym.Alive() || sym.Kind != ir.SymFunction {
		t.Fatalf("zeta = %+v, want a defined function", sym)
	}
	if fn := got.Function(want); fn == nil || len(fn.Params) != 1 {
		t.Fatalf("zeta payload not filled in: %+v", fn)
	}
	if owner := got.Scope(got.Function(want).Scope).Owner; owner != want {
		t.Fatalf("zeta scope owner %d, want %d", owner, want)
	}
}

func TestDecodeAssignsFreshCounters(t *testing.T) {
	data := encodeBinary(t, testkit.Sample())
	ctx := ir.NewContext()
	for range 5 {
		ctx.NextCounter()
	}
	u := ir.NewUnit(ctx)
	if err := serial.Decode(serial.NewBinaryReader(bytes.NewReader(data)), u); err != nil {
		t.Fatalf("decode: %v", err)
	}
	seen := make(map[uint64]bool)
	for id := ir.ScopeID(1); uint32(id) <= u.ScopeCount(); id++ {
		c := u.Scope(id).Counter
		if c <= 5 {
			t.Fatalf("scope %d reuses counter %d from before the load", id, c)
		}
		if seen[c] {
			t.Fatalf("counter %d issued twice", c)
		}
		seen[c] = true
	}
}

func TestTruncatedStream(t *testing.T) {
	data := encodeBinary(t, testkit.Sample())
	for _, n := range []int{0, 1, 9, 17, len(data) / 2, len(data) - 1} {
		_, err := decodeBinary(data[:n])
		if !errors.Is(err, serial.ErrTruncated) {
			t.Fatalf("cut at %d/%d: got %v, want ErrTruncated", n, len(data), err)
		}
	}
}

func TestTruncatedTextStream(t *testing.T) {
	var buf bytes.Buffer
	if err := serial.Encode(serial.NewTextWriter(&buf), testkit.Sample()); err != nil {
		t.Fatalf("encode: %v", err)
	}
	text := buf.String()
	cut := strings.LastIndex(text[:len(text)/2], " ")
	u := ir.NewUnit(nil)
	err := serial.Decode(serial.NewTextReader(strings.NewReader(text[:cut])), u)
	if !errors.Is(err, serial.ErrTruncated) {
		t.Fatalf("got %v, want ErrTruncated", err)
	}
}

func TestUnknownSymbolTag(t *testing.T) {
	data := encodeBinary(t, testkit.Sample())
	// global counter and symbol count precede the first symbol tag
	data[16] = 200
	_, err := decodeBinary(data)
	if !errors.Is(err, serial.ErrMalformed) {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}

// variable writes `x: struct <name>` whose declaration lives in the scope
// with the given counter and is never defined.
func danglingStream(t *testing.T, counter int64) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := serial.NewBinaryWriter(&buf)
	w.Int64(1)
	w.Int64(1)
	w.Uint8(uint8(ir.SymVariable))
	w.String("x")
	w.Int64(0)
	w.Int64(0)
	w.Int64(0)
	w.Uint8(uint8(ir.TypeStruct))
	w.Int64(counter)
	w.Uint8(uint8(ir.SymStruct))
	w.String("ghost")
	for range 4 {
		w.Uint8(0)
	}
	w.Uint8(uint8(ir.ExprInvalid))
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	return buf.Bytes()
}

func TestDanglingReferences(t *testing.T) {
	tests := []struct {
		name    string
		counter int64
		want    string
	}{
		{"placeholder never defined", 1, "never defined"},
		{"scope never defined", 99, "unknown scope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeBinary(danglingStream(t, tt.counter))
			if !errors.Is(err, serial.ErrMalformed) {
				t.Fatalf("got %v, want ErrMalformed", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestDecodeIntoOccupiedScope(t *testing.T) {
	data := encodeBinary(t, testkit.Sample())
	b := testkit.NewBuilder()
	b.Program("main")
	err := serial.Decode(serial.NewBinaryReader(bytes.NewReader(data)), b.U)
	if !errors.Is(err, ir.ErrDuplicate) || !errors.Is(err, serial.ErrMalformed) {
		t.Fatalf("got %v, want a malformed duplicate", err)
	}
}

func TestEncodeRejectsPlaceholder(t *testing.T) {
	u := ir.NewUnit(nil)
	if _, err := u.Declare(u.Global, ir.SymFunction, "later"); err != nil {
		t.Fatalf("declare: %v", err)
	}
	var buf bytes.Buffer
	if err := serial.Encode(serial.NewBinaryWriter(&buf), u); err == nil {
		t.Fatalf("encoding a placeholder succeeded")
	}
}

func TestResolveExternals(t *testing.T) {
	b := testkit.NewBuilder()
	u := b.U
	_, prog := b.Program("main")
	aliasID, err := u.AddExternal(prog.Scope, "f", "m", "f", ir.NoSymbolID, source.Span{})
	if err != nil {
		t.Fatalf("add external: %v", err)
	}
	alias := u.Symbol(aliasID).Data.(*ir.ExternalData)

	if err := serial.ResolveExternals(u); err != nil {
		t.Fatalf("module not loaded yet: %v", err)
	}
	if alias.Target.IsValid() {
		t.Fatalf("alias resolved without its module")
	}

	_, mod := b.Module("m")
	fID, _ := b.Func(mod.Scope, "f", ir.AccessPublic)
	if err := serial.ResolveExternals(u); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if alias.Target != fID {
		t.Fatalf("target %d, want %d", alias.Target, fID)
	}

	if _, err := u.AddExternal(prog.Scope, "g", "m", "g", ir.NoSymbolID, source.Span{}); err != nil {
		t.Fatalf("add external: %v", err)
	}
	if err := serial.ResolveExternals(u); !errors.Is(err, serial.ErrUnresolved) {
		t.Fatalf("got %v, want ErrUnresolved", err)
	}
}

func TestTextStreamTokens(t *testing.T) {
	var buf bytes.Buffer
	w := serial.NewTextWriter(&buf)
	w.Int64(-3)
	w.Uint8(7)
	w.String("two words")
	w.Float64(0.5)
	w.Float64(math.Inf(-1))
	w.String("")
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got, want := buf.String(), "-3 7 9 two words 0.5 -Inf 0 \n"; got != want {
		t.Fatalf("text = %q, want %q", got, want)
	}

	r := serial.NewTextReader(strings.NewReader(buf.String()))
	if v := r.Int64(); v != -3 {
		t.Fatalf("int64 = %d", v)
	}
	if v := r.Uint8(); v != 7 {
		t.Fatalf("uint8 = %d", v)
	}
	if v := r.String(); v != "two words" {
		t.Fatalf("string = %q", v)
	}
	if v := r.Float64(); v != 0.5 {
		t.Fatalf("float = %v", v)
	}
	if v := r.Float64(); !math.IsInf(v, -1) {
		t.Fatalf("float = %v", v)
	}
	if v := r.String(); v != "" {
		t.Fatalf("string = %q", v)
	}
	if err := r.Err(); err != nil {
		t.Fatalf("reader: %v", err)
	}
	r.Int64()
	if !errors.Is(r.Err(), serial.ErrTruncated) {
		t.Fatalf("reading past the end: %v", r.Err())
	}
}

func TestTextReaderRejectsGarbage(t *testing.T) {
	r := serial.NewTextReader(strings.NewReader("12x"))
	r.Int64()
	if !errors.Is(r.Err(), serial.ErrMalformed) {
		t.Fatalf("got %v, want ErrMalformed", r.Err())
	}
}
