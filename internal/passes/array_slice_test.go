package passes_test

import (
	"slices"
	"testing"

	"irlower/internal/ir"
	"irlower/internal/testkit"
)

// buildSlices fills a(1:6) with 10, 20, ... and reads sections of it.
func buildSlices(b *testkit.Builder) (prog ir.SymbolID, a ir.SymbolID) {
	prog, p := b.Program("main")
	a = b.Local(p.Scope, "a", b.Array(b.I4, 1, 6))
	c := b.Local(p.Scope, "c", b.Array(b.I4, 1, 3))
	i := b.Local(p.Scope, "i", b.I4)
	n := b.Local(p.Scope, "n", b.I4)
	p.Body = []*ir.Stmt{
		b.Do(i, b.Int(1), b.Int(6), nil, b.Set(b.Item(a, b.Ref(i)), b.Bin(ir.OpMul, b.Ref(i), b.Int(10)))),
		b.Set(b.Ref(n), b.Int(4)),
		b.Set(b.Ref(c), b.Section(a, b.Int(2), nil, b.Int(2))),
		b.Print(b.Ref(c)),
		b.Print(b.Section(a, b.Int(5), b.Int(1), b.Int(-2))),
		b.Print(b.Section(a, nil, b.Ref(n), nil)),
		b.Print(b.Section(a, b.Int(4), b.Int(3), nil)),
	}
	return prog, a
}

func TestArraySliceCopiesSections(t *testing.T) {
	b := testkit.NewBuilder()
	buildSlices(b)
	got := sameOutput(t, b.U, "array_slice")
	want := []string{"20 40 60", "50 30 10", "10 20 30 40", ""}
	if !slices.Equal(got, want) {
		t.Fatalf("printed %q, want %q", got, want)
	}
	if n := testkit.CountExprs(b.U, ir.ExprArraySection); n != 0 {
		t.Fatalf("%d sections left", n)
	}
}

func TestArraySliceTemporaries(t *testing.T) {
	b := testkit.NewBuilder()
	prog, _ := buildSlices(b)
	lower(t, b.U, "array_slice")
	scope := b.U.Symbol(prog).OwnedScope()

	tests := []struct {
		name   string
		extent int64
		folded bool
	}{
		{name: "~0_slice", extent: 3, folded: true},
		{name: "~1_slice", extent: 3, folded: true},
		{name: "~2_slice"},
		{name: "~3_slice", extent: 0, folded: true},
	}
	for _, tt := range tests {
		id, ok := b.U.ResolveLocal(scope, tt.name)
		if !ok {
			t.Fatalf("%s not declared:\n%s", tt.name, ir.DumpString(b.U))
		}
		ty := b.U.Types.Get(b.U.VarType(id))
		if ty.Kind != ir.TypeArray || len(ty.Dims) != 1 {
			t.Fatalf("%s: want a rank-1 array, got %s", tt.name, b.U.Types.String(b.U.VarType(id)))
		}
		n, isConst := ir.ConstInt(ty.Dims[0].Length)
		if isConst != tt.folded || (tt.folded && n != tt.extent) {
			t.Fatalf("%s: extent %d (const=%v), want %d (const=%v)", tt.name, n, isConst, tt.extent, tt.folded)
		}
	}
	if _, ok := b.U.ResolveLocal(scope, "~1_v"); !ok {
		t.Fatalf("index variable ~1_v not declared")
	}
}

func TestArraySliceThenLoops(t *testing.T) {
	b := testkit.NewBuilder()
	buildSlices(b)
	sameOutput(t, b.U, "array_slice", "intrinsic_function", "do_loops")
	if n := testkit.Count(b.U, ir.StmtDoLoop); n != 0 {
		t.Fatalf("%d do loops left", n)
	}
	if n := testkit.CountExprs(b.U, ir.ExprIntrinsic); n != 0 {
		t.Fatalf("%d intrinsic calls left", n)
	}
}

func TestArraySliceTwoDimensions(t *testing.T) {
	b := testkit.NewBuilder()
	_, p := b.Program("main")
	m := b.Local(p.Scope, "m", b.Array(b.I4, 1, 3, 1, 3))
	i := b.Local(p.Scope, "i", b.I4)
	j := b.Local(p.Scope, "j", b.I4)
	section := b.U.ArraySection(b.Ref(m), []ir.Range{
		{Start: b.Int(2), End: b.Int(3)},
		{Start: b.Int(1), End: b.Int(3), Step: b.Int(2)},
	}, noSpan)
	p.Body = []*ir.Stmt{
		b.Do(i, b.Int(1), b.Int(3), nil,
			b.Do(j, b.Int(1), b.Int(3), nil,
				b.Set(b.Item(m, b.Ref(i), b.Ref(j)), b.Bin(ir.OpAdd, b.Bin(ir.OpMul, b.Ref(i), b.Int(10)), b.Ref(j))))),
		b.Print(section),
	}
	got := sameOutput(t, b.U, "array_slice", "do_loops")
	want := []string{"21 31 23 33"}
	if !slices.Equal(got, want) {
		t.Fatalf("printed %q, want %q", got, want)
	}
}
