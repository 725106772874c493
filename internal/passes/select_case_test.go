package passes_test

import (
	"slices"
	"testing"

	"irlower/internal/ir"
	"irlower/internal/testkit"
)

func str(b *testkit.Builder, s string) *ir.Expr { return b.U.StringConst(s, noSpan) }

// buildSelect prints one letter per x in 0..6 according to a select.
func buildSelect(b *testkit.Builder, withDefault bool, test func(x ir.SymbolID) *ir.Expr) {
	_, p := b.Program("main")
	x := b.Local(p.Scope, "x", b.I4)
	cases := []ir.Case{
		{Values: []*ir.Expr{b.Int(1), b.Int(3)}, Body: []*ir.Stmt{b.Print(str(b, "odd"))}},
		{IsRange: true, Lo: b.Int(4), Hi: b.Int(5), Body: []*ir.Stmt{b.Print(str(b, "mid"))}},
		{IsRange: true, Hi: b.Int(0), Body: []*ir.Stmt{b.Print(str(b, "low"))}},
	}
	var def []*ir.Stmt
	if withDefault {
		def = []*ir.Stmt{b.Print(str(b, "other"))}
	}
	p.Body = []*ir.Stmt{
		b.Do(x, b.Int(0), b.Int(6), nil, b.U.Select(test(x), cases, def, noSpan)),
	}
}

func TestSelectCaseBranchSelection(t *testing.T) {
	tests := []struct {
		name        string
		withDefault bool
		want        []string
	}{
		{name: "with default", withDefault: true, want: []string{"low", "odd", "other", "odd", "mid", "mid", "other"}},
		{name: "without default", want: []string{"low", "odd", "odd", "mid", "mid"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testkit.NewBuilder()
			buildSelect(b, tt.withDefault, func(x ir.SymbolID) *ir.Expr { return b.Ref(x) })
			got := sameOutput(t, b.U, "select_case")
			if !slices.Equal(got, tt.want) {
				t.Fatalf("printed %q, want %q", got, tt.want)
			}
			if n := testkit.Count(b.U, ir.StmtSelect); n != 0 {
				t.Fatalf("%d select statements left", n)
			}
		})
	}
}

func TestSelectCaseEvaluatesSelectorOnce(t *testing.T) {
	b := testkit.NewBuilder()
	buildSelect(b, true, func(x ir.SymbolID) *ir.Expr {
		return b.Bin(ir.OpSub, b.Ref(x), b.Int(1))
	})
	sameOutput(t, b.U, "select_case")

	prog, _ := b.U.Program()
	scope := b.U.Symbol(prog).OwnedScope()
	tmp, ok := b.U.ResolveLocal(scope, "~select")
	if !ok {
		t.Fatalf("selector temporary not declared:\n%s", ir.DumpString(b.U))
	}
	if b.U.VarType(tmp) != b.I4 {
		t.Fatalf("selector temporary has type %s", b.U.Types.String(b.U.VarType(tmp)))
	}
}

func TestSelectCaseUnboundedRangeIsCatchAll(t *testing.T) {
	b := testkit.NewBuilder()
	_, p := b.Program("main")
	x := b.Local(p.Scope, "x", b.I4)
	p.Body = []*ir.Stmt{
		b.Set(b.Ref(x), b.Int(7)),
		b.U.Select(b.Ref(x), []ir.Case{
			{Values: []*ir.Expr{b.Int(1)}, Body: []*ir.Stmt{b.Print(str(b, "one"))}},
			{IsRange: true, Body: []*ir.Stmt{b.Print(str(b, "any"))}},
		}, []*ir.Stmt{b.Print(str(b, "default"))}, noSpan),
	}
	got := sameOutput(t, b.U, "select_case")
	if !slices.Equal(got, []string{"any"}) {
		t.Fatalf("printed %q", got)
	}
	if n := testkit.Count(b.U, ir.StmtIf); n != 1 {
		t.Fatalf("want a single if, got %d", n)
	}
}
