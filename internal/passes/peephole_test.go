package passes_test

import (
	"context"
	"slices"
	"testing"

	"irlower/internal/config"
	"irlower/internal/ir"
	"irlower/internal/passes"
	"irlower/internal/testkit"
)

// buildArith prints expressions over real(8) variables a=1.5, b=-2, c=4.
func buildArith(b *testkit.Builder, exprs func(a, bb, c ir.SymbolID) []*ir.Expr) {
	_, p := b.Program("main")
	a := b.Local(p.Scope, "a", b.R8)
	bv := b.Local(p.Scope, "b", b.R8)
	c := b.Local(p.Scope, "c", b.R8)
	p.Body = []*ir.Stmt{
		b.Set(b.Ref(a), b.Real(1.5)),
		b.Set(b.Ref(bv), b.Real(-2)),
		b.Set(b.Ref(c), b.Real(4)),
	}
	for _, e := range exprs(a, bv, c) {
		p.Body = append(p.Body, b.Print(e))
	}
}

func callsTo(u *ir.Unit, name string) int {
	n := 0
	walkCalls(u, func(callee ir.SymbolID) {
		if u.Name(callee) == name {
			n++
		}
	})
	return n
}

func walkCalls(u *ir.Unit, fn func(ir.SymbolID)) {
	for _, id := range u.SortedSymbols(u.Global) {
		body := u.Symbol(id).Body()
		if body == nil {
			continue
		}
		for _, s := range *body {
			for _, slot := range s.Exprs() {
				var visit func(e *ir.Expr)
				visit = func(e *ir.Expr) {
					if e == nil {
						return
					}
					if d, ok := e.Data.(*ir.CallData); ok {
						fn(d.Callee)
					}
					for _, c := range e.Children() {
						visit(*c)
					}
				}
				visit(*slot)
			}
		}
	}
}

func TestDivToMul(t *testing.T) {
	b := testkit.NewBuilder()
	buildArith(b, func(a, bv, c ir.SymbolID) []*ir.Expr {
		return []*ir.Expr{
			b.Bin(ir.OpDiv, b.Ref(a), b.Real(4)),
			b.Bin(ir.OpDiv, b.Ref(a), b.Ref(c)),
			b.Bin(ir.OpDiv, b.Ref(a), b.Real(0)),
			b.Bin(ir.OpDiv, b.Int(7), b.Int(2)),
		}
	})
	got := sameOutput(t, b.U, "div_to_mul")
	if got[0] != "0.375" || got[3] != "3" {
		t.Fatalf("printed %q", got)
	}
	divs := 0
	muls := 0
	prog, _ := b.U.Program()
	for _, s := range *b.U.Symbol(prog).Body() {
		d, ok := s.Data.(*ir.PrintData)
		if !ok {
			continue
		}
		switch d.Args[0].Data.(*ir.BinOpData).Op {
		case ir.OpDiv:
			divs++
		case ir.OpMul:
			muls++
		}
	}
	if muls != 1 || divs != 3 {
		t.Fatalf("want 1 multiply and 3 divisions, got %d and %d", muls, divs)
	}
}

func TestFMA(t *testing.T) {
	b := testkit.NewBuilder()
	mul := func(l, r ir.SymbolID) *ir.Expr { return b.Bin(ir.OpMul, b.Ref(l), b.Ref(r)) }
	buildArith(b, func(a, bv, c ir.SymbolID) []*ir.Expr {
		return []*ir.Expr{
			b.Bin(ir.OpAdd, b.Ref(a), mul(bv, c)),
			b.Bin(ir.OpAdd, mul(bv, c), b.Ref(a)),
			b.Bin(ir.OpSub, b.Ref(a), mul(bv, c)),
			b.Bin(ir.OpSub, mul(bv, c), b.Ref(a)),
			b.Bin(ir.OpAdd, b.Ref(a), b.Ref(c)),
		}
	})
	got := sameOutput(t, b.U, "fma")
	want := []string{"-6.5", "-6.5", "9.5", "-9.5", "5.5"}
	if !slices.Equal(got, want) {
		t.Fatalf("printed %q, want %q", got, want)
	}
	if n := callsTo(b.U, "_opt_fma_r8"); n != 4 {
		t.Fatalf("want 4 fma calls, got %d", n)
	}
	helper, ok := b.U.ResolveLocal(b.U.Global, "_opt_fma_r8")
	if !ok {
		t.Fatalf("fma helper not declared")
	}
	if fl := b.U.Function(helper).Flags; !fl.HasFlag(ir.FuncOptimizationHelper) || !fl.HasFlag(ir.FuncGenerated) {
		t.Fatalf("helper flags %v", fl.Strings())
	}

	// the helper body is a + b*c itself and must be left alone
	pc := passes.NewContext(passes.DefaultOptions(), nil, nil)
	if changed, err := (passes.FMA{}).Run(pc, b.U); err != nil || changed {
		t.Fatalf("second run: changed=%v err=%v", changed, err)
	}
}

func TestFMARequiresExactShape(t *testing.T) {
	b := testkit.NewBuilder()
	buildArith(b, func(a, bv, c ir.SymbolID) []*ir.Expr {
		return []*ir.Expr{
			// integer arithmetic
			b.Bin(ir.OpAdd, b.Int(1), b.Bin(ir.OpMul, b.Int(2), b.Int(3))),
			// the multiply is hidden behind a negation
			b.Bin(ir.OpAdd, b.Ref(a), b.U.Neg(b.Bin(ir.OpMul, b.Ref(bv), b.Ref(c)), noSpan)),
		}
	})
	sameOutput(t, b.U, "fma")
	if n := callsTo(b.U, "_opt_fma_r8"); n != 0 {
		t.Fatalf("fma fired %d times on inexact shapes", n)
	}
}

func TestSignFromValue(t *testing.T) {
	b := testkit.NewBuilder()
	sign := func(x ir.SymbolID) *ir.Expr { return b.Intrinsic(ir.IntrinsicSign, b.R8, b.Real(1), b.Ref(x)) }
	buildArith(b, func(a, bv, c ir.SymbolID) []*ir.Expr {
		return []*ir.Expr{
			b.Bin(ir.OpMul, b.Ref(a), sign(bv)),
			b.Bin(ir.OpMul, sign(c), b.Ref(a)),
			b.Bin(ir.OpMul, b.Ref(a), b.Intrinsic(ir.IntrinsicSign, b.R8, b.Real(2), b.Ref(bv))),
		}
	})
	got := sameOutput(t, b.U, "sign_from_value")
	want := []string{"-1.5", "1.5", "-3"}
	if !slices.Equal(got, want) {
		t.Fatalf("printed %q, want %q", got, want)
	}
	if n := callsTo(b.U, "_opt_sign_from_value_r8"); n != 2 {
		t.Fatalf("want 2 helper calls, got %d", n)
	}
	if n := testkit.CountExprs(b.U, ir.ExprIntrinsic); n != 1 {
		t.Fatalf("want the sign(2.0, b) call untouched, %d intrinsics left", n)
	}
}

func TestPeepholesOnlyInFastMode(t *testing.T) {
	for _, fast := range []bool{false, true} {
		b := testkit.NewBuilder()
		buildArith(b, func(a, bv, c ir.SymbolID) []*ir.Expr {
			return []*ir.Expr{b.Bin(ir.OpAdd, b.Ref(a), b.Bin(ir.OpMul, b.Ref(bv), b.Ref(c)))}
		})
		cfg := config.Default()
		cfg.Pipeline.Fast = fast
		m, err := passes.NewManager(cfg, nil)
		if err != nil {
			t.Fatalf("NewManager: %v", err)
		}
		before := run(t, b.U)
		if err := m.Run(context.Background(), b.U); err != nil {
			t.Fatalf("fast=%v: %v", fast, err)
		}
		if after := run(t, b.U); !slices.Equal(before, after) {
			t.Fatalf("fast=%v: output changed %q -> %q", fast, before, after)
		}
		want := 0
		if fast {
			want = 1
		}
		if n := callsTo(b.U, "_opt_fma_r8"); n != want {
			t.Fatalf("fast=%v: %d fma calls, want %d", fast, n, want)
		}
	}
}
