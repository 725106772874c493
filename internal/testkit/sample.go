package testkit

import (
	"irlower/internal/ir"
	"irlower/internal/source"
)

// Sample builds a verified unit that uses every symbol, statement and
// expression kind at least once: a module with a recursive function, an
// overload set, a struct and a named constant, a program importing from the
// module, and a subroutine the program calls before it is declared in
// name order.
func Sample() *ir.Unit {
	b := NewBuilder()
	u := b.U

	modID, mod := b.Module("mathlib")
	u.Symbol(modID).Span = source.Span{Start: 0, End: 120}
	mod.Deps = append(mod.Deps, u.Strings.Intern("iso_fortran_env"))

	sqID, sq := b.Func(mod.Scope, "square", ir.AccessPublic)
	x := b.Param(sq, "x", b.R8, ir.IntentIn)
	r := b.Result(sq, "r", b.R8)
	sq.Flags = ir.FuncPure
	sq.Body = []*ir.Stmt{b.Set(b.Ref(r), b.Bin(ir.OpMul, b.Ref(x), b.Ref(x)))}
	u.Symbol(sqID).Span = source.Span{Start: 10, End: 60}

	factID, fact := b.Func(mod.Scope, "fact", ir.AccessPrivate)
	n := b.Param(fact, "n", b.I4, ir.IntentIn)
	fr := b.Result(fact, "res", b.I4)
	fact.Body = []*ir.Stmt{
		b.If(b.Cmp(ir.CmpLtE, b.Ref(n), b.Int(1)),
			[]*ir.Stmt{b.Set(b.Ref(fr), b.Int(1))},
			[]*ir.Stmt{b.Set(b.Ref(fr), b.Bin(ir.OpMul, b.Ref(n),
				b.Call(factID, b.Bin(ir.OpSub, b.Ref(n), b.Int(1)))))}),
	}
	must(u.AddGeneric(mod.Scope, "sq", []ir.SymbolID{sqID}, source.Span{}))

	pointID, point := must3(u.AddAggregate(mod.Scope, ir.SymStruct, "point", source.Span{}))
	px := b.Local(point.Scope, "x", b.R8)
	py := b.Local(point.Scope, "y", b.R8)
	point.Members = []ir.SymbolID{px, py}

	pi := b.Local(mod.Scope, "pi", b.R8)
	piData := u.Symbol(pi).Data.(*ir.VariableData)
	piData.Storage = ir.StorageParameter
	piData.Init = b.Real(3.25)

	repID, rep := b.Func(u.Global, "report", ir.AccessPublic)
	v := b.Param(rep, "v", b.R8, ir.IntentIn)
	rep.ABI = ir.ABIBindC
	rep.Body = []*ir.Stmt{b.Print(b.U.StringConst("report", source.Span{}), b.Ref(v)), u.Return(source.Span{})}

	_, prog := b.Program("main")
	prog.Deps = append(prog.Deps, u.Strings.Intern("mathlib"))
	sqAlias := must(u.AddExternal(prog.Scope, "square", "mathlib", "square", sqID, source.Span{}))
	i := b.Local(prog.Scope, "i", b.I4)
	k := b.Local(prog.Scope, "k", b.I4)
	s := b.Local(prog.Scope, "s", b.R8)
	flag := b.Local(prog.Scope, "flag", b.L)
	a := b.Local(prog.Scope, "a", b.Array(b.R8, 1, 5))
	p := b.Local(prog.Scope, "p", u.Types.Aggregate(ir.TypeStruct, pointID))

	blkID, blk := must3(u.AddBlock(prog.Scope, source.Span{}))
	t := b.Local(blk.Scope, "t", b.I4)
	blk.Body = []*ir.Stmt{
		b.Set(b.Ref(t), b.Bin(ir.OpAdd,
			b.Bin(ir.OpAdd,
				u.ArrayBound(b.Ref(a), 1, false, b.I4, source.Span{}),
				u.ArrayBound(b.Ref(a), 1, true, b.I4, source.Span{})),
			u.ArraySize(b.Ref(a), 0, b.I4, source.Span{}))),
		b.Print(b.Ref(t)),
	}

	sel := u.Select(b.Ref(k), []ir.Case{
		{Values: []*ir.Expr{b.Int(1), b.Int(2)}, Body: []*ir.Stmt{b.Print(b.Int(1))}},
		{IsRange: true, Lo: b.Int(3), Body: []*ir.Stmt{b.Print(b.Int(3))}},
	}, []*ir.Stmt{b.Print(b.Int(0))}, source.Span{})

	prog.Body = []*ir.Stmt{
		b.Set(b.Ref(s), b.Real(0)),
		b.Do(i, b.Int(1), b.Int(5), nil,
			b.Set(b.Item(a, b.Ref(i)), u.Cast(ir.CastIntToReal, b.Ref(i), b.R8, source.Span{})),
			b.Set(b.Ref(s), b.Bin(ir.OpAdd, b.Ref(s), b.Call(sqAlias, b.Item(a, b.Ref(i)))))),
		b.Print(b.Section(a, b.Int(2), b.Int(4), b.Int(1))),
		u.While(u.Not(b.Ref(flag), source.Span{}), []*ir.Stmt{b.Set(b.Ref(flag), b.Bool(true))}, source.Span{}),
		b.If(u.Logical(ir.LogAnd,
			b.Cmp(ir.CmpGt, b.Ref(i), b.Int(3)),
			b.Cmp(ir.CmpGtE, b.Ref(s), b.Real(1)), source.Span{}),
			[]*ir.Stmt{b.Print(u.StringConst("big", source.Span{}))},
			[]*ir.Stmt{b.Print(u.Neg(b.Ref(s), source.Span{}))}),
		b.Do(k, b.Int(1), b.Int(10), b.Int(1),
			b.If(b.Cmp(ir.CmpEq, b.Ref(k), b.Int(2)), []*ir.Stmt{u.Cycle(source.Span{})}, nil),
			b.If(b.Cmp(ir.CmpEq, b.Ref(k), b.Int(4)), []*ir.Stmt{u.Exit(source.Span{})}, nil)),
		sel,
		u.BlockCall(blkID, source.Span{}),
		b.Set(u.Member(b.Ref(p), px, source.Span{}), b.Real(1.5)),
		b.Print(b.Intrinsic(ir.IntrinsicAbs, b.I4, u.Neg(b.Int(2), source.Span{}))),
		b.CallStmt(repID, b.Ref(s)),
	}
	return u
}

func must3[A, B any](a A, b B, err error) (A, B) {
	must(a, err)
	return a, b
}
