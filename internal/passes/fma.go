package passes

import (
	"irlower/internal/ir"
	"irlower/internal/rewrite"
)

// FMA replaces a real add or subtract whose operand is literally a multiply
// by a call to the fused multiply-add helper _opt_fma_<kind>(a, b, c),
// computing a + b*c.
type FMA struct{}

func (FMA) Name() string { return "fma" }

func (FMA) Run(pc *Context, u *ir.Unit) (bool, error) {
	r := rewrite.NewReplacer()
	r.Skip = func(id ir.SymbolID) bool { return isHelper(u, id) }
	r.On(ir.ExprBinOp, func(slot **ir.Expr, _ ir.ScopeID) error {
		e := *slot
		d := e.Data.(*ir.BinOpData)
		if (d.Op != ir.OpAdd && d.Op != ir.OpSub) || !u.Types.IsReal(e.Type) {
			return nil
		}
		var a, b, c *ir.Expr
		switch {
		case isMul(u, d.Right, e.Type):
			m := d.Right.Data.(*ir.BinOpData)
			a, b, c = d.Left, m.Left, m.Right
			if d.Op == ir.OpSub {
				b = u.Neg(b, b.Span)
			}
		case isMul(u, d.Left, e.Type):
			m := d.Left.Data.(*ir.BinOpData)
			a, b, c = d.Right, m.Left, m.Right
			if d.Op == ir.OpSub {
				a = u.Neg(a, a.Span)
			}
		default:
			return nil
		}
		if a.Type != e.Type || b.Type != e.Type || c.Type != e.Type {
			return nil
		}
		fn, err := fmaHelper(u, e.Type)
		if err != nil {
			return err
		}
		pc.node("fma", u.Name(fn))
		*slot = u.Call(fn, []*ir.Expr{a, b, c}, e.Span)
		return nil
	})
	n, err := rewrite.Exprs(u, r)
	return n > 0, err
}

func isMul(u *ir.Unit, e *ir.Expr, typ ir.TypeID) bool {
	if e.Kind != ir.ExprBinOp || e.Type != typ {
		return false
	}
	return e.Data.(*ir.BinOpData).Op == ir.OpMul
}

func fmaHelper(u *ir.Unit, typ ir.TypeID) (ir.SymbolID, error) {
	h := helperFunc{
		name:   "_opt_fma_" + typeTag(u, typ),
		params: []helperParam{{"a", typ}, {"b", typ}, {"c", typ}},
		result: typ,
		flags:  ir.FuncPure | ir.FuncOptimizationHelper,
	}
	return declareHelper(u, h, func(p []ir.SymbolID, res ir.SymbolID) []*ir.Stmt {
		prod := u.BinOp(ir.OpMul, u.Var(p[1], nowhere), u.Var(p[2], nowhere), typ, nowhere)
		return []*ir.Stmt{
			u.Assign(u.Var(res, nowhere), u.BinOp(ir.OpAdd, u.Var(p[0], nowhere), prod, typ, nowhere), nowhere),
		}
	})
}
