package passes

import (
	"irlower/internal/ir"
	"irlower/internal/rewrite"
)

// SignFromValue rewrites a * sign(1.0, b) on reals, in either operand order,
// into _opt_sign_from_value_<kind>(a, b), which flips a when b is negative
// instead of multiplying.
type SignFromValue struct{}

func (SignFromValue) Name() string { return "sign_from_value" }

func (SignFromValue) Run(pc *Context, u *ir.Unit) (bool, error) {
	r := rewrite.NewReplacer()
	r.Skip = func(id ir.SymbolID) bool { return isHelper(u, id) }
	r.On(ir.ExprBinOp, func(slot **ir.Expr, _ ir.ScopeID) error {
		e := *slot
		d := e.Data.(*ir.BinOpData)
		if d.Op != ir.OpMul || !u.Types.IsReal(e.Type) {
			return nil
		}
		a, b := d.Left, unitSign(u, d.Right)
		if b == nil {
			a, b = d.Right, unitSign(u, d.Left)
		}
		if b == nil || a.Type != e.Type || b.Type != e.Type {
			return nil
		}
		fn, err := signHelper(u, e.Type)
		if err != nil {
			return err
		}
		pc.node("sign_from_value", u.Name(fn))
		*slot = u.Call(fn, []*ir.Expr{a, b}, e.Span)
		return nil
	})
	n, err := rewrite.Exprs(u, r)
	return n > 0, err
}

// unitSign returns b when e is exactly sign(1.0, b).
func unitSign(u *ir.Unit, e *ir.Expr) *ir.Expr {
	if e.Kind != ir.ExprIntrinsic {
		return nil
	}
	d := e.Data.(*ir.IntrinsicData)
	if d.ID != ir.IntrinsicSign || len(d.Args) != 2 || !u.Types.IsReal(d.Args[0].Type) {
		return nil
	}
	if v, ok := ir.ConstReal(d.Args[0]); !ok || v != 1 {
		return nil
	}
	return d.Args[1]
}

func signHelper(u *ir.Unit, typ ir.TypeID) (ir.SymbolID, error) {
	h := helperFunc{
		name:   "_opt_sign_from_value_" + typeTag(u, typ),
		params: []helperParam{{"a", typ}, {"b", typ}},
		result: typ,
		flags:  ir.FuncPure | ir.FuncOptimizationHelper,
	}
	// res = a; if (b < 0) res = -a
	return declareHelper(u, h, func(p []ir.SymbolID, res ir.SymbolID) []*ir.Stmt {
		return []*ir.Stmt{
			u.Assign(u.Var(res, nowhere), u.Var(p[0], nowhere), nowhere),
			u.If(u.Compare(ir.CmpLt, u.Var(p[1], nowhere), zeroOf(u, typ, nowhere), nowhere),
				[]*ir.Stmt{u.Assign(u.Var(res, nowhere), u.Neg(u.Var(p[0], nowhere), nowhere), nowhere)},
				nil, nowhere),
		}
	})
}
