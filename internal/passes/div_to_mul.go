package passes

import (
	"irlower/internal/ir"
	"irlower/internal/rewrite"
)

// DivToMul turns division by a non-zero real constant into multiplication by
// its reciprocal.
type DivToMul struct{}

func (DivToMul) Name() string { return "div_to_mul" }

func (DivToMul) Run(pc *Context, u *ir.Unit) (bool, error) {
	r := rewrite.NewReplacer()
	r.Skip = func(id ir.SymbolID) bool { return isHelper(u, id) }
	r.On(ir.ExprBinOp, func(slot **ir.Expr, _ ir.ScopeID) error {
		e := *slot
		d := e.Data.(*ir.BinOpData)
		if d.Op != ir.OpDiv || !u.Types.IsReal(e.Type) || !u.Types.IsReal(d.Right.Type) {
			return nil
		}
		c, ok := ir.ConstReal(d.Right)
		if !ok || c == 0 {
			return nil
		}
		pc.node("div_to_mul", d.Right.Value.String())
		*slot = u.BinOp(ir.OpMul, d.Left, u.RealConst(1/c, d.Right.Type, d.Right.Span), e.Type, e.Span)
		return nil
	})
	n, err := rewrite.Exprs(u, r)
	return n > 0, err
}
