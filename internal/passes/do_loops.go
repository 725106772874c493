package passes

import (
	"errors"

	"irlower/internal/ir"
	"irlower/internal/rewrite"
	"irlower/internal/source"
)

// DoLoops replaces counted loops by while loops:
//
//	do i = a, b, c            i = a - c
//	    body           =>     while (i + c <= b)
//	end do                        i = i + c
//	                              body
//
// The comparison is >= when c is a negative constant. A step that is not a
// compile-time constant selects the comparison at run time.
type DoLoops struct{}

func (DoLoops) Name() string     { return "do_loops" }
func (DoLoops) FixedPoint() bool { return true }

// ErrLoopVar is returned for loops whose variable is not a plain variable.
var ErrLoopVar = errors.New("do loop variable must be a variable reference")

func (p DoLoops) Run(pc *Context, u *ir.Unit) (bool, error) {
	t := &rewrite.Transformer{
		Visit: func(em *rewrite.Emitter, s *ir.Stmt, scope ir.ScopeID) error {
			if s.Kind != ir.StmtDoLoop {
				em.Emit(s)
				return nil
			}
			out, err := lowerDoLoop(u, s)
			if err != nil {
				return err
			}
			pc.node("do_loops", u.Name(s.Data.(*ir.DoLoopData).Var.Data.(*ir.VarData).Sym))
			em.Emit(out...)
			return nil
		},
	}
	n, err := rewrite.Stmts(u, t)
	return n > 0, err
}

func lowerDoLoop(u *ir.Unit, s *ir.Stmt) ([]*ir.Stmt, error) {
	d := s.Data.(*ir.DoLoopData)
	if d.Var == nil || d.Var.Kind != ir.ExprVar {
		return nil, ErrLoopVar
	}
	sp := s.Span
	typ := d.Var.Type
	step := d.Step
	if step == nil {
		step = oneOf(u, typ, sp)
	}
	v := func() *ir.Expr { return u.CloneExpr(d.Var) }
	c := func() *ir.Expr { return u.CloneExpr(step) }

	init := u.Assign(v(), u.BinOp(ir.OpSub, u.CloneExpr(d.Start), c(), typ, sp), sp)
	next := func() *ir.Expr { return u.BinOp(ir.OpAdd, v(), c(), typ, sp) }

	var cond *ir.Expr
	switch sign, known := stepSign(step); {
	case known && sign > 0:
		cond = u.Compare(ir.CmpLtE, next(), u.CloneExpr(d.End), sp)
	case known && sign < 0:
		cond = u.Compare(ir.CmpGtE, next(), u.CloneExpr(d.End), sp)
	default:
		// (c > 0 .and. i+c <= b) .or. (c <= 0 .and. i+c >= b)
		zero := func() *ir.Expr { return zeroOf(u, step.Type, sp) }
		up := u.Logical(ir.LogAnd,
			u.Compare(ir.CmpGt, c(), zero(), sp),
			u.Compare(ir.CmpLtE, next(), u.CloneExpr(d.End), sp), sp)
		down := u.Logical(ir.LogAnd,
			u.Compare(ir.CmpLtE, c(), zero(), sp),
			u.Compare(ir.CmpGtE, next(), u.CloneExpr(d.End), sp), sp)
		cond = u.Logical(ir.LogOr, up, down, sp)
	}

	body := make([]*ir.Stmt, 0, len(d.Body)+1)
	body = append(body, u.Assign(v(), next(), sp))
	body = append(body, d.Body...)
	return []*ir.Stmt{init, u.While(cond, body, sp)}, nil
}

// stepSign evaluates a constant (possibly negated) step.
func stepSign(step *ir.Expr) (int, bool) {
	if v, ok := ir.ConstInt(step); ok {
		return sign64(float64(v)), v != 0
	}
	if v, ok := ir.ConstReal(step); ok {
		return sign64(v), v != 0
	}
	return 0, false
}

func sign64(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func zeroOf(u *ir.Unit, typ ir.TypeID, sp source.Span) *ir.Expr {
	if u.Types.IsReal(typ) {
		return u.RealConst(0, typ, sp)
	}
	return u.IntConst(0, typ, sp)
}
