package passes

import (
	"irlower/internal/ir"
	"irlower/internal/rewrite"
	"irlower/internal/source"
)

// SelectCase turns select statements into right-nested if chains.
//
//	select (a)                 if (a == v1 .or. a == v2) then
//	case (v1, v2): A               A
//	case (lo:hi):  B     =>    else if (lo <= a .and. a <= hi) then
//	case default:  C               B
//	end select                 else
//	                               C
//
// Without a default the innermost if has no else branch, so no arm runs
// when nothing matches.
type SelectCase struct{}

func (SelectCase) Name() string { return "select_case" }

func (SelectCase) Run(pc *Context, u *ir.Unit) (bool, error) {
	t := &rewrite.Transformer{
		Visit: func(em *rewrite.Emitter, s *ir.Stmt, scope ir.ScopeID) error {
			if s.Kind != ir.StmtSelect {
				em.Emit(s)
				return nil
			}
			out, err := lowerSelect(u, s, scope)
			if err != nil {
				return err
			}
			pc.node("select_case", "")
			em.Emit(out...)
			return nil
		},
	}
	n, err := rewrite.Stmts(u, t)
	return n > 0, err
}

func lowerSelect(u *ir.Unit, s *ir.Stmt, scope ir.ScopeID) ([]*ir.Stmt, error) {
	d := s.Data.(*ir.SelectData)
	sp := s.Span
	var pre []*ir.Stmt
	test := d.Test
	if test.Kind != ir.ExprVar && !test.Kind.IsConst() {
		// evaluate the selector once
		tmp, err := newTemp(u, scope, "~select", test.Type, sp)
		if err != nil {
			return nil, err
		}
		pre = append(pre, u.Assign(u.Var(tmp, sp), test, sp))
		test = u.Var(tmp, sp)
	}
	tail := d.Default
	for i := len(d.Cases) - 1; i >= 0; i-- {
		c := &d.Cases[i]
		cond := caseCond(u, c, test, sp)
		if cond == nil {
			// a range with neither bound matches everything
			tail = c.Body
			continue
		}
		tail = []*ir.Stmt{u.If(cond, c.Body, tail, sp)}
	}
	return append(pre, tail...), nil
}

func caseCond(u *ir.Unit, c *ir.Case, test *ir.Expr, sp source.Span) *ir.Expr {
	x := func() *ir.Expr { return u.CloneExpr(test) }
	if c.IsRange {
		var lo, hi *ir.Expr
		if c.Lo != nil {
			lo = u.Compare(ir.CmpLtE, c.Lo, x(), sp)
		}
		if c.Hi != nil {
			hi = u.Compare(ir.CmpLtE, x(), c.Hi, sp)
		}
		switch {
		case lo != nil && hi != nil:
			return u.Logical(ir.LogAnd, lo, hi, sp)
		case lo != nil:
			return lo
		default:
			return hi
		}
	}
	var cond *ir.Expr
	for _, v := range c.Values {
		eq := u.Compare(ir.CmpEq, x(), v, sp)
		if cond == nil {
			cond = eq
			continue
		}
		cond = u.Logical(ir.LogOr, cond, eq, sp)
	}
	if cond == nil {
		// an arm without values never matches
		return u.LogicalConst(false, sp)
	}
	return cond
}
