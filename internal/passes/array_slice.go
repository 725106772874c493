package passes

import (
	"fmt"

	"irlower/internal/ir"
	"irlower/internal/rewrite"
	"irlower/internal/source"
)

// ArraySlice copies array sections into temporaries before the statement
// that reads them:
//
//	x = y(a:b:c)   =>   do ~1_v = a, b, c
//	                        ~0_slice((~1_v - a)/c + 1) = y(~1_v)
//	                    end do
//	                    x = ~0_slice
//
// The temporary has extent max((b-a+c)/c, 0) per dimension, folded when
// the bounds are constants. Omitted bounds default to the declared bounds
// of y, an omitted step to 1. Sections on the left of an assignment and in
// while conditions are left alone.
type ArraySlice struct {
	counter int
}

func (*ArraySlice) Name() string { return "array_slice" }

func (p *ArraySlice) Run(pc *Context, u *ir.Unit) (bool, error) {
	p.counter = 0
	t := &rewrite.Transformer{
		Visit: func(em *rewrite.Emitter, s *ir.Stmt, scope ir.ScopeID) error {
			var slots []**ir.Expr
			switch d := s.Data.(type) {
			case *ir.AssignData:
				slots = []**ir.Expr{&d.Value}
				if d.Target.Kind == ir.ExprArrayItem {
					slots = append(slots, d.Target.Children()[1:]...)
				}
			case *ir.WhileData:
			default:
				slots = s.Exprs()
			}
			var pre []*ir.Stmt
			for _, slot := range slots {
				loops, err := p.hoist(pc, u, slot, scope)
				if err != nil {
					return err
				}
				pre = append(pre, loops...)
			}
			em.Emit(pre...)
			em.Emit(s)
			return nil
		},
	}
	n, err := rewrite.Stmts(u, t)
	return n > 0, err
}

// hoist replaces every section below slot, innermost first.
func (p *ArraySlice) hoist(pc *Context, u *ir.Unit, slot **ir.Expr, scope ir.ScopeID) ([]*ir.Stmt, error) {
	e := *slot
	if e == nil {
		return nil, nil
	}
	var pre []*ir.Stmt
	for _, child := range e.Children() {
		loops, err := p.hoist(pc, u, child, scope)
		if err != nil {
			return nil, err
		}
		pre = append(pre, loops...)
	}
	if e.Kind != ir.ExprArraySection {
		return pre, nil
	}
	tmp, loop, err := p.lowerSection(u, e, scope)
	if err != nil {
		return nil, err
	}
	pc.node("array_slice", u.Name(tmp))
	*slot = u.Var(tmp, e.Span)
	return append(pre, loop), nil
}

type sliceDim struct {
	lo, hi, step *ir.Expr
	unit         bool // step is the constant 1
}

func (p *ArraySlice) lowerSection(u *ir.Unit, e *ir.Expr, scope ir.ScopeID) (ir.SymbolID, *ir.Stmt, error) {
	d := e.Data.(*ir.ArraySectionData)
	sp := e.Span
	i4 := u.Types.Integer(4)

	dims := make([]sliceDim, len(d.Ranges))
	tmpDims := make([]ir.Dim, len(d.Ranges))
	for k, r := range d.Ranges {
		sd := sliceDim{lo: r.Start, hi: r.End, step: r.Step}
		if sd.lo == nil {
			sd.lo = declaredBound(u, d.Base, k, false, sp)
		}
		if sd.hi == nil {
			sd.hi = declaredBound(u, d.Base, k, true, sp)
		}
		if sd.step == nil {
			sd.step = u.IntConst(1, i4, sp)
		}
		if v, ok := ir.ConstInt(sd.step); ok && v == 1 {
			sd.unit = true
		}
		if v, ok := ir.ConstInt(sd.step); ok && v == 0 {
			return ir.NoSymbolID, nil, fmt.Errorf("array_slice: zero step in dimension %d", k+1)
		}
		dims[k] = sd
		tmpDims[k] = ir.Dim{Start: u.IntConst(1, i4, sp), Length: extent(u, sd, sp)}
	}

	name := u.UniqueName(scope, fmt.Sprintf("~%d_slice", p.counter))
	p.counter++
	elem := u.Types.Scalar(e.Type)
	tmp, err := u.AddVariable(scope, name, u.Types.Array(elem, tmpDims), ir.IntentLocal, sp)
	if err != nil {
		return ir.NoSymbolID, nil, err
	}

	vars := make([]ir.SymbolID, len(dims))
	for k := range dims {
		if vars[k], err = localInt(u, scope, fmt.Sprintf("~%d_v", k+1), sp); err != nil {
			return ir.NoSymbolID, nil, err
		}
	}

	targetIdx := make([]*ir.Expr, len(dims))
	sourceIdx := make([]*ir.Expr, len(dims))
	for k, sd := range dims {
		sourceIdx[k] = u.Var(vars[k], sp)
		// (v - lo)/step + 1
		off := u.BinOp(ir.OpSub, u.Var(vars[k], sp), u.CloneExpr(sd.lo), i4, sp)
		if !sd.unit {
			off = u.BinOp(ir.OpDiv, off, u.CloneExpr(sd.step), i4, sp)
		}
		targetIdx[k] = u.BinOp(ir.OpAdd, off, u.IntConst(1, i4, sp), i4, sp)
	}
	copyStmt := u.Assign(
		u.ArrayItem(u.Var(tmp, sp), targetIdx, sp),
		u.ArrayItem(u.CloneExpr(d.Base), sourceIdx, sp),
		sp,
	)

	body := []*ir.Stmt{copyStmt}
	var loop *ir.Stmt
	for k := len(dims) - 1; k >= 0; k-- {
		sd := dims[k]
		var step *ir.Expr
		if !sd.unit {
			step = u.CloneExpr(sd.step)
		}
		loop = u.DoLoop(u.Var(vars[k], sp), u.CloneExpr(sd.lo), u.CloneExpr(sd.hi), step, body, sp)
		body = []*ir.Stmt{loop}
	}
	return tmp, loop, nil
}

// declaredBound returns lbound/ubound of base along dimension k, folded to a
// constant when the declaration has constant bounds.
func declaredBound(u *ir.Unit, base *ir.Expr, k int, upper bool, sp source.Span) *ir.Expr {
	i4 := u.Types.Integer(4)
	if ty := u.Types.Get(base.Type); ty != nil && ty.Kind == ir.TypeArray && k < len(ty.Dims) {
		start, okStart := ir.ConstInt(ty.Dims[k].Start)
		length, okLen := ir.ConstInt(ty.Dims[k].Length)
		switch {
		case !upper && okStart:
			return u.IntConst(start, i4, sp)
		case upper && okStart && okLen:
			return u.IntConst(start+length-1, i4, sp)
		}
	}
	return u.ArrayBound(u.CloneExpr(base), k+1, upper, i4, sp)
}

// extent is max((hi - lo + step)/step, 0).
func extent(u *ir.Unit, sd sliceDim, sp source.Span) *ir.Expr {
	i4 := u.Types.Integer(4)
	lo, okLo := ir.ConstInt(sd.lo)
	hi, okHi := ir.ConstInt(sd.hi)
	st, okSt := ir.ConstInt(sd.step)
	if okLo && okHi && okSt {
		n := (hi - lo + st) / st
		if n < 0 {
			n = 0
		}
		return u.IntConst(n, i4, sp)
	}
	n := u.BinOp(ir.OpSub, u.CloneExpr(sd.hi), u.CloneExpr(sd.lo), i4, sp)
	if sd.unit {
		n = u.BinOp(ir.OpAdd, n, u.IntConst(1, i4, sp), i4, sp)
	} else {
		n = u.BinOp(ir.OpAdd, n, u.CloneExpr(sd.step), i4, sp)
		n = u.BinOp(ir.OpDiv, n, u.CloneExpr(sd.step), i4, sp)
	}
	return u.Intrinsic(ir.IntrinsicMax, []*ir.Expr{n, u.IntConst(0, i4, sp)}, i4, sp)
}
