package ir

// CloneExpr deep-copies e into the unit's pools. Symbols are shared.
func (u *Unit) CloneExpr(e *Expr) *Expr {
	if e == nil {
		return nil
	}
	out := u.NewExpr(e.Kind, e.Type, e.Span, nil)
	if e.Value != nil {
		v := *e.Value
		out.Value = &v
	}
	switch d := e.Data.(type) {
	case nil:
	case *VarData:
		out.Data = &VarData{Sym: d.Sym}
	case *BinOpData:
		out.Data = &BinOpData{Op: d.Op, Left: u.CloneExpr(d.Left), Right: u.CloneExpr(d.Right)}
	case *CompareData:
		out.Data = &CompareData{Op: d.Op, Left: u.CloneExpr(d.Left), Right: u.CloneExpr(d.Right)}
	case *LogicalData:
		out.Data = &LogicalData{Op: d.Op, Left: u.CloneExpr(d.Left), Right: u.CloneExpr(d.Right)}
	case *UnaryData:
		out.Data = &UnaryData{Arg: u.CloneExpr(d.Arg)}
	case *CastData:
		out.Data = &CastData{Kind: d.Kind, Arg: u.CloneExpr(d.Arg)}
	case *CallData:
		out.Data = &CallData{Callee: d.Callee, Args: u.CloneExprs(d.Args)}
	case *IntrinsicData:
		out.Data = &IntrinsicData{ID: d.ID, Args: u.CloneExprs(d.Args)}
	case *ArrayItemData:
		out.Data = &ArrayItemData{Base: u.CloneExpr(d.Base), Indices: u.CloneExprs(d.Indices)}
	case *ArraySectionData:
		ranges := make([]Range, len(d.Ranges))
		for i, r := range d.Ranges {
			ranges[i] = Range{Start: u.CloneExpr(r.Start), End: u.CloneExpr(r.End), Step: u.CloneExpr(r.Step)}
		}
		out.Data = &ArraySectionData{Base: u.CloneExpr(d.Base), Ranges: ranges}
	case *ArrayBoundData:
		out.Data = &ArrayBoundData{Base: u.CloneExpr(d.Base), Dim: d.Dim, Upper: d.Upper}
	case *ArraySizeData:
		out.Data = &ArraySizeData{Base: u.CloneExpr(d.Base), Dim: d.Dim}
	case *MemberData:
		out.Data = &MemberData{Base: u.CloneExpr(d.Base), Member: d.Member}
	default:
		panic("ir: clone: unexpected payload")
	}
	return out
}

// CloneExprs deep-copies a list of expressions.
func (u *Unit) CloneExprs(es []*Expr) []*Expr {
	if es == nil {
		return nil
	}
	out := make([]*Expr, len(es))
	for i, e := range es {
		out[i] = u.CloneExpr(e)
	}
	return out
}
