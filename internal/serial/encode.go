package serial

import (
	"fmt"

	"irlower/internal/arena"
	"irlower/internal/ir"
	"irlower/internal/source"
)

// Encode writes the global scope of u, and everything reachable from it, to
// w and flushes it.
func Encode(w Writer, u *ir.Unit) error {
	e := &encoder{w: w, u: u}
	e.scope(u.Global)
	if e.err != nil {
		return e.err
	}
	return w.Flush()
}

type encoder struct {
	w   Writer
	u   *ir.Unit
	err error
}

func (e *encoder) failf(format string, args ...any) {
	if e.err == nil {
		e.err = fmt.Errorf("serial: encode: "+format, args...)
	}
}

func (e *encoder) ok() bool { return e.err == nil && e.w.Err() == nil }

func (e *encoder) scope(id ir.ScopeID) {
	sc := e.u.Scope(id)
	if sc == nil {
		e.failf("invalid scope %d", id)
		return
	}
	var alive []ir.SymbolID
	for _, sym := range e.u.SortedSymbols(id) {
		s := e.u.Symbol(sym)
		if s.Flags&ir.SymPlaceholder != 0 {
			e.failf("symbol %q is declared but never defined", e.u.Name(sym))
			return
		}
		if s.Alive() {
			alive = append(alive, sym)
		}
	}
	e.w.Int64(int64(sc.Counter)) //nolint:gosec // counters stay far below 2^63
	e.w.Int64(int64(len(alive)))
	for _, sym := range alive {
		if !e.ok() {
			return
		}
		e.symbol(sym)
	}
}

func (e *encoder) span(sp source.Span) {
	e.w.Int64(int64(sp.File))
	e.w.Int64(int64(sp.Start))
	e.w.Int64(int64(sp.End))
}

func (e *encoder) bool(v bool) {
	if v {
		e.w.Uint8(1)
		return
	}
	e.w.Uint8(0)
}

func (e *encoder) str(id arena.StrID) {
	e.w.String(e.u.Strings.MustLookup(id))
}

func (e *encoder) strs(ids []arena.StrID) {
	e.w.Int64(int64(len(ids)))
	for _, id := range ids {
		e.str(id)
	}
}

// ref writes a symbol reference; NoSymbolID is written as kind 0.
func (e *encoder) ref(id ir.SymbolID) {
	if !id.IsValid() {
		e.w.Int64(0)
		e.w.Uint8(uint8(ir.SymInvalid))
		return
	}
	sym := e.u.Symbol(id)
	if !sym.Alive() {
		e.failf("reference to dead symbol %q", e.u.Name(id))
		return
	}
	sc := e.u.Scope(sym.Parent)
	if sc == nil {
		e.failf("symbol %q has no scope", e.u.Name(id))
		return
	}
	e.w.Int64(int64(sc.Counter)) //nolint:gosec // counters stay far below 2^63
	e.w.Uint8(uint8(sym.Kind))
	e.str(sym.Name)
}

func (e *encoder) refs(ids []ir.SymbolID) {
	e.w.Int64(int64(len(ids)))
	for _, id := range ids {
		e.ref(id)
	}
}

func (e *encoder) symbol(id ir.SymbolID) {
	sym := e.u.Symbol(id)
	e.w.Uint8(uint8(sym.Kind))
	e.str(sym.Name)
	e.span(sym.Span)
	switch d := sym.Data.(type) {
	case *ir.VariableData:
		e.typ(d.Type)
		e.w.Uint8(uint8(d.Intent))
		e.w.Uint8(uint8(d.Storage))
		e.w.Uint8(uint8(d.Access))
		e.w.Uint8(uint8(d.ABI))
		e.expr(d.Init)
	case *ir.FunctionData:
		e.scope(d.Scope)
		e.refs(d.Params)
		e.ref(d.Return)
		e.body(d.Body)
		e.w.Uint8(uint8(d.ABI))
		e.w.Uint8(uint8(d.Access))
		e.w.Uint8(uint8(d.Flags))
		e.strs(d.Deps)
	case *ir.ProgramData:
		e.scope(d.Scope)
		e.body(d.Body)
		e.strs(d.Deps)
	case *ir.ModuleData:
		e.scope(d.Scope)
		e.strs(d.Deps)
		e.bool(d.LoadedFromCache)
	case *ir.GenericProcData:
		e.refs(d.Procs)
		e.w.Uint8(uint8(d.Access))
	case *ir.ExternalData:
		// Target is not written: it may live outside this stream and is
		// found again by name after loading.
		e.str(d.Module)
		e.str(d.Original)
		e.w.Uint8(uint8(d.Access))
	case *ir.AggregateData:
		e.scope(d.Scope)
		e.refs(d.Members)
		e.w.Uint8(uint8(d.Access))
	case *ir.BlockData:
		e.scope(d.Scope)
		e.body(d.Body)
	default:
		e.failf("symbol %q: unsupported payload %T", e.u.Name(id), sym.Data)
	}
}

func (e *encoder) typ(id ir.TypeID) {
	t := e.u.Types.Get(id)
	if t == nil {
		e.w.Uint8(uint8(ir.TypeInvalid))
		return
	}
	e.w.Uint8(uint8(t.Kind))
	switch t.Kind {
	case ir.TypeArray:
		e.typ(t.Elem)
		e.w.Int64(int64(len(t.Dims)))
		for _, dim := range t.Dims {
			e.expr(dim.Start)
			e.expr(dim.Length)
		}
	case ir.TypeStruct, ir.TypeUnion, ir.TypeEnum:
		e.ref(t.Decl)
	default:
		e.w.Uint8(t.Width)
	}
}

func (e *encoder) value(v *ir.Value) {
	if v == nil {
		e.w.Uint8(uint8(ir.ValueInvalid))
		return
	}
	e.w.Uint8(uint8(v.Kind))
	switch v.Kind {
	case ir.ValueInt:
		e.w.Int64(v.Int)
	case ir.ValueReal:
		e.w.Float64(v.Real)
	case ir.ValueLogical:
		e.bool(v.Bool)
	case ir.ValueString:
		e.w.String(v.Str)
	}
}

func (e *encoder) exprs(es []*ir.Expr) {
	e.w.Int64(int64(len(es)))
	for _, x := range es {
		e.expr(x)
	}
}

func (e *encoder) expr(x *ir.Expr) {
	if !e.ok() {
		return
	}
	if x == nil {
		e.w.Uint8(uint8(ir.ExprInvalid))
		return
	}
	e.w.Uint8(uint8(x.Kind))
	e.typ(x.Type)
	e.span(x.Span)
	e.value(x.Value)
	switch d := x.Data.(type) {
	case nil:
	case *ir.VarData:
		e.ref(d.Sym)
	case *ir.BinOpData:
		e.w.Uint8(uint8(d.Op))
		e.expr(d.Left)
		e.expr(d.Right)
	case *ir.CompareData:
		e.w.Uint8(uint8(d.Op))
		e.expr(d.Left)
		e.expr(d.Right)
	case *ir.LogicalData:
		e.w.Uint8(uint8(d.Op))
		e.expr(d.Left)
		e.expr(d.Right)
	case *ir.UnaryData:
		e.expr(d.Arg)
	case *ir.CastData:
		e.w.Uint8(uint8(d.Kind))
		e.expr(d.Arg)
	case *ir.CallData:
		e.ref(d.Callee)
		e.exprs(d.Args)
	case *ir.IntrinsicData:
		e.w.Uint8(uint8(d.ID))
		e.exprs(d.Args)
	case *ir.ArrayItemData:
		e.expr(d.Base)
		e.exprs(d.Indices)
	case *ir.ArraySectionData:
		e.expr(d.Base)
		e.w.Int64(int64(len(d.Ranges)))
		for _, r := range d.Ranges {
			e.expr(r.Start)
			e.expr(r.End)
			e.expr(r.Step)
		}
	case *ir.ArrayBoundData:
		e.expr(d.Base)
		e.w.Int64(int64(d.Dim))
		e.bool(d.Upper)
	case *ir.ArraySizeData:
		e.expr(d.Base)
		e.w.Int64(int64(d.Dim))
	case *ir.MemberData:
		e.expr(d.Base)
		e.ref(d.Member)
	default:
		e.failf("expression %s: unsupported payload %T", x.Kind, x.Data)
	}
}

func (e *encoder) body(stmts []*ir.Stmt) {
	e.w.Int64(int64(len(stmts)))
	for _, s := range stmts {
		e.stmt(s)
	}
}

func (e *encoder) stmt(s *ir.Stmt) {
	if !e.ok() {
		return
	}
	if s == nil {
		e.failf("nil statement")
		return
	}
	e.w.Uint8(uint8(s.Kind))
	e.span(s.Span)
	switch d := s.Data.(type) {
	case nil:
	case *ir.AssignData:
		e.expr(d.Target)
		e.expr(d.Value)
	case *ir.CallStmtData:
		e.ref(d.Callee)
		e.exprs(d.Args)
	case *ir.DoLoopData:
		e.expr(d.Var)
		e.expr(d.Start)
		e.expr(d.End)
		e.expr(d.Step)
		e.body(d.Body)
	case *ir.WhileData:
		e.expr(d.Cond)
		e.body(d.Body)
	case *ir.IfData:
		e.expr(d.Cond)
		e.body(d.Then)
		e.body(d.Else)
	case *ir.SelectData:
		e.expr(d.Test)
		e.w.Int64(int64(len(d.Cases)))
		for _, c := range d.Cases {
			e.bool(c.IsRange)
			e.exprs(c.Values)
			e.expr(c.Lo)
			e.expr(c.Hi)
			e.body(c.Body)
		}
		e.body(d.Default)
	case *ir.PrintData:
		e.exprs(d.Args)
	case *ir.BlockCallData:
		e.ref(d.Block)
	default:
		e.failf("statement %s: unsupported payload %T", s.Kind, s.Data)
	}
}
