package passes

import (
	"maps"
	"slices"

	"irlower/internal/ir"
	"irlower/internal/rewrite"
)

// SubroutineFromFunction converts functions returning arrays or structs into
// procedures that write the result through a trailing intent(out) argument:
//
//	x = f(a)        =>   call f(a, x)
//	y = g(f(a)) + 1 =>   call f(a, f_call_res)
//	                     y = g(f_call_res) + 1
//
// A while condition is re-evaluated on every iteration, so its hoisted calls
// are repeated at the end of the body:
//
//	while (g(f(a)) > 0) B  =>  call f(a, f_call_res)
//	                           while (g(f_call_res) > 0) { B; call f(a, f_call_res) }
//
// Functions called from variable initializers or array bounds have no
// statement to hoist into and are left as functions.
type SubroutineFromFunction struct{}

func (SubroutineFromFunction) Name() string { return "subroutine_from_function" }

func (SubroutineFromFunction) Run(pc *Context, u *ir.Unit) (bool, error) {
	converted := collectAggregateFunctions(u, u.Global, nil)
	excludeDeclarationCalls(u, u.Global, converted)
	if len(converted) == 0 {
		return false, nil
	}

	t := &rewrite.Transformer{
		Visit: func(em *rewrite.Emitter, s *ir.Stmt, scope ir.ScopeID) error {
			// x = f(args) becomes call f(args, x) directly
			if d, ok := s.Data.(*ir.AssignData); ok && d.Value.Kind == ir.ExprCall {
				call := d.Value.Data.(*ir.CallData)
				if _, ok := converted[u.Deref(call.Callee)]; ok {
					pre, err := hoistCalls(u, converted, call.Args, scope)
					if err != nil {
						return err
					}
					em.Emit(pre...)
					args := slices.Concat(call.Args, []*ir.Expr{d.Target})
					em.Emit(u.CallStmt(call.Callee, args, s.Span))
					return nil
				}
			}
			if d, ok := s.Data.(*ir.WhileData); ok {
				pre, err := hoistCall(u, converted, &d.Cond, scope)
				if err != nil {
					return err
				}
				if len(pre) > 0 {
					d.Body = append(d.Body, cloneCallStmts(u, pre)...)
				}
				em.Emit(pre...)
				em.Emit(s)
				return nil
			}
			pre, err := hoistSlots(u, converted, s.Exprs(), scope)
			if err != nil {
				return err
			}
			em.Emit(pre...)
			em.Emit(s)
			return nil
		},
	}
	if _, err := rewrite.Stmts(u, t); err != nil {
		return false, err
	}

	for _, id := range slices.Sorted(maps.Keys(converted)) {
		res := converted[id]
		fn := u.Function(id)
		u.Symbol(res).Data.(*ir.VariableData).Intent = ir.IntentOut
		fn.Params = append(fn.Params, res)
		fn.Return = ir.NoSymbolID
		pc.node("subroutine_from_function", u.Name(id))
	}
	return true, nil
}

// collectAggregateFunctions maps every function whose result is an array or
// struct to its result variable.
func collectAggregateFunctions(u *ir.Unit, scope ir.ScopeID, out map[ir.SymbolID]ir.SymbolID) map[ir.SymbolID]ir.SymbolID {
	if out == nil {
		out = make(map[ir.SymbolID]ir.SymbolID)
	}
	for _, id := range u.SortedSymbols(scope) {
		sym := u.Symbol(id)
		if fn, ok := sym.Data.(*ir.FunctionData); ok && fn.Return.IsValid() {
			if u.Types.IsAggregate(u.VarType(fn.Return)) {
				out[id] = fn.Return
			}
		}
		if owned := sym.OwnedScope(); owned.IsValid() {
			collectAggregateFunctions(u, owned, out)
		}
	}
	return out
}

// excludeDeclarationCalls drops from converted every function that is called
// from a variable initializer or an array bound.
func excludeDeclarationCalls(u *ir.Unit, scope ir.ScopeID, converted map[ir.SymbolID]ir.SymbolID) {
	drop := func(e *ir.Expr) {
		rewrite.WalkExpr(e, scope, rewrite.Visitor{Expr: func(e *ir.Expr, _ ir.ScopeID) {
			if d, ok := e.Data.(*ir.CallData); ok {
				delete(converted, u.Deref(d.Callee))
			}
		}})
	}
	for _, id := range u.SortedSymbols(scope) {
		sym := u.Symbol(id)
		if !sym.Alive() {
			continue
		}
		if d, ok := sym.Data.(*ir.VariableData); ok {
			drop(d.Init)
			if ty := u.Types.Get(d.Type); ty != nil && ty.Kind == ir.TypeArray {
				for _, dim := range ty.Dims {
					drop(dim.Start)
					drop(dim.Length)
				}
			}
			continue
		}
		if owned := sym.OwnedScope(); owned.IsValid() {
			excludeDeclarationCalls(u, owned, converted)
		}
	}
}

// cloneCallStmts copies the call statements produced by hoisting so they can
// be emitted a second time without sharing nodes.
func cloneCallStmts(u *ir.Unit, stmts []*ir.Stmt) []*ir.Stmt {
	out := make([]*ir.Stmt, len(stmts))
	for i, s := range stmts {
		d := s.Data.(*ir.CallStmtData)
		out[i] = u.CallStmt(d.Callee, u.CloneExprs(d.Args), s.Span)
	}
	return out
}

func hoistCalls(u *ir.Unit, converted map[ir.SymbolID]ir.SymbolID, args []*ir.Expr, scope ir.ScopeID) ([]*ir.Stmt, error) {
	slots := make([]**ir.Expr, len(args))
	for i := range args {
		slots[i] = &args[i]
	}
	return hoistSlots(u, converted, slots, scope)
}

func hoistSlots(u *ir.Unit, converted map[ir.SymbolID]ir.SymbolID, slots []**ir.Expr, scope ir.ScopeID) ([]*ir.Stmt, error) {
	var pre []*ir.Stmt
	for _, slot := range slots {
		out, err := hoistCall(u, converted, slot, scope)
		if err != nil {
			return nil, err
		}
		pre = append(pre, out...)
	}
	return pre, nil
}

// hoistCall replaces calls of converted functions below slot by temporaries
// filled by a preceding call statement. Arguments are handled first so
// nested calls run in evaluation order.
func hoistCall(u *ir.Unit, converted map[ir.SymbolID]ir.SymbolID, slot **ir.Expr, scope ir.ScopeID) ([]*ir.Stmt, error) {
	e := *slot
	if e == nil {
		return nil, nil
	}
	pre, err := hoistSlots(u, converted, e.Children(), scope)
	if err != nil {
		return nil, err
	}
	if e.Kind != ir.ExprCall {
		return pre, nil
	}
	call := e.Data.(*ir.CallData)
	res, ok := converted[u.Deref(call.Callee)]
	if !ok {
		return pre, nil
	}
	tmp, err := newTemp(u, scope, u.Name(u.Deref(call.Callee))+"_call_res", u.VarType(res), e.Span)
	if err != nil {
		return nil, err
	}
	args := slices.Concat(call.Args, []*ir.Expr{u.Var(tmp, e.Span)})
	pre = append(pre, u.CallStmt(call.Callee, args, e.Span))
	*slot = u.Var(tmp, e.Span)
	return pre, nil
}
