package passes

import (
	"slices"

	"irlower/internal/diag"
	"irlower/internal/ir"
	"irlower/internal/rewrite"
	"irlower/internal/source"
)

// UnusedFunctions erases private procedures, externals and generic sets that
// nothing refers to. Each round marks every symbol referenced from a live
// body, initializer, external or generic and then sweeps the unreferenced
// candidates; code only reachable from a symbol removed in round n goes
// away in round n+1.
type UnusedFunctions struct{}

func (UnusedFunctions) Name() string { return "unused_functions" }

func (UnusedFunctions) Run(pc *Context, u *ir.Unit) (bool, error) {
	if _, ok := u.Program(); !ok && !pc.Options.ForceUnused {
		pc.report(diag.PassUnusedNoProgram, diag.SevNote, source.Span{}, "unused_functions skipped: unit has no program")
		return false, nil
	}
	rounds := pc.Options.UnusedRounds
	if rounds <= 0 {
		rounds = DefaultOptions().UnusedRounds
	}
	changed := false
	for range rounds {
		removed := sweepUnused(pc, u)
		if removed == 0 {
			break
		}
		changed = true
		pruneGenerics(u)
	}
	return changed, nil
}

func sweepUnused(pc *Context, u *ir.Unit) int {
	used := markUsed(u)
	var dead []ir.SymbolID
	rewrite.Walk(u, rewrite.Visitor{Symbol: func(id ir.SymbolID) {
		if !used[id] && removable(u, id) {
			dead = append(dead, id)
		}
	}})
	for _, id := range dead {
		if u.Remove(u.Symbol(id).Parent, id) {
			pc.node("unused_functions", u.Name(id))
		}
	}
	return len(dead)
}

func markUsed(u *ir.Unit) map[ir.SymbolID]bool {
	used := make(map[ir.SymbolID]bool)
	mark := func(id ir.SymbolID) {
		for range 16 {
			if !id.IsValid() || used[id] {
				return
			}
			used[id] = true
			sym := u.Symbol(id)
			if sym == nil {
				return
			}
			ext, ok := sym.Data.(*ir.ExternalData)
			if !ok {
				return
			}
			id = ext.Target
		}
	}
	rewrite.Walk(u, rewrite.Visitor{
		Symbol: func(id ir.SymbolID) {
			switch d := u.Symbol(id).Data.(type) {
			case *ir.ExternalData:
				mark(d.Target)
			case *ir.GenericProcData:
				for _, p := range d.Procs {
					mark(p)
				}
			}
		},
		Stmt: func(s *ir.Stmt, _ ir.ScopeID) {
			switch d := s.Data.(type) {
			case *ir.CallStmtData:
				mark(d.Callee)
			case *ir.BlockCallData:
				mark(d.Block)
			}
		},
		Expr: func(e *ir.Expr, _ ir.ScopeID) {
			switch d := e.Data.(type) {
			case *ir.VarData:
				mark(d.Sym)
			case *ir.CallData:
				mark(d.Callee)
			case *ir.MemberData:
				mark(d.Member)
			}
		},
	})
	return used
}

// removable reports candidates: private or internal procedures, externals
// and generics that are not bound to a foreign ABI.
func removable(u *ir.Unit, id ir.SymbolID) bool {
	sym := u.Symbol(id)
	switch d := sym.Data.(type) {
	case *ir.FunctionData:
		if d.ABI == ir.ABIExternal || d.ABI == ir.ABIBindC {
			return false
		}
	case *ir.ExternalData, *ir.GenericProcData:
	default:
		return false
	}
	return sym.IsPrivate() || !exported(u, sym.Parent)
}

// exported reports scopes whose public names are visible to other units.
func exported(u *ir.Unit, scope ir.ScopeID) bool {
	if scope == u.Global {
		return true
	}
	sc := u.Scope(scope)
	if sc == nil {
		return false
	}
	owner := u.Symbol(sc.Owner)
	return owner != nil && owner.Kind == ir.SymModule
}

func pruneGenerics(u *ir.Unit) {
	rewrite.Walk(u, rewrite.Visitor{Symbol: func(id ir.SymbolID) {
		d, ok := u.Symbol(id).Data.(*ir.GenericProcData)
		if !ok {
			return
		}
		d.Procs = slices.DeleteFunc(d.Procs, func(p ir.SymbolID) bool {
			return !u.Symbol(p).Alive()
		})
	}})
}
