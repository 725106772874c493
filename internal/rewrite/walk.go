package rewrite

import (
	"irlower/internal/ir"
)

// Visitor receives every node of a unit during Walk. Nil callbacks are
// skipped.
type Visitor struct {
	Symbol func(id ir.SymbolID)
	Stmt   func(s *ir.Stmt, scope ir.ScopeID)
	Expr   func(e *ir.Expr, scope ir.ScopeID)
}

// Walk visits symbols, statements and expressions (including variable
// initializers and array dimension bounds) without modifying anything.
func Walk(u *ir.Unit, v Visitor) {
	walkScope(u, u.Global, v)
}

// WalkBody visits the statements of one list and their expressions.
func WalkBody(body []*ir.Stmt, scope ir.ScopeID, v Visitor) {
	for _, s := range body {
		if v.Stmt != nil {
			v.Stmt(s, scope)
		}
		for _, slot := range s.Exprs() {
			WalkExpr(*slot, scope, v)
		}
		for _, nested := range s.Bodies() {
			WalkBody(*nested, scope, v)
		}
	}
}

// WalkExpr visits e and its sub-expressions, parents first.
func WalkExpr(e *ir.Expr, scope ir.ScopeID, v Visitor) {
	if e == nil {
		return
	}
	if v.Expr != nil {
		v.Expr(e, scope)
	}
	for _, child := range e.Children() {
		WalkExpr(*child, scope, v)
	}
}

func walkScope(u *ir.Unit, scope ir.ScopeID, v Visitor) {
	for _, id := range u.SortedSymbols(scope) {
		sym := u.Symbol(id)
		if !sym.Alive() {
			continue
		}
		if v.Symbol != nil {
			v.Symbol(id)
		}
		if d, ok := sym.Data.(*ir.VariableData); ok {
			WalkExpr(d.Init, scope, v)
			if ty := u.Types.Get(d.Type); ty != nil && ty.Kind == ir.TypeArray {
				for _, dim := range ty.Dims {
					WalkExpr(dim.Start, scope, v)
					WalkExpr(dim.Length, scope, v)
				}
			}
			continue
		}
		owned := sym.OwnedScope()
		if body := sym.Body(); body != nil {
			WalkBody(*body, owned, v)
		}
		if owned.IsValid() {
			walkScope(u, owned, v)
		}
	}
}
