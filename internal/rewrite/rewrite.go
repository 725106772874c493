// Package rewrite is the tree-rewriting engine shared by all lowering
// passes.
//
// Replacer visits every embedded expression slot of a unit and lets a
// per-kind hook overwrite the slot in place. Transformer rebuilds every
// statement list, letting a hook emit zero, one or many statements for each
// original one. Walk is the read-only counterpart used by analyses.
package rewrite

import (
	"irlower/internal/ir"
)

// Order selects when a hook runs relative to the children of its node.
type Order uint8

const (
	// PostOrder runs the hook after the children were visited.
	PostOrder Order = iota
	// PreOrder runs the hook first and then visits the children of
	// whatever node ends up in the slot.
	PreOrder
)

// ExprFunc may overwrite *slot with a node allocated from the same unit.
// scope is the lexically enclosing scope.
type ExprFunc func(slot **ir.Expr, scope ir.ScopeID) error

// Replacer dispatches expression slots by kind. Kinds without a hook are
// only recursed into.
type Replacer struct {
	Order Order
	// Skip is consulted for every procedure, program and block; a true
	// result leaves its body untouched.
	Skip func(sym ir.SymbolID) bool

	on      map[ir.ExprKind]ExprFunc
	changed int
}

// NewReplacer returns a post-order replacer without hooks.
func NewReplacer() *Replacer {
	return &Replacer{on: make(map[ir.ExprKind]ExprFunc)}
}

// On registers fn for expressions of kind.
func (r *Replacer) On(kind ir.ExprKind, fn ExprFunc) *Replacer {
	if r.on == nil {
		r.on = make(map[ir.ExprKind]ExprFunc)
	}
	r.on[kind] = fn
	return r
}

// MarkChanged records a rewrite done in place without replacing the slot.
func (r *Replacer) MarkChanged() { r.changed++ }

// Exprs runs r over every expression slot of u and reports how many slots
// were rewritten.
func Exprs(u *ir.Unit, r *Replacer) (int, error) {
	r.changed = 0
	w := exprWalker{u: u, r: r}
	if err := w.scope(u.Global); err != nil {
		return r.changed, err
	}
	return r.changed, nil
}

type exprWalker struct {
	u *ir.Unit
	r *Replacer
}

func (w *exprWalker) scope(scope ir.ScopeID) error {
	for _, id := range w.u.SortedSymbols(scope) {
		sym := w.u.Symbol(id)
		if !sym.Alive() {
			continue
		}
		if d, ok := sym.Data.(*ir.VariableData); ok {
			if err := w.slot(&d.Init, scope); err != nil {
				return err
			}
			if ty := w.u.Types.Get(d.Type); ty != nil && ty.Kind == ir.TypeArray {
				for i := range ty.Dims {
					if err := w.slot(&ty.Dims[i].Start, scope); err != nil {
						return err
					}
					if err := w.slot(&ty.Dims[i].Length, scope); err != nil {
						return err
					}
				}
			}
			continue
		}
		owned := sym.OwnedScope()
		if body := sym.Body(); body != nil && (w.r.Skip == nil || !w.r.Skip(id)) {
			if err := w.body(*body, owned); err != nil {
				return err
			}
		}
		if owned.IsValid() {
			if err := w.scope(owned); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *exprWalker) body(stmts []*ir.Stmt, scope ir.ScopeID) error {
	for _, s := range stmts {
		for _, slot := range s.Exprs() {
			if err := w.slot(slot, scope); err != nil {
				return err
			}
		}
		for _, nested := range s.Bodies() {
			if err := w.body(*nested, scope); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *exprWalker) slot(slot **ir.Expr, scope ir.ScopeID) error {
	if *slot == nil {
		return nil
	}
	if w.r.Order == PreOrder {
		if err := w.hook(slot, scope); err != nil {
			return err
		}
		return w.children(*slot, scope)
	}
	if err := w.children(*slot, scope); err != nil {
		return err
	}
	return w.hook(slot, scope)
}

func (w *exprWalker) children(e *ir.Expr, scope ir.ScopeID) error {
	if e == nil {
		return nil
	}
	for _, child := range e.Children() {
		if err := w.slot(child, scope); err != nil {
			return err
		}
	}
	return nil
}

func (w *exprWalker) hook(slot **ir.Expr, scope ir.ScopeID) error {
	fn := w.r.on[(*slot).Kind]
	if fn == nil {
		return nil
	}
	before := *slot
	if err := fn(slot, scope); err != nil {
		return err
	}
	if *slot != before {
		w.r.changed++
	}
	return nil
}
