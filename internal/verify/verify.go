// Package verify checks the structural invariants of a unit: scope tree
// consistency, reference reachability and operand type agreement.
//
// The verifier never modifies the unit. A violation means a lowering pass
// (or a decoder) produced a broken tree; it is not a user-facing diagnostic.
package verify

import (
	"fmt"
	"strings"

	"irlower/internal/ir"
	"irlower/internal/rewrite"
)

// Violation is one broken invariant.
type Violation struct {
	Where string // dotted symbol path or "<global>"
	Msg   string
}

func (v Violation) String() string { return v.Where + ": " + v.Msg }

// Error lists every violation found by Check.
type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	if len(e.Violations) == 1 {
		return "ir verification failed: " + e.Violations[0].String()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "ir verification failed with %d violations:", len(e.Violations))
	for _, v := range e.Violations {
		b.WriteString("\n  ")
		b.WriteString(v.String())
	}
	return b.String()
}

// Check verifies u and returns a *Error when anything is broken.
func Check(u *ir.Unit) error {
	c := &checker{
		u:         u,
		reachable: make(map[ir.ScopeID]bool),
		counters:  make(map[uint64]ir.ScopeID),
	}
	c.scopes()
	c.references()
	if len(c.out) == 0 {
		return nil
	}
	return &Error{Violations: c.out}
}

// MustVerify panics when Check fails. Tests and debug builds call it after
// every pass.
func MustVerify(u *ir.Unit) {
	if err := Check(u); err != nil {
		panic(err)
	}
}

type checker struct {
	u         *ir.Unit
	reachable map[ir.ScopeID]bool
	counters  map[uint64]ir.ScopeID
	out       []Violation
}

func (c *checker) failf(scope ir.ScopeID, name string, format string, args ...any) {
	path := c.u.ScopePath(scope)
	if name != "" {
		path = append(path, name)
	}
	where := strings.Join(path, ".")
	if where == "" {
		where = "<global>"
	}
	c.out = append(c.out, Violation{Where: where, Msg: fmt.Sprintf(format, args...)})
}

// scopes walks the tree from the global scope, checking parent and owner
// links, counter uniqueness and symbol registration.
func (c *checker) scopes() {
	u := c.u
	g := u.Scope(u.Global)
	if g == nil {
		c.failf(ir.NoScopeID, "", "unit has no global scope")
		return
	}
	if g.Parent.IsValid() || g.Owner.IsValid() {
		c.failf(u.Global, "", "global scope has parent %d, owner %d", g.Parent, g.Owner)
	}
	c.scope(u.Global)
}

func (c *checker) scope(id ir.ScopeID) {
	u := c.u
	if c.reachable[id] {
		c.failf(id, "", "scope %d is owned twice", id)
		return
	}
	c.reachable[id] = true
	sc := u.Scope(id)
	if prev, dup := c.counters[sc.Counter]; dup {
		c.failf(id, "", "scope counter %d also used by scope %d", sc.Counter, prev)
	}
	c.counters[sc.Counter] = id

	for _, sid := range u.SortedSymbols(id) {
		sym := u.Symbol(sid)
		name := u.Name(sid)
		switch {
		case sym == nil:
			c.failf(id, name, "dangling symbol id %d", sid)
			continue
		case !sym.Alive():
			c.failf(id, name, "placeholder or removed symbol still bound")
			continue
		case sym.Parent != id:
			c.failf(id, name, "bound in scope %d but records parent %d", id, sym.Parent)
		}
		owned := sym.OwnedScope()
		if !owned.IsValid() {
			continue
		}
		osc := u.Scope(owned)
		if osc == nil {
			c.failf(id, name, "owned scope %d does not exist", owned)
			continue
		}
		if osc.Parent != id {
			c.failf(id, name, "owned scope parent is %d, want %d", osc.Parent, id)
		}
		if osc.Owner != sid {
			c.failf(id, name, "owned scope records owner %d, want %d", osc.Owner, sid)
		}
		c.scope(owned)
	}
}

// ref checks that id names a live symbol bound in a reachable scope.
func (c *checker) ref(scope ir.ScopeID, what string, id ir.SymbolID) {
	u := c.u
	sym := u.Symbol(id)
	switch {
	case sym == nil:
		c.failf(scope, "", "%s refers to missing symbol %d", what, id)
	case !sym.Alive():
		c.failf(scope, "", "%s refers to dead symbol %q", what, u.Name(id))
	case !c.reachable[sym.Parent]:
		c.failf(scope, "", "%s refers to %q in unreachable scope %d", what, u.Name(id), sym.Parent)
	default:
		if bound, ok := u.ResolveLocal(sym.Parent, u.Name(id)); !ok || bound != id {
			c.failf(scope, "", "%s refers to %q which is not bound in its scope", what, u.Name(id))
		}
	}
}

func (c *checker) references() {
	u := c.u
	rewrite.Walk(u, rewrite.Visitor{
		Symbol: func(id ir.SymbolID) {
			sym := u.Symbol(id)
			switch d := sym.Data.(type) {
			case *ir.VariableData:
				c.dims(sym.Parent, u.Name(id), d.Type)
				if d.Init != nil && !u.Types.Convertible(d.Init.Type, d.Type) {
					c.failf(sym.Parent, u.Name(id), "initializer of type %s does not convert to %s",
						u.Types.String(d.Init.Type), u.Types.String(d.Type))
				}
			case *ir.FunctionData:
				for _, p := range d.Params {
					c.ref(d.Scope, "parameter", p)
				}
				if d.Return.IsValid() {
					c.ref(d.Scope, "result", d.Return)
				}
			case *ir.ExternalData:
				if d.Target.IsValid() {
					c.ref(sym.Parent, "external "+u.Name(id), d.Target)
				}
			case *ir.GenericProcData:
				for _, p := range d.Procs {
					c.ref(sym.Parent, "generic "+u.Name(id), p)
				}
			case *ir.AggregateData:
				for _, m := range d.Members {
					c.ref(d.Scope, "member", m)
				}
			}
		},
		Stmt: func(s *ir.Stmt, scope ir.ScopeID) { c.stmt(s, scope) },
		Expr: func(e *ir.Expr, scope ir.ScopeID) { c.expr(e, scope) },
	})
}

func (c *checker) stmt(s *ir.Stmt, scope ir.ScopeID) {
	u := c.u
	switch d := s.Data.(type) {
	case *ir.AssignData:
		if d.Target == nil || d.Value == nil {
			c.failf(scope, "", "assignment with a missing side")
			return
		}
		if !u.Types.Convertible(d.Value.Type, d.Target.Type) {
			c.failf(scope, "", "cannot assign %s to %s", u.Types.String(d.Value.Type), u.Types.String(d.Target.Type))
		}
	case *ir.CallStmtData:
		c.ref(scope, "call", d.Callee)
	case *ir.BlockCallData:
		c.ref(scope, "block call", d.Block)
	case *ir.WhileData:
		c.logical(scope, "while condition", d.Cond)
	case *ir.IfData:
		c.logical(scope, "if condition", d.Cond)
	}
}

func (c *checker) expr(e *ir.Expr, scope ir.ScopeID) {
	u := c.u
	switch d := e.Data.(type) {
	case *ir.VarData:
		c.ref(scope, "variable reference", d.Sym)
	case *ir.CallData:
		c.ref(scope, "call", d.Callee)
		fn := u.Function(d.Callee)
		if fn == nil {
			break
		}
		name := u.Name(u.Deref(d.Callee))
		switch {
		case !fn.Return.IsValid():
			c.failf(scope, "", "call expression to %q which has no result", name)
		case !u.Types.Same(e.Type, u.VarType(fn.Return)):
			c.failf(scope, "", "call to %q has type %s, result is %s",
				name, u.Types.String(e.Type), u.Types.String(u.VarType(fn.Return)))
		}
	case *ir.MemberData:
		c.ref(scope, "member access", d.Member)
	case *ir.BinOpData:
		if !u.Types.Compatible(d.Left.Type, d.Right.Type) {
			c.failf(scope, "", "operands of %s disagree: %s vs %s", d.Op, u.Types.String(d.Left.Type), u.Types.String(d.Right.Type))
		}
	case *ir.CompareData:
		if !u.Types.Compatible(d.Left.Type, d.Right.Type) {
			c.failf(scope, "", "operands of %s disagree: %s vs %s", d.Op, u.Types.String(d.Left.Type), u.Types.String(d.Right.Type))
		}
	case *ir.LogicalData:
		c.logical(scope, d.Op.String()+" operand", d.Left)
		c.logical(scope, d.Op.String()+" operand", d.Right)
	case *ir.UnaryData:
		if e.Kind == ir.ExprNot {
			c.logical(scope, ".not. operand", d.Arg)
		}
	}
}

func (c *checker) logical(scope ir.ScopeID, what string, e *ir.Expr) {
	if e == nil {
		c.failf(scope, "", "%s is missing", what)
		return
	}
	if !c.u.Types.IsLogical(e.Type) {
		c.failf(scope, "", "%s has type %s, want logical", what, c.u.Types.String(e.Type))
	}
}

func (c *checker) dims(scope ir.ScopeID, name string, typ ir.TypeID) {
	ty := c.u.Types.Get(typ)
	if ty == nil || ty.Kind != ir.TypeArray {
		return
	}
	for i, d := range ty.Dims {
		if (d.Start == nil) != (d.Length == nil) {
			c.failf(scope, name, "dimension %d has only one bound", i+1)
		}
	}
}
