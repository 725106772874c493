// Package testkit holds helpers shared by the tests of the IR packages:
// terse unit builders, an evaluator for behavioural comparisons, round-trip
// and span checks.
package testkit

import (
	"fmt"

	"irlower/internal/ir"
	"irlower/internal/rewrite"
	"irlower/internal/source"
)

var nowhere source.Span

// Builder creates IR with panicking helpers; it is meant for tests only.
type Builder struct {
	U *ir.Unit

	I4 ir.TypeID
	I8 ir.TypeID
	R4 ir.TypeID
	R8 ir.TypeID
	L  ir.TypeID
}

// NewBuilder returns a builder over a fresh unit.
func NewBuilder() *Builder {
	return BuilderFor(ir.NewUnit(nil))
}

// BuilderFor wraps an existing unit.
func BuilderFor(u *ir.Unit) *Builder {
	return &Builder{
		U:  u,
		I4: u.Types.Integer(4),
		I8: u.Types.Integer(8),
		R4: u.Types.Real(4),
		R8: u.Types.Real(8),
		L:  u.Types.Logical(),
	}
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(fmt.Errorf("testkit: %w", err))
	}
	return v
}

// Program adds the program entry point.
func (b *Builder) Program(name string) (ir.SymbolID, *ir.ProgramData) {
	id, p, err := b.U.AddProgram(name, nowhere)
	must(id, err)
	return id, p
}

// Module adds a module to the global scope.
func (b *Builder) Module(name string) (ir.SymbolID, *ir.ModuleData) {
	id, m, err := b.U.AddModule(b.U.Global, name, nowhere)
	must(id, err)
	return id, m
}

// Func adds a procedure to scope.
func (b *Builder) Func(scope ir.ScopeID, name string, access ir.Access) (ir.SymbolID, *ir.FunctionData) {
	id, fn, err := b.U.AddFunction(scope, name, access, nowhere)
	must(id, err)
	return id, fn
}

// Local declares a local variable.
func (b *Builder) Local(scope ir.ScopeID, name string, typ ir.TypeID) ir.SymbolID {
	return must(b.U.AddVariable(scope, name, typ, ir.IntentLocal, nowhere))
}

// Param appends a dummy argument.
func (b *Builder) Param(fn *ir.FunctionData, name string, typ ir.TypeID, intent ir.Intent) ir.SymbolID {
	return must(b.U.AddParam(fn, name, typ, intent, nowhere))
}

// Result sets the result variable of fn.
func (b *Builder) Result(fn *ir.FunctionData, name string, typ ir.TypeID) ir.SymbolID {
	return must(b.U.AddResult(fn, name, typ, nowhere))
}

// Array returns a rank-n array type with constant bounds given as
// (lower, extent) pairs.
func (b *Builder) Array(elem ir.TypeID, bounds ...int64) ir.TypeID {
	if len(bounds)%2 != 0 {
		panic("testkit: Array needs (lower, extent) pairs")
	}
	dims := make([]ir.Dim, 0, len(bounds)/2)
	for i := 0; i < len(bounds); i += 2 {
		dims = append(dims, ir.Dim{Start: b.Int(bounds[i]), Length: b.Int(bounds[i+1])})
	}
	return b.U.Types.Array(elem, dims)
}

// Int is an integer(4) literal.
func (b *Builder) Int(v int64) *ir.Expr { return b.U.IntConst(v, b.I4, nowhere) }

// Real is a real(8) literal.
func (b *Builder) Real(v float64) *ir.Expr { return b.U.RealConst(v, b.R8, nowhere) }

// Bool is a logical literal.
func (b *Builder) Bool(v bool) *ir.Expr { return b.U.LogicalConst(v, nowhere) }

// Ref references a variable.
func (b *Builder) Ref(sym ir.SymbolID) *ir.Expr { return b.U.Var(sym, nowhere) }

// Bin builds an arithmetic node typed after the wider operand.
func (b *Builder) Bin(op ir.BinOp, l, r *ir.Expr) *ir.Expr {
	typ := l.Type
	if b.U.Types.Convertible(l.Type, r.Type) {
		typ = r.Type
	}
	return b.U.BinOp(op, l, r, typ, nowhere)
}

// Cmp builds a comparison.
func (b *Builder) Cmp(op ir.CmpOp, l, r *ir.Expr) *ir.Expr { return b.U.Compare(op, l, r, nowhere) }

// Call builds a function call expression.
func (b *Builder) Call(fn ir.SymbolID, args ...*ir.Expr) *ir.Expr { return b.U.Call(fn, args, nowhere) }

// Intrinsic builds a builtin call of type typ.
func (b *Builder) Intrinsic(id ir.IntrinsicID, typ ir.TypeID, args ...*ir.Expr) *ir.Expr {
	return b.U.Intrinsic(id, args, typ, nowhere)
}

// Item indexes an array variable.
func (b *Builder) Item(arr ir.SymbolID, idx ...*ir.Expr) *ir.Expr {
	return b.U.ArrayItem(b.Ref(arr), idx, nowhere)
}

// Section is arr(lo:hi:st) over one dimension; nil bounds are omitted.
func (b *Builder) Section(arr ir.SymbolID, lo, hi, st *ir.Expr) *ir.Expr {
	return b.U.ArraySection(b.Ref(arr), []ir.Range{{Start: lo, End: hi, Step: st}}, nowhere)
}

// Set assigns value to target.
func (b *Builder) Set(target, value *ir.Expr) *ir.Stmt { return b.U.Assign(target, value, nowhere) }

// Print prints its arguments on one line.
func (b *Builder) Print(args ...*ir.Expr) *ir.Stmt { return b.U.Print(args, nowhere) }

// Do is a counted loop over variable v.
func (b *Builder) Do(v ir.SymbolID, start, end, step *ir.Expr, body ...*ir.Stmt) *ir.Stmt {
	return b.U.DoLoop(b.Ref(v), start, end, step, body, nowhere)
}

// While loops while cond holds.
func (b *Builder) While(cond *ir.Expr, body ...*ir.Stmt) *ir.Stmt {
	return b.U.While(cond, body, nowhere)
}

// If is a two-way branch.
func (b *Builder) If(cond *ir.Expr, then, els []*ir.Stmt) *ir.Stmt {
	return b.U.If(cond, then, els, nowhere)
}

// CallStmt calls a subroutine.
func (b *Builder) CallStmt(fn ir.SymbolID, args ...*ir.Expr) *ir.Stmt {
	return b.U.CallStmt(fn, args, nowhere)
}

// Count reports how many statements of kind remain anywhere in u.
func Count(u *ir.Unit, kind ir.StmtKind) int {
	n := 0
	walkStmts(u, func(s *ir.Stmt) {
		if s.Kind == kind {
			n++
		}
	})
	return n
}

// CountExprs reports how many expressions of kind remain anywhere in u.
func CountExprs(u *ir.Unit, kind ir.ExprKind) int {
	n := 0
	walkExprs(u, func(e *ir.Expr) {
		if e.Kind == kind {
			n++
		}
	})
	return n
}

func walkStmts(u *ir.Unit, fn func(*ir.Stmt)) {
	rewrite.Walk(u, rewrite.Visitor{Stmt: func(s *ir.Stmt, _ ir.ScopeID) { fn(s) }})
}

func walkExprs(u *ir.Unit, fn func(*ir.Expr)) {
	rewrite.Walk(u, rewrite.Visitor{Expr: func(e *ir.Expr, _ ir.ScopeID) { fn(e) }})
}
