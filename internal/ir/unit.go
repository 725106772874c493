package ir

import (
	"errors"
	"fmt"
	"slices"

	"irlower/internal/arena"
	"irlower/internal/source"
)

var (
	// ErrDuplicate is returned when a name is already bound in a scope.
	ErrDuplicate = errors.New("duplicate symbol")
	// ErrPathNotFound is returned when a qualified lookup misses a path segment.
	ErrPathNotFound = errors.New("qualified path not found")
	// ErrNameNotFound is returned when the final name of a lookup is missing.
	ErrNameNotFound = errors.New("name not found")
)

// Hints sizes the pools of a new unit.
type Hints struct {
	Scopes, Symbols, Exprs, Stmts uint32
}

// Unit is one translation unit: the global scope and every node reachable
// from it, all allocated from the unit's own pools.
type Unit struct {
	Ctx     *Context
	Bytes   *arena.Arena
	Strings *arena.Strings
	Types   *Types
	Global  ScopeID

	scopes  *arena.Pool[Scope]
	symbols *arena.Pool[Symbol]
	exprs   *arena.Pool[Expr]
	stmts   *arena.Pool[Stmt]
}

// NewUnit creates an empty unit with a global scope.
func NewUnit(ctx *Context) *Unit {
	return NewUnitWithHints(ctx, Hints{})
}

// NewUnitWithHints is NewUnit with explicit pool sizes.
func NewUnitWithHints(ctx *Context, h Hints) *Unit {
	if ctx == nil {
		ctx = NewContext()
	}
	bytes := arena.New(0)
	u := &Unit{
		Ctx:     ctx,
		Bytes:   bytes,
		Strings: arena.NewStrings(bytes),
		Types:   NewTypes(),
		scopes:  arena.NewPool[Scope](h.Scopes),
		symbols: arena.NewPool[Symbol](h.Symbols),
		exprs:   arena.NewPool[Expr](h.Exprs),
		stmts:   arena.NewPool[Stmt](h.Stmts),
	}
	u.Global = u.NewScope(NoScopeID)
	return u
}

// Scope returns the scope for id or nil.
func (u *Unit) Scope(id ScopeID) *Scope { return u.scopes.Get(uint32(id)) }

// Symbol returns the symbol for id or nil.
func (u *Unit) Symbol(id SymbolID) *Symbol { return u.symbols.Get(uint32(id)) }

// ScopeCount reports the number of scopes ever created.
func (u *Unit) ScopeCount() uint32 { return u.scopes.Len() }

// SymbolCount reports the number of symbols ever created.
func (u *Unit) SymbolCount() uint32 { return u.symbols.Len() }

// Name returns the name of a symbol.
func (u *Unit) Name(id SymbolID) string {
	sym := u.Symbol(id)
	if sym == nil {
		return fmt.Sprintf("<sym %d>", id)
	}
	return u.Strings.MustLookup(sym.Name)
}

// NewScope allocates a scope with a fresh counter.
func (u *Unit) NewScope(parent ScopeID) ScopeID {
	raw, _ := u.scopes.New(Scope{Counter: u.Ctx.NextCounter(), Parent: parent})
	return ScopeID(raw)
}

// NewSymbol allocates a symbol and binds it in scope.
func (u *Unit) NewSymbol(scope ScopeID, kind SymbolKind, name string, span source.Span, data SymbolData) (SymbolID, error) {
	sc := u.Scope(scope)
	if sc == nil {
		return NoSymbolID, fmt.Errorf("ir: new symbol %q: invalid scope %d", name, scope)
	}
	nameID := u.Strings.InternName(name)
	if _, ok := sc.Lookup(nameID); ok {
		return NoSymbolID, fmt.Errorf("ir: %q: %w", name, ErrDuplicate)
	}
	raw, _ := u.symbols.New(Symbol{Kind: kind, Name: nameID, Parent: scope, Span: span, Data: data})
	id := SymbolID(raw)
	sc.bind(nameID, id)
	if owned := u.Symbol(id).OwnedScope(); owned.IsValid() {
		if child := u.Scope(owned); child != nil {
			child.Parent = scope
			child.Owner = id
		}
	}
	return id, nil
}

// Declare binds a placeholder symbol of the given kind, or returns the
// symbol already bound to name. Placeholders are filled in later with
// Define and keep their handle.
func (u *Unit) Declare(scope ScopeID, kind SymbolKind, name string) (SymbolID, error) {
	sc := u.Scope(scope)
	if sc == nil {
		return NoSymbolID, fmt.Errorf("ir: declare %q: invalid scope %d", name, scope)
	}
	nameID := u.Strings.InternName(name)
	if id, ok := sc.Lookup(nameID); ok {
		return id, nil
	}
	raw, _ := u.symbols.New(Symbol{Kind: kind, Name: nameID, Parent: scope, Flags: SymPlaceholder})
	id := SymbolID(raw)
	sc.bind(nameID, id)
	return id, nil
}

// Define fills a placeholder (or overwrites a symbol) in place.
func (u *Unit) Define(id SymbolID, kind SymbolKind, span source.Span, data SymbolData) error {
	sym := u.Symbol(id)
	if sym == nil {
		return fmt.Errorf("ir: define: invalid symbol %d", id)
	}
	if sym.Kind != kind {
		return fmt.Errorf("ir: define %q: declared as %s, defined as %s", u.Name(id), sym.Kind, kind)
	}
	sym.Span = span
	sym.Data = data
	sym.Flags &^= SymPlaceholder
	if owned := sym.OwnedScope(); owned.IsValid() {
		if child := u.Scope(owned); child != nil {
			child.Parent = sym.Parent
			child.Owner = id
		}
	}
	return nil
}

// NewExpr allocates an expression node.
func (u *Unit) NewExpr(kind ExprKind, typ TypeID, span source.Span, data ExprData) *Expr {
	_, e := u.exprs.New(Expr{Kind: kind, Type: typ, Span: span, Data: data})
	return e
}

// NewStmt allocates a statement node.
func (u *Unit) NewStmt(kind StmtKind, span source.Span, data StmtData) *Stmt {
	_, s := u.stmts.New(Stmt{Kind: kind, Span: span, Data: data})
	return s
}

// SortedSymbols returns the symbols of scope ordered by name.
func (u *Unit) SortedSymbols(scope ScopeID) []SymbolID {
	sc := u.Scope(scope)
	if sc == nil {
		return nil
	}
	ids := sc.Symbols()
	slices.SortFunc(ids, func(a, b SymbolID) int {
		na, nb := u.Name(a), u.Name(b)
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	})
	return ids
}

// VarType returns the type of a variable symbol, following externals.
func (u *Unit) VarType(id SymbolID) TypeID {
	sym := u.Symbol(u.Deref(id))
	if sym == nil {
		return NoTypeID
	}
	if d, ok := sym.Data.(*VariableData); ok {
		return d.Type
	}
	return NoTypeID
}

// Deref follows ExternalSymbol aliases to the symbol they name.
func (u *Unit) Deref(id SymbolID) SymbolID {
	for range 16 {
		sym := u.Symbol(id)
		if sym == nil {
			return id
		}
		ext, ok := sym.Data.(*ExternalData)
		if !ok || !ext.Target.IsValid() {
			return id
		}
		id = ext.Target
	}
	return id
}

// Function returns the function payload of id (following externals) or nil.
func (u *Unit) Function(id SymbolID) *FunctionData {
	sym := u.Symbol(u.Deref(id))
	if sym == nil {
		return nil
	}
	fn, _ := sym.Data.(*FunctionData)
	return fn
}

// Program returns the program symbol of the global scope, if any.
func (u *Unit) Program() (SymbolID, bool) {
	for _, id := range u.SortedSymbols(u.Global) {
		if sym := u.Symbol(id); sym.Kind == SymProgram && sym.Alive() {
			return id, true
		}
	}
	return NoSymbolID, false
}
