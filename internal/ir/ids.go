// Package ir holds the semantic intermediate representation that lowering
// passes rewrite: scopes and symbols, statements, expressions and types.
//
// All nodes of one translation unit are allocated from the unit's pools and
// live as long as the unit. Symbols and scopes are addressed by handles so
// that cyclic and forward references are plain integers; expression and
// statement trees use stable pointers into the pools.
package ir

// ScopeID identifies a scope within a unit.
type ScopeID uint32

// SymbolID identifies a symbol within a unit.
type SymbolID uint32

// TypeID identifies a type descriptor within a unit.
type TypeID uint32

// Invalid ID constants (zero is sentinel).
const (
	NoScopeID  ScopeID  = 0
	NoSymbolID SymbolID = 0
	NoTypeID   TypeID   = 0
)

// IsValid returns true if the ID is valid (non-zero).
func (id ScopeID) IsValid() bool  { return id != NoScopeID }
func (id SymbolID) IsValid() bool { return id != NoSymbolID }
func (id TypeID) IsValid() bool   { return id != NoTypeID }
