package ir

import (
	"irlower/internal/arena"
)

// Scope is one level of the symbol table tree: a module, procedure,
// aggregate, block or the global scope of a unit.
type Scope struct {
	// Counter is unique within one compilation; it is what serialized
	// symbol references point at.
	Counter uint64
	Parent  ScopeID
	Owner   SymbolID // NoSymbolID for the global scope
	names   map[arena.StrID]SymbolID
}

// Lookup returns the symbol bound to name in this scope only.
func (s *Scope) Lookup(name arena.StrID) (SymbolID, bool) {
	id, ok := s.names[name]
	return id, ok
}

// Len reports how many names are bound.
func (s *Scope) Len() int { return len(s.names) }

// Symbols returns the bound symbols in no particular order.
func (s *Scope) Symbols() []SymbolID {
	out := make([]SymbolID, 0, len(s.names))
	for _, id := range s.names {
		out = append(out, id)
	}
	return out
}

func (s *Scope) bind(name arena.StrID, id SymbolID) {
	if s.names == nil {
		s.names = make(map[arena.StrID]SymbolID)
	}
	s.names[name] = id
}

func (s *Scope) unbind(name arena.StrID) {
	delete(s.names, name)
}
