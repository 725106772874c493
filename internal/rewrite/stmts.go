package rewrite

import (
	"irlower/internal/arena"
	"irlower/internal/ir"
)

// Emitter accumulates the statements that replace one statement list.
type Emitter struct {
	out *arena.Vec[*ir.Stmt]
}

// Emit appends statements to the new list.
func (e *Emitter) Emit(stmts ...*ir.Stmt) {
	for _, s := range stmts {
		e.out.Push(s)
	}
}

// StmtFunc handles one statement of a list. It must Emit s itself to keep
// it; emitting nothing deletes it.
type StmtFunc func(em *Emitter, s *ir.Stmt, scope ir.ScopeID) error

// Transformer rebuilds every statement list of a unit.
type Transformer struct {
	Visit StmtFunc
	// Skip is consulted for every procedure, program and block.
	Skip func(sym ir.SymbolID) bool

	changed int
}

// Stmts runs t over every body of u, innermost lists first, and reports how
// many statements were replaced.
func Stmts(u *ir.Unit, t *Transformer) (int, error) {
	t.changed = 0
	if err := t.scope(u, u.Global); err != nil {
		return t.changed, err
	}
	return t.changed, nil
}

func (t *Transformer) scope(u *ir.Unit, scope ir.ScopeID) error {
	for _, id := range u.SortedSymbols(scope) {
		sym := u.Symbol(id)
		if !sym.Alive() {
			continue
		}
		owned := sym.OwnedScope()
		if body := sym.Body(); body != nil && (t.Skip == nil || !t.Skip(id)) {
			if err := t.List(body, owned); err != nil {
				return err
			}
		}
		if owned.IsValid() {
			if err := t.scope(u, owned); err != nil {
				return err
			}
		}
	}
	return nil
}

// List transforms one statement list in place.
func (t *Transformer) List(list *[]*ir.Stmt, scope ir.ScopeID) error {
	for _, s := range *list {
		for _, nested := range s.Bodies() {
			if err := t.List(nested, scope); err != nil {
				return err
			}
		}
	}
	em := &Emitter{out: arena.NewVec[*ir.Stmt](len(*list))}
	local := 0
	for _, s := range *list {
		start := em.out.Len()
		if err := t.Visit(em, s, scope); err != nil {
			return err
		}
		if em.out.Len()-start != 1 || em.out.At(start) != s {
			local++
		}
	}
	if local == 0 {
		return nil
	}
	t.changed += local
	if em.out.Len() == 0 {
		*list = nil
		return nil
	}
	*list = em.out.ToSlice()
	return nil
}
