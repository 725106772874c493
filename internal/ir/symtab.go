package ir

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ResolveLocal looks name up in scope only.
func (u *Unit) ResolveLocal(scope ScopeID, name string) (SymbolID, bool) {
	sc := u.Scope(scope)
	if sc == nil {
		return NoSymbolID, false
	}
	nameID, ok := u.Strings.FindName(name)
	if !ok {
		return NoSymbolID, false
	}
	return sc.Lookup(nameID)
}

// Resolve looks name up in scope and then in each enclosing scope.
func (u *Unit) Resolve(scope ScopeID, name string) (SymbolID, bool) {
	for id := scope; id.IsValid(); {
		if sym, ok := u.ResolveLocal(id, name); ok {
			return sym, true
		}
		sc := u.Scope(id)
		if sc == nil {
			break
		}
		id = sc.Parent
	}
	return NoSymbolID, false
}

// ResolveQualified resolves path[0].path[1]...name starting from scope.
// The first segment is looked up through enclosing scopes, the rest are
// descended into. A missing segment yields ErrPathNotFound, a missing final
// name ErrNameNotFound.
func (u *Unit) ResolveQualified(scope ScopeID, path []string, name string) (SymbolID, error) {
	cur := scope
	for i, seg := range path {
		var (
			id SymbolID
			ok bool
		)
		if i == 0 {
			id, ok = u.Resolve(cur, seg)
		} else {
			id, ok = u.ResolveLocal(cur, seg)
		}
		if !ok {
			return NoSymbolID, fmt.Errorf("ir: %s: %w", strings.Join(path[:i+1], "."), ErrPathNotFound)
		}
		next := u.Symbol(u.Deref(id)).OwnedScope()
		if !next.IsValid() {
			return NoSymbolID, fmt.Errorf("ir: %s has no scope: %w", strings.Join(path[:i+1], "."), ErrPathNotFound)
		}
		cur = next
	}
	var (
		id SymbolID
		ok bool
	)
	if len(path) == 0 {
		id, ok = u.Resolve(cur, name)
	} else {
		id, ok = u.ResolveLocal(cur, name)
	}
	if !ok {
		return NoSymbolID, fmt.Errorf("ir: %s: %w", strings.Join(append(slices.Clone(path), name), "."), ErrNameNotFound)
	}
	return id, nil
}

// UniqueName returns base if it is free in scope, otherwise base1, base2, ...
// When the context carries a namespace, candidates are suffixed with it so
// separately compiled units sharing one namespace do not collide.
func (u *Unit) UniqueName(scope ScopeID, base string) string {
	if u.Ctx.Namespace != "" {
		base = base + "_" + u.Ctx.Namespace
	}
	if _, taken := u.ResolveLocal(scope, base); !taken {
		return base
	}
	for i := 1; ; i++ {
		candidate := base + strconv.Itoa(i)
		if _, taken := u.ResolveLocal(scope, candidate); !taken {
			return candidate
		}
	}
}

// Remove unbinds name from scope and marks the symbol removed.
func (u *Unit) Remove(scope ScopeID, id SymbolID) bool {
	sc := u.Scope(scope)
	sym := u.Symbol(id)
	if sc == nil || sym == nil {
		return false
	}
	if bound, ok := sc.Lookup(sym.Name); !ok || bound != id {
		return false
	}
	sc.unbind(sym.Name)
	sym.Flags |= SymRemoved
	return true
}

// ReparentInto moves syms into target and returns the sorted names of the
// external modules the moved symbols still depend on.
func (u *Unit) ReparentInto(target ScopeID, syms []SymbolID) ([]string, error) {
	ts := u.Scope(target)
	if ts == nil {
		return nil, fmt.Errorf("ir: reparent: invalid scope %d", target)
	}
	deps := make(map[string]struct{})
	for _, id := range syms {
		sym := u.Symbol(id)
		if sym == nil {
			return nil, fmt.Errorf("ir: reparent: invalid symbol %d", id)
		}
		if _, taken := ts.Lookup(sym.Name); taken {
			return nil, fmt.Errorf("ir: reparent %q: %w", u.Name(id), ErrDuplicate)
		}
		if old := u.Scope(sym.Parent); old != nil {
			old.unbind(sym.Name)
		}
		sym.Parent = target
		ts.bind(sym.Name, id)
		if owned := sym.OwnedScope(); owned.IsValid() {
			u.Scope(owned).Parent = target
		}
		u.collectDeps(id, deps)
	}
	// a module moved alongside its users is not an external dependency
	for _, id := range syms {
		if sym := u.Symbol(id); sym.Kind == SymModule {
			delete(deps, u.Name(id))
		}
	}
	out := make([]string, 0, len(deps))
	for name := range deps {
		out = append(out, name)
	}
	slices.Sort(out)
	return out, nil
}

func (u *Unit) collectDeps(id SymbolID, deps map[string]struct{}) {
	sym := u.Symbol(id)
	if sym == nil {
		return
	}
	switch d := sym.Data.(type) {
	case *ExternalData:
		if d.Module != 0 {
			deps[u.Strings.MustLookup(d.Module)] = struct{}{}
		}
	case *FunctionData:
		for _, dep := range d.Deps {
			deps[u.Strings.MustLookup(dep)] = struct{}{}
		}
	case *ProgramData:
		for _, dep := range d.Deps {
			deps[u.Strings.MustLookup(dep)] = struct{}{}
		}
	case *ModuleData:
		for _, dep := range d.Deps {
			deps[u.Strings.MustLookup(dep)] = struct{}{}
		}
	}
	if owned := sym.OwnedScope(); owned.IsValid() {
		for _, child := range u.Scope(owned).Symbols() {
			u.collectDeps(child, deps)
		}
	}
}

// ScopePath returns the names of the symbols owning scope, outermost first.
func (u *Unit) ScopePath(scope ScopeID) []string {
	var path []string
	for id := scope; id.IsValid(); {
		sc := u.Scope(id)
		if sc == nil || !sc.Owner.IsValid() {
			break
		}
		path = append(path, u.Name(sc.Owner))
		id = sc.Parent
	}
	slices.Reverse(path)
	return path
}
