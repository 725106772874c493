package testkit

import (
	"fmt"

	"irlower/internal/ir"
	"irlower/internal/rewrite"
	"irlower/internal/source"
	"irlower/internal/verify"
)

// CheckSpanInvariants runs a minimal set of span invariants on a unit:
// 1) every non-empty span points into a file known to locs
// 2) Start never exceeds End
// Generated nodes carry the zero span and are ignored.
func CheckSpanInvariants(u *ir.Unit, locs *source.Locations) error {
	if u == nil || locs == nil {
		return fmt.Errorf("nil unit or locations")
	}
	var first error
	check := func(what string, sp source.Span) {
		if first != nil || sp == (source.Span{}) {
			return
		}
		if sp.Start > sp.End {
			first = fmt.Errorf("%s: inverted span %v", what, sp)
			return
		}
		if locs.File(sp.File) == nil {
			first = fmt.Errorf("%s: span %v points to unknown file %d", what, sp, sp.File)
		}
	}
	rewrite.Walk(u, rewrite.Visitor{
		Symbol: func(id ir.SymbolID) { check("symbol "+u.Name(id), u.Symbol(id).Span) },
		Stmt:   func(s *ir.Stmt, _ ir.ScopeID) { check(s.Kind.String(), s.Span) },
		Expr:   func(e *ir.Expr, _ ir.ScopeID) { check(e.Kind.String(), e.Span) },
	})
	return first
}

// CheckLowered runs the verifier and the span invariants; passes tests call
// it after every pipeline run.
func CheckLowered(u *ir.Unit, locs *source.Locations) error {
	if err := verify.Check(u); err != nil {
		return err
	}
	if locs == nil {
		return nil
	}
	return CheckSpanInvariants(u, locs)
}
