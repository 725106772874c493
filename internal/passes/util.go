package passes

import (
	"fmt"
	"strconv"

	"irlower/internal/ir"
	"irlower/internal/source"
)

// newTemp declares a local variable under a name derived from base that is
// free in scope.
func newTemp(u *ir.Unit, scope ir.ScopeID, base string, typ ir.TypeID, sp source.Span) (ir.SymbolID, error) {
	return u.AddVariable(scope, u.UniqueName(scope, base), typ, ir.IntentLocal, sp)
}

// localInt returns the integer variable name in scope, declaring it when it
// does not exist yet. Loop indices of generated code are shared this way.
func localInt(u *ir.Unit, scope ir.ScopeID, name string, sp source.Span) (ir.SymbolID, error) {
	if id, ok := u.ResolveLocal(scope, name); ok {
		if u.Types.IsInteger(u.VarType(id)) {
			return id, nil
		}
		return ir.NoSymbolID, fmt.Errorf("%s is bound to a non-integer symbol", name)
	}
	return u.AddVariable(scope, name, u.Types.Integer(4), ir.IntentLocal, sp)
}

// typeTag is the short spelling of a scalar type used in generated names.
func typeTag(u *ir.Unit, typ ir.TypeID) string {
	ty := u.Types.Get(typ)
	if ty == nil {
		return "x"
	}
	w := strconv.Itoa(int(ty.Width))
	switch ty.Kind {
	case ir.TypeInteger:
		return "i" + w
	case ir.TypeReal:
		return "r" + w
	case ir.TypeComplex:
		return "c" + w
	case ir.TypeLogical:
		return "l" + w
	case ir.TypeCharacter:
		return "ch"
	}
	return "x"
}

// isScalarNumeric reports integer, real and complex scalars.
func isScalarNumeric(u *ir.Unit, typ ir.TypeID) bool {
	switch u.Types.Kind(typ) {
	case ir.TypeInteger, ir.TypeReal, ir.TypeComplex:
		return true
	}
	return false
}

// oneOf returns the constant 1 of the given numeric type.
func oneOf(u *ir.Unit, typ ir.TypeID, sp source.Span) *ir.Expr {
	if u.Types.IsReal(typ) {
		return u.RealConst(1, typ, sp)
	}
	return u.IntConst(1, typ, sp)
}

// helperFunc describes a generated procedure placed in the global scope.
type helperFunc struct {
	name   string
	params []helperParam
	result ir.TypeID
	flags  ir.FuncFlags
}

type helperParam struct {
	name string
	typ  ir.TypeID
}

// declareHelper returns the global function called h.name, creating it with
// fresh parameters and result when it does not exist. body receives the
// parameter and result symbols and returns the function body.
func declareHelper(u *ir.Unit, h helperFunc, body func(params []ir.SymbolID, res ir.SymbolID) []*ir.Stmt) (ir.SymbolID, error) {
	if id, ok := u.ResolveLocal(u.Global, h.name); ok {
		if u.Function(id) == nil {
			return ir.NoSymbolID, fmt.Errorf("%s is bound to a %s", h.name, u.Symbol(id).Kind)
		}
		return id, nil
	}
	id, fn, err := u.AddFunction(u.Global, h.name, ir.AccessPrivate, source.Span{})
	if err != nil {
		return ir.NoSymbolID, err
	}
	fn.Flags = h.flags | ir.FuncGenerated
	params := make([]ir.SymbolID, len(h.params))
	for i, p := range h.params {
		if params[i], err = u.AddParam(fn, p.name, p.typ, ir.IntentIn, source.Span{}); err != nil {
			return ir.NoSymbolID, err
		}
	}
	res, err := u.AddResult(fn, h.name+"_res", h.result, source.Span{})
	if err != nil {
		return ir.NoSymbolID, err
	}
	fn.Body = body(params, res)
	return id, nil
}

// isHelper reports generated optimization helpers, which the numeric
// peepholes must not rewrite.
func isHelper(u *ir.Unit, id ir.SymbolID) bool {
	fn := u.Function(id)
	return fn != nil && fn.Flags.HasFlag(ir.FuncOptimizationHelper)
}
