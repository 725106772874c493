package passes

import (
	"fmt"
	"strings"

	"irlower/internal/ir"
	"irlower/internal/rewrite"
	"irlower/internal/source"
)

// IntrinsicFunction replaces builtin calls by calls to generated functions
// specialised to the argument types. One function is generated per
// (intrinsic, type signature); later calls with the same signature reuse it.
type IntrinsicFunction struct{}

func (IntrinsicFunction) Name() string { return "intrinsic_function" }

func (IntrinsicFunction) Run(pc *Context, u *ir.Unit) (bool, error) {
	cache := pc.cache()
	r := rewrite.NewReplacer()
	r.On(ir.ExprIntrinsic, func(slot **ir.Expr, _ ir.ScopeID) error {
		e := *slot
		d := e.Data.(*ir.IntrinsicData)
		gen, ok := generators[d.ID]
		if !ok {
			return nil
		}
		if !gen.arity(len(d.Args)) {
			return fmt.Errorf("intrinsic %s: unexpected argument count %d", d.ID, len(d.Args))
		}
		for _, a := range d.Args {
			if !gen.accepts(u, a.Type) {
				// no implementation for this signature
				return nil
			}
		}
		fn, err := cache.materialize(u, d.ID, e.Type, d.Args, gen)
		if err != nil {
			return err
		}
		pc.node("intrinsic_function", u.Name(fn))
		*slot = u.Call(fn, d.Args, e.Span)
		return nil
	})
	n, err := rewrite.Exprs(u, r)
	if n > 0 {
		hits, misses := cache.Stats()
		pc.node("intrinsic_cache", fmt.Sprintf("hits=%d misses=%d", hits, misses))
	}
	return n > 0, err
}

type intrinsicKey struct {
	id  ir.IntrinsicID
	sig string
}

// intrinsicCache remembers generated implementations of one unit.
type intrinsicCache struct {
	unit   *ir.Unit
	syms   map[intrinsicKey]ir.SymbolID
	hits   int
	misses int
}

func newIntrinsicCache() *intrinsicCache {
	return &intrinsicCache{syms: make(map[intrinsicKey]ir.SymbolID)}
}

// Stats reports cache hits and misses since the last unit change.
func (c *intrinsicCache) Stats() (hits, misses int) { return c.hits, c.misses }

func (c *intrinsicCache) materialize(u *ir.Unit, id ir.IntrinsicID, result ir.TypeID, args []*ir.Expr, gen intrinsicGen) (ir.SymbolID, error) {
	if c.unit != u {
		c.unit = u
		clear(c.syms)
		c.hits, c.misses = 0, 0
	}
	tags := make([]string, len(args))
	for i, a := range args {
		tags[i] = typeTag(u, a.Type)
	}
	name := "_intrinsic_" + id.String() + "_" + strings.Join(tags, "_")
	if rt := typeTag(u, result); rt != tags[0] {
		name += "_to_" + rt
	}
	key := intrinsicKey{id: id, sig: strings.Join(tags, ",") + "->" + typeTag(u, result)}
	if sym, ok := c.syms[key]; ok {
		if s := u.Symbol(sym); s != nil && s.Alive() {
			c.hits++
			return sym, nil
		}
	}
	c.misses++

	h := helperFunc{name: name, result: result, flags: ir.FuncPure}
	for i, a := range args {
		h.params = append(h.params, helperParam{name: fmt.Sprintf("x%d", i+1), typ: a.Type})
	}
	sym, err := declareHelper(u, h, func(params []ir.SymbolID, res ir.SymbolID) []*ir.Stmt {
		return gen.body(u, params, res)
	})
	if err != nil {
		return ir.NoSymbolID, fmt.Errorf("intrinsic %s: %w", id, err)
	}
	c.syms[key] = sym
	return sym, nil
}

type intrinsicGen struct {
	arity   func(n int) bool
	accepts func(u *ir.Unit, t ir.TypeID) bool
	body    func(u *ir.Unit, params []ir.SymbolID, res ir.SymbolID) []*ir.Stmt
}

func exactly(n int) func(int) bool { return func(k int) bool { return k == n } }
func atLeast(n int) func(int) bool { return func(k int) bool { return k >= n } }

func intOrReal(u *ir.Unit, t ir.TypeID) bool {
	return u.Types.IsInteger(t) || u.Types.IsReal(t)
}

var generators = map[ir.IntrinsicID]intrinsicGen{
	ir.IntrinsicAbs:  {arity: exactly(1), accepts: intOrReal, body: genAbs},
	ir.IntrinsicSign: {arity: exactly(2), accepts: intOrReal, body: genSign},
	ir.IntrinsicMax:  {arity: atLeast(2), accepts: intOrReal, body: genExtremum(ir.CmpGt)},
	ir.IntrinsicMin:  {arity: atLeast(2), accepts: intOrReal, body: genExtremum(ir.CmpLt)},
	ir.IntrinsicMod:  {arity: exactly(2), accepts: intOrReal, body: genMod},
}

var nowhere = source.Span{}

// coerce converts e to typ when plain assignment would not.
func coerce(u *ir.Unit, e *ir.Expr, typ ir.TypeID) *ir.Expr {
	if u.Types.Convertible(e.Type, typ) {
		return e
	}
	from, to := u.Types.Kind(e.Type), u.Types.Kind(typ)
	switch {
	case from == ir.TypeReal && to == ir.TypeInteger:
		return u.Cast(ir.CastRealToInt, e, typ, e.Span)
	case from == ir.TypeInteger && to == ir.TypeInteger:
		return u.Cast(ir.CastIntToInt, e, typ, e.Span)
	case from == ir.TypeReal && to == ir.TypeReal:
		return u.Cast(ir.CastRealToReal, e, typ, e.Span)
	}
	return e
}

// res = x; if (x < 0) res = -x
func genAbs(u *ir.Unit, params []ir.SymbolID, res ir.SymbolID) []*ir.Stmt {
	x := params[0]
	rt := u.VarType(res)
	return []*ir.Stmt{
		u.Assign(u.Var(res, nowhere), coerce(u, u.Var(x, nowhere), rt), nowhere),
		u.If(u.Compare(ir.CmpLt, u.Var(x, nowhere), zeroOf(u, u.VarType(x), nowhere), nowhere),
			[]*ir.Stmt{u.Assign(u.Var(res, nowhere), coerce(u, u.Neg(u.Var(x, nowhere), nowhere), rt), nowhere)},
			nil, nowhere),
	}
}

// res = abs(a); if (b < 0) res = -res
func genSign(u *ir.Unit, params []ir.SymbolID, res ir.SymbolID) []*ir.Stmt {
	a, b := params[0], params[1]
	out := genAbs(u, []ir.SymbolID{a}, res)
	return append(out, u.If(
		u.Compare(ir.CmpLt, u.Var(b, nowhere), zeroOf(u, u.VarType(b), nowhere), nowhere),
		[]*ir.Stmt{u.Assign(u.Var(res, nowhere), u.Neg(u.Var(res, nowhere), nowhere), nowhere)},
		nil, nowhere))
}

// res = x1; if (xi op res) res = xi for every further argument
func genExtremum(op ir.CmpOp) func(u *ir.Unit, params []ir.SymbolID, res ir.SymbolID) []*ir.Stmt {
	return func(u *ir.Unit, params []ir.SymbolID, res ir.SymbolID) []*ir.Stmt {
		rt := u.VarType(res)
		out := []*ir.Stmt{u.Assign(u.Var(res, nowhere), coerce(u, u.Var(params[0], nowhere), rt), nowhere)}
		for _, p := range params[1:] {
			out = append(out, u.If(
				u.Compare(op, u.Var(p, nowhere), u.Var(res, nowhere), nowhere),
				[]*ir.Stmt{u.Assign(u.Var(res, nowhere), coerce(u, u.Var(p, nowhere), rt), nowhere)},
				nil, nowhere))
		}
		return out
	}
}

// res = a - int(a/p)*p, truncating toward zero like the integer division
func genMod(u *ir.Unit, params []ir.SymbolID, res ir.SymbolID) []*ir.Stmt {
	a, p := params[0], params[1]
	rt := u.VarType(res)
	quot := u.BinOp(ir.OpDiv, u.Var(a, nowhere), u.Var(p, nowhere), rt, nowhere)
	if u.Types.IsReal(rt) {
		i8 := u.Types.Integer(8)
		quot = u.Cast(ir.CastIntToReal, u.Cast(ir.CastRealToInt, quot, i8, nowhere), rt, nowhere)
	}
	prod := u.BinOp(ir.OpMul, quot, u.Var(p, nowhere), rt, nowhere)
	return []*ir.Stmt{
		u.Assign(u.Var(res, nowhere), coerce(u, u.BinOp(ir.OpSub, u.Var(a, nowhere), prod, rt, nowhere), rt), nowhere),
	}
}
