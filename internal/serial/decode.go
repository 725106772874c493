package serial

import (
	"fmt"

	"fortio.org/safecast"

	"irlower/internal/arena"
	"irlower/internal/ir"
	"irlower/internal/source"
)

// maxCount bounds every decoded list length.
const maxCount = 1 << 24

// Decode reads a stream written by Encode into the global scope of u.
// Scopes get fresh counters from u.Ctx; the serialized counters only key
// references inside the stream. External aliases are resolved afterwards
// with ResolveExternals.
func Decode(r Reader, u *ir.Unit) error {
	d := &decoder{
		r:       r,
		u:       u,
		scopes:  make(map[int64]ir.ScopeID),
		defined: make(map[ir.ScopeID]bool),
	}
	counter := r.Int64()
	if r.Err() == nil {
		d.scopes[counter] = u.Global
		d.defined[u.Global] = true
		d.symbols(u.Global)
	}
	if err := d.result(); err != nil {
		return err
	}
	if err := d.finish(); err != nil {
		return err
	}
	return ResolveExternals(u)
}

type decoder struct {
	r   Reader
	u   *ir.Unit
	err error

	scopes  map[int64]ir.ScopeID
	defined map[ir.ScopeID]bool
}

func (d *decoder) failf(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: "+format, append([]any{ErrMalformed}, args...)...)
	}
}

func (d *decoder) ok() bool { return d.err == nil && d.r.Err() == nil }

// result prefers the stream error: a truncated stream usually shows up as
// garbage before the reader notices the end.
func (d *decoder) result() error {
	if err := d.r.Err(); err != nil {
		return fmt.Errorf("serial: decode: %w", err)
	}
	if d.err != nil {
		return fmt.Errorf("serial: decode: %w", d.err)
	}
	return nil
}

// finish rejects references that were never backed by a definition.
func (d *decoder) finish() error {
	for counter, id := range d.scopes {
		if !d.defined[id] {
			return fmt.Errorf("serial: decode: %w: reference into unknown scope %d", ErrMalformed, counter)
		}
		for _, sym := range d.u.Scope(id).Symbols() {
			if d.u.Symbol(sym).Flags&ir.SymPlaceholder != 0 {
				return fmt.Errorf("serial: decode: %w: %s %q referenced but never defined",
					ErrMalformed, d.u.Symbol(sym).Kind, d.u.Name(sym))
			}
		}
	}
	return nil
}

func (d *decoder) count() int {
	n := d.r.Int64()
	if !d.ok() {
		return 0
	}
	if n < 0 || n > maxCount {
		d.failf("list length %d", n)
		return 0
	}
	return int(n)
}

func (d *decoder) int() int {
	v := d.r.Int64()
	out, err := safecast.Conv[int](v)
	if err != nil {
		d.failf("integer %d: %v", v, err)
	}
	return out
}

func (d *decoder) u32() uint32 {
	v := d.r.Int64()
	out, err := safecast.Conv[uint32](v)
	if err != nil {
		d.failf("offset %d: %v", v, err)
	}
	return out
}

func (d *decoder) bool() bool {
	switch v := d.r.Uint8(); v {
	case 0:
		return false
	case 1:
		return true
	default:
		d.failf("bool tag %d", v)
		return false
	}
}

func (d *decoder) span() source.Span {
	file := d.u32()
	start := d.u32()
	end := d.u32()
	return source.Span{File: source.FileID(file), Start: start, End: end}
}

func (d *decoder) str() arena.StrID {
	return d.u.Strings.Intern(d.r.String())
}

func (d *decoder) strs() []arena.StrID {
	n := d.count()
	if n == 0 {
		return nil
	}
	out := make([]arena.StrID, 0, n)
	for range n {
		out = append(out, d.str())
	}
	return out
}

// scopeFor maps a serialized counter to a scope of u, creating it on first
// sight. Its parent is fixed when the owning symbol is defined.
func (d *decoder) scopeFor(counter int64) ir.ScopeID {
	if id, ok := d.scopes[counter]; ok {
		return id
	}
	if counter <= 0 {
		d.failf("scope counter %d", counter)
		return d.u.Global
	}
	id := d.u.NewScope(ir.NoScopeID)
	d.scopes[counter] = id
	return id
}

func (d *decoder) ownedScope() ir.ScopeID {
	counter := d.r.Int64()
	if !d.ok() {
		return ir.NoScopeID
	}
	id := d.scopeFor(counter)
	if d.defined[id] {
		d.failf("scope %d defined twice", counter)
		return ir.NoScopeID
	}
	d.defined[id] = true
	d.symbols(id)
	return id
}

func (d *decoder) symbols(scope ir.ScopeID) {
	n := d.count()
	for range n {
		if !d.ok() {
			return
		}
		d.symbol(scope)
	}
}

func (d *decoder) symbolKind() ir.SymbolKind {
	k := ir.SymbolKind(d.r.Uint8())
	if d.ok() && (k < ir.SymVariable || k > ir.SymBlock) {
		d.failf("symbol tag %d", k)
	}
	return k
}

func (d *decoder) symbol(scope ir.ScopeID) {
	kind := d.symbolKind()
	name := d.r.String()
	sp := d.span()
	if !d.ok() {
		return
	}
	id, err := d.u.Declare(scope, kind, name)
	if err != nil {
		d.failf("%v", err)
		return
	}
	sym := d.u.Symbol(id)
	if sym.Flags&ir.SymPlaceholder == 0 {
		d.failf("%q: %w", name, ir.ErrDuplicate)
		return
	}
	if sym.Kind != kind {
		d.failf("%q referenced as %s, defined as %s", name, sym.Kind, kind)
		return
	}
	data := d.payload(kind)
	if !d.ok() {
		return
	}
	if err := d.u.Define(id, kind, sp, data); err != nil {
		d.failf("%v", err)
	}
}

func (d *decoder) payload(kind ir.SymbolKind) ir.SymbolData {
	switch kind {
	case ir.SymVariable:
		v := &ir.VariableData{Type: d.typ()}
		v.Intent = ir.Intent(d.r.Uint8())
		v.Storage = ir.Storage(d.r.Uint8())
		v.Access = ir.Access(d.r.Uint8())
		v.ABI = ir.ABI(d.r.Uint8())
		v.Init = d.expr()
		return v
	case ir.SymFunction:
		fn := &ir.FunctionData{Scope: d.ownedScope()}
		fn.Params = d.refs()
		fn.Return = d.ref()
		fn.Body = d.body()
		fn.ABI = ir.ABI(d.r.Uint8())
		fn.Access = ir.Access(d.r.Uint8())
		fn.Flags = ir.FuncFlags(d.r.Uint8())
		fn.Deps = d.strs()
		return fn
	case ir.SymProgram:
		p := &ir.ProgramData{Scope: d.ownedScope()}
		p.Body = d.body()
		p.Deps = d.strs()
		return p
	case ir.SymModule:
		m := &ir.ModuleData{Scope: d.ownedScope()}
		m.Deps = d.strs()
		m.LoadedFromCache = d.bool()
		return m
	case ir.SymGenericProc:
		g := &ir.GenericProcData{Procs: d.refs()}
		g.Access = ir.Access(d.r.Uint8())
		return g
	case ir.SymExternal:
		ext := &ir.ExternalData{Module: d.str()}
		ext.Original = d.str()
		ext.Access = ir.Access(d.r.Uint8())
		return ext
	case ir.SymStruct, ir.SymUnion, ir.SymEnum:
		a := &ir.AggregateData{Scope: d.ownedScope()}
		a.Members = d.refs()
		a.Access = ir.Access(d.r.Uint8())
		return a
	case ir.SymBlock:
		b := &ir.BlockData{Scope: d.ownedScope()}
		b.Body = d.body()
		return b
	}
	d.failf("symbol tag %d", kind)
	return nil
}

// ref reads a reference triple. A symbol not seen yet becomes a placeholder
// of the declared kind in its scope.
func (d *decoder) ref() ir.SymbolID {
	counter := d.r.Int64()
	kind := ir.SymbolKind(d.r.Uint8())
	if !d.ok() || kind == ir.SymInvalid {
		return ir.NoSymbolID
	}
	if kind > ir.SymBlock {
		d.failf("reference tag %d", kind)
		return ir.NoSymbolID
	}
	name := d.r.String()
	scope := d.scopeFor(counter)
	if !d.ok() {
		return ir.NoSymbolID
	}
	id, err := d.u.Declare(scope, kind, name)
	if err != nil {
		d.failf("%v", err)
		return ir.NoSymbolID
	}
	if got := d.u.Symbol(id).Kind; got != kind {
		d.failf("%q referenced as %s, bound as %s", name, kind, got)
		return ir.NoSymbolID
	}
	return id
}

func (d *decoder) refs() []ir.SymbolID {
	n := d.count()
	if n == 0 {
		return nil
	}
	out := make([]ir.SymbolID, 0, n)
	for range n {
		out = append(out, d.ref())
	}
	return out
}

func (d *decoder) typ() ir.TypeID {
	kind := ir.TypeKind(d.r.Uint8())
	if !d.ok() {
		return ir.NoTypeID
	}
	types := d.u.Types
	switch kind {
	case ir.TypeInvalid:
		return ir.NoTypeID
	case ir.TypeInteger:
		return types.Integer(d.r.Uint8())
	case ir.TypeReal:
		return types.Real(d.r.Uint8())
	case ir.TypeComplex:
		return types.Complex(d.r.Uint8())
	case ir.TypeLogical:
		d.r.Uint8()
		return types.Logical()
	case ir.TypeCharacter:
		d.r.Uint8()
		return types.Character()
	case ir.TypeArray:
		elem := d.typ()
		n := d.count()
		var dims []ir.Dim
		for range n {
			start := d.expr()
			length := d.expr()
			dims = append(dims, ir.Dim{Start: start, Length: length})
		}
		return types.Array(elem, dims)
	case ir.TypeStruct, ir.TypeUnion, ir.TypeEnum:
		return types.Aggregate(kind, d.ref())
	}
	d.failf("type tag %d", kind)
	return ir.NoTypeID
}

func (d *decoder) value() *ir.Value {
	kind := ir.ValueKind(d.r.Uint8())
	if !d.ok() {
		return nil
	}
	switch kind {
	case ir.ValueInvalid:
		return nil
	case ir.ValueInt:
		return &ir.Value{Kind: kind, Int: d.r.Int64()}
	case ir.ValueReal:
		return &ir.Value{Kind: kind, Real: d.r.Float64()}
	case ir.ValueLogical:
		return &ir.Value{Kind: kind, Bool: d.bool()}
	case ir.ValueString:
		return &ir.Value{Kind: kind, Str: d.r.String()}
	}
	d.failf("value tag %d", kind)
	return nil
}

func (d *decoder) exprs() []*ir.Expr {
	n := d.count()
	if n == 0 {
		return nil
	}
	out := make([]*ir.Expr, 0, n)
	for range n {
		out = append(out, d.expr())
	}
	return out
}

func (d *decoder) expr() *ir.Expr {
	kind := ir.ExprKind(d.r.Uint8())
	if !d.ok() || kind == ir.ExprInvalid {
		return nil
	}
	if kind > ir.ExprMember {
		d.failf("expression tag %d", kind)
		return nil
	}
	typ := d.typ()
	sp := d.span()
	val := d.value()
	var data ir.ExprData
	switch kind {
	case ir.ExprIntConst, ir.ExprRealConst, ir.ExprLogicalConst, ir.ExprStringConst:
	case ir.ExprVar:
		data = &ir.VarData{Sym: d.ref()}
	case ir.ExprBinOp:
		op := ir.BinOp(d.r.Uint8())
		l := d.expr()
		data = &ir.BinOpData{Op: op, Left: l, Right: d.expr()}
	case ir.ExprCompare:
		op := ir.CmpOp(d.r.Uint8())
		l := d.expr()
		data = &ir.CompareData{Op: op, Left: l, Right: d.expr()}
	case ir.ExprLogical:
		op := ir.LogicalOp(d.r.Uint8())
		l := d.expr()
		data = &ir.LogicalData{Op: op, Left: l, Right: d.expr()}
	case ir.ExprNot, ir.ExprNeg:
		data = &ir.UnaryData{Arg: d.expr()}
	case ir.ExprCast:
		ck := ir.CastKind(d.r.Uint8())
		data = &ir.CastData{Kind: ck, Arg: d.expr()}
	case ir.ExprCall:
		callee := d.ref()
		data = &ir.CallData{Callee: callee, Args: d.exprs()}
	case ir.ExprIntrinsic:
		id := ir.IntrinsicID(d.r.Uint8())
		data = &ir.IntrinsicData{ID: id, Args: d.exprs()}
	case ir.ExprArrayItem:
		base := d.expr()
		data = &ir.ArrayItemData{Base: base, Indices: d.exprs()}
	case ir.ExprArraySection:
		base := d.expr()
		n := d.count()
		ranges := make([]ir.Range, 0, n)
		for range n {
			start := d.expr()
			end := d.expr()
			ranges = append(ranges, ir.Range{Start: start, End: end, Step: d.expr()})
		}
		data = &ir.ArraySectionData{Base: base, Ranges: ranges}
	case ir.ExprArrayBound:
		base := d.expr()
		dim := d.int()
		data = &ir.ArrayBoundData{Base: base, Dim: dim, Upper: d.bool()}
	case ir.ExprArraySize:
		base := d.expr()
		data = &ir.ArraySizeData{Base: base, Dim: d.int()}
	case ir.ExprMember:
		base := d.expr()
		data = &ir.MemberData{Base: base, Member: d.ref()}
	}
	if !d.ok() {
		return nil
	}
	e := d.u.NewExpr(kind, typ, sp, data)
	e.Value = val
	return e
}

func (d *decoder) body() []*ir.Stmt {
	n := d.count()
	if n == 0 {
		return nil
	}
	out := make([]*ir.Stmt, 0, n)
	for range n {
		s := d.stmt()
		if s == nil {
			return nil
		}
		out = append(out, s)
	}
	return out
}

func (d *decoder) stmt() *ir.Stmt {
	kind := ir.StmtKind(d.r.Uint8())
	if !d.ok() {
		return nil
	}
	if kind == ir.StmtInvalid || kind > ir.StmtBlockCall {
		d.failf("statement tag %d", kind)
		return nil
	}
	sp := d.span()
	var data ir.StmtData
	switch kind {
	case ir.StmtReturn, ir.StmtExit, ir.StmtCycle:
	case ir.StmtAssign:
		target := d.expr()
		data = &ir.AssignData{Target: target, Value: d.expr()}
	case ir.StmtCall:
		callee := d.ref()
		data = &ir.CallStmtData{Callee: callee, Args: d.exprs()}
	case ir.StmtDoLoop:
		loop := &ir.DoLoopData{Var: d.expr()}
		loop.Start = d.expr()
		loop.End = d.expr()
		loop.Step = d.expr()
		loop.Body = d.body()
		data = loop
	case ir.StmtWhile:
		cond := d.expr()
		data = &ir.WhileData{Cond: cond, Body: d.body()}
	case ir.StmtIf:
		cond := d.expr()
		then := d.body()
		data = &ir.IfData{Cond: cond, Then: then, Else: d.body()}
	case ir.StmtSelect:
		sel := &ir.SelectData{Test: d.expr()}
		n := d.count()
		for range n {
			var c ir.Case
			c.IsRange = d.bool()
			c.Values = d.exprs()
			c.Lo = d.expr()
			c.Hi = d.expr()
			c.Body = d.body()
			sel.Cases = append(sel.Cases, c)
		}
		sel.Default = d.body()
		data = sel
	case ir.StmtPrint:
		data = &ir.PrintData{Args: d.exprs()}
	case ir.StmtBlockCall:
		data = &ir.BlockCallData{Block: d.ref()}
	}
	if !d.ok() {
		return nil
	}
	return d.u.NewStmt(kind, sp, data)
}

// ResolveExternals points every unresolved ExternalSymbol at the symbol it
// aliases, looked up by module name in the global scope and then by
// original name in that module. Aliases of modules that are not loaded yet
// stay unresolved. A second attempt picks up aliases whose module was
// itself reached through an alias resolved in the first one.
func ResolveExternals(u *ir.Unit) error {
	var pending []ir.SymbolID
	var collect func(scope ir.ScopeID)
	collect = func(scope ir.ScopeID) {
		for _, id := range u.SortedSymbols(scope) {
			sym := u.Symbol(id)
			if !sym.Alive() {
				continue
			}
			if ext, ok := sym.Data.(*ir.ExternalData); ok && !ext.Target.IsValid() {
				pending = append(pending, id)
			}
			if owned := sym.OwnedScope(); owned.IsValid() {
				collect(owned)
			}
		}
	}
	collect(u.Global)

	var missing []ir.SymbolID
	for attempt := range 2 {
		missing = missing[:0]
		rest := pending[:0]
		for _, id := range pending {
			switch resolveExternal(u, id) {
			case extResolved:
			case extMissingName:
				missing = append(missing, id)
				rest = append(rest, id)
			case extNoModule:
				if attempt == 0 {
					rest = append(rest, id)
				}
			}
		}
		pending = rest
		if len(pending) == 0 {
			return nil
		}
	}
	if len(missing) > 0 {
		ext := u.Symbol(missing[0]).Data.(*ir.ExternalData)
		return fmt.Errorf("%w: %q from module %q",
			ErrUnresolved, u.Strings.MustLookup(ext.Original), u.Strings.MustLookup(ext.Module))
	}
	return nil
}

type extStatus uint8

const (
	extResolved extStatus = iota
	extNoModule
	extMissingName
)

func resolveExternal(u *ir.Unit, id ir.SymbolID) extStatus {
	ext := u.Symbol(id).Data.(*ir.ExternalData)
	modID, ok := u.ResolveLocal(u.Global, u.Strings.MustLookup(ext.Module))
	if !ok {
		return extNoModule
	}
	mod, ok := u.Symbol(u.Deref(modID)).Data.(*ir.ModuleData)
	if !ok {
		return extNoModule
	}
	target, ok := u.ResolveLocal(mod.Scope, u.Strings.MustLookup(ext.Original))
	if !ok || target == id || !u.Symbol(target).Alive() {
		return extMissingName
	}
	ext.Target = target
	return extResolved
}
