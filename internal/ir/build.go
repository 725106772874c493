package ir

import (
	"irlower/internal/source"
)

// Constructors used by the translator boundary, lowering passes and tests.

func (u *Unit) IntConst(v int64, typ TypeID, sp source.Span) *Expr {
	e := u.NewExpr(ExprIntConst, typ, sp, nil)
	e.Value = &Value{Kind: ValueInt, Int: v}
	return e
}

func (u *Unit) RealConst(v float64, typ TypeID, sp source.Span) *Expr {
	e := u.NewExpr(ExprRealConst, typ, sp, nil)
	e.Value = &Value{Kind: ValueReal, Real: v}
	return e
}

func (u *Unit) LogicalConst(v bool, sp source.Span) *Expr {
	e := u.NewExpr(ExprLogicalConst, u.Types.Logical(), sp, nil)
	e.Value = &Value{Kind: ValueLogical, Bool: v}
	return e
}

func (u *Unit) StringConst(v string, sp source.Span) *Expr {
	e := u.NewExpr(ExprStringConst, u.Types.Character(), sp, nil)
	e.Value = &Value{Kind: ValueString, Str: v}
	return e
}

// Var references a variable; the expression takes the variable's type.
func (u *Unit) Var(sym SymbolID, sp source.Span) *Expr {
	return u.NewExpr(ExprVar, u.VarType(sym), sp, &VarData{Sym: sym})
}

func (u *Unit) BinOp(op BinOp, l, r *Expr, typ TypeID, sp source.Span) *Expr {
	return u.NewExpr(ExprBinOp, typ, sp, &BinOpData{Op: op, Left: l, Right: r})
}

func (u *Unit) Compare(op CmpOp, l, r *Expr, sp source.Span) *Expr {
	return u.NewExpr(ExprCompare, u.Types.Logical(), sp, &CompareData{Op: op, Left: l, Right: r})
}

func (u *Unit) Logical(op LogicalOp, l, r *Expr, sp source.Span) *Expr {
	return u.NewExpr(ExprLogical, u.Types.Logical(), sp, &LogicalData{Op: op, Left: l, Right: r})
}

func (u *Unit) Not(arg *Expr, sp source.Span) *Expr {
	return u.NewExpr(ExprNot, u.Types.Logical(), sp, &UnaryData{Arg: arg})
}

func (u *Unit) Neg(arg *Expr, sp source.Span) *Expr {
	e := u.NewExpr(ExprNeg, arg.Type, sp, &UnaryData{Arg: arg})
	switch {
	case arg.Value != nil && arg.Value.Kind == ValueInt:
		e.Value = &Value{Kind: ValueInt, Int: -arg.Value.Int}
	case arg.Value != nil && arg.Value.Kind == ValueReal:
		e.Value = &Value{Kind: ValueReal, Real: -arg.Value.Real}
	}
	return e
}

func (u *Unit) Cast(kind CastKind, arg *Expr, typ TypeID, sp source.Span) *Expr {
	return u.NewExpr(ExprCast, typ, sp, &CastData{Kind: kind, Arg: arg})
}

// Call calls a function; the expression takes the type of its result.
func (u *Unit) Call(callee SymbolID, args []*Expr, sp source.Span) *Expr {
	typ := NoTypeID
	if fn := u.Function(callee); fn != nil && fn.Return.IsValid() {
		typ = u.VarType(fn.Return)
	}
	return u.NewExpr(ExprCall, typ, sp, &CallData{Callee: callee, Args: args})
}

func (u *Unit) Intrinsic(id IntrinsicID, args []*Expr, typ TypeID, sp source.Span) *Expr {
	return u.NewExpr(ExprIntrinsic, typ, sp, &IntrinsicData{ID: id, Args: args})
}

func (u *Unit) ArrayItem(base *Expr, indices []*Expr, sp source.Span) *Expr {
	return u.NewExpr(ExprArrayItem, u.Types.Scalar(base.Type), sp, &ArrayItemData{Base: base, Indices: indices})
}

func (u *Unit) ArraySection(base *Expr, ranges []Range, sp source.Span) *Expr {
	return u.NewExpr(ExprArraySection, base.Type, sp, &ArraySectionData{Base: base, Ranges: ranges})
}

func (u *Unit) ArrayBound(base *Expr, dim int, upper bool, typ TypeID, sp source.Span) *Expr {
	return u.NewExpr(ExprArrayBound, typ, sp, &ArrayBoundData{Base: base, Dim: dim, Upper: upper})
}

func (u *Unit) ArraySize(base *Expr, dim int, typ TypeID, sp source.Span) *Expr {
	return u.NewExpr(ExprArraySize, typ, sp, &ArraySizeData{Base: base, Dim: dim})
}

func (u *Unit) Member(base *Expr, member SymbolID, sp source.Span) *Expr {
	return u.NewExpr(ExprMember, u.VarType(member), sp, &MemberData{Base: base, Member: member})
}

func (u *Unit) Assign(target, value *Expr, sp source.Span) *Stmt {
	return u.NewStmt(StmtAssign, sp, &AssignData{Target: target, Value: value})
}

func (u *Unit) CallStmt(callee SymbolID, args []*Expr, sp source.Span) *Stmt {
	return u.NewStmt(StmtCall, sp, &CallStmtData{Callee: callee, Args: args})
}

func (u *Unit) DoLoop(v, start, end, step *Expr, body []*Stmt, sp source.Span) *Stmt {
	return u.NewStmt(StmtDoLoop, sp, &DoLoopData{Var: v, Start: start, End: end, Step: step, Body: body})
}

func (u *Unit) While(cond *Expr, body []*Stmt, sp source.Span) *Stmt {
	return u.NewStmt(StmtWhile, sp, &WhileData{Cond: cond, Body: body})
}

func (u *Unit) If(cond *Expr, then, els []*Stmt, sp source.Span) *Stmt {
	return u.NewStmt(StmtIf, sp, &IfData{Cond: cond, Then: then, Else: els})
}

func (u *Unit) Select(test *Expr, cases []Case, def []*Stmt, sp source.Span) *Stmt {
	return u.NewStmt(StmtSelect, sp, &SelectData{Test: test, Cases: cases, Default: def})
}

func (u *Unit) Print(args []*Expr, sp source.Span) *Stmt {
	return u.NewStmt(StmtPrint, sp, &PrintData{Args: args})
}

func (u *Unit) Return(sp source.Span) *Stmt { return u.NewStmt(StmtReturn, sp, nil) }
func (u *Unit) Exit(sp source.Span) *Stmt   { return u.NewStmt(StmtExit, sp, nil) }
func (u *Unit) Cycle(sp source.Span) *Stmt  { return u.NewStmt(StmtCycle, sp, nil) }

func (u *Unit) BlockCall(block SymbolID, sp source.Span) *Stmt {
	return u.NewStmt(StmtBlockCall, sp, &BlockCallData{Block: block})
}

// AddVariable declares a variable in scope.
func (u *Unit) AddVariable(scope ScopeID, name string, typ TypeID, intent Intent, sp source.Span) (SymbolID, error) {
	return u.NewSymbol(scope, SymVariable, name, sp, &VariableData{Type: typ, Intent: intent})
}

// AddFunction declares a procedure with a fresh nested scope. Parameters,
// result and body are filled in by the caller.
func (u *Unit) AddFunction(scope ScopeID, name string, access Access, sp source.Span) (SymbolID, *FunctionData, error) {
	fn := &FunctionData{Scope: u.NewScope(scope), Access: access}
	id, err := u.NewSymbol(scope, SymFunction, name, sp, fn)
	return id, fn, err
}

// AddParam declares a dummy argument of fn and appends it to the parameter list.
func (u *Unit) AddParam(fn *FunctionData, name string, typ TypeID, intent Intent, sp source.Span) (SymbolID, error) {
	id, err := u.AddVariable(fn.Scope, name, typ, intent, sp)
	if err != nil {
		return NoSymbolID, err
	}
	fn.Params = append(fn.Params, id)
	return id, nil
}

// AddResult declares the return variable of fn.
func (u *Unit) AddResult(fn *FunctionData, name string, typ TypeID, sp source.Span) (SymbolID, error) {
	id, err := u.AddVariable(fn.Scope, name, typ, IntentReturn, sp)
	if err != nil {
		return NoSymbolID, err
	}
	fn.Return = id
	return id, nil
}

// AddProgram declares the program entry point.
func (u *Unit) AddProgram(name string, sp source.Span) (SymbolID, *ProgramData, error) {
	p := &ProgramData{Scope: u.NewScope(u.Global)}
	id, err := u.NewSymbol(u.Global, SymProgram, name, sp, p)
	return id, p, err
}

// AddModule declares a module in scope.
func (u *Unit) AddModule(scope ScopeID, name string, sp source.Span) (SymbolID, *ModuleData, error) {
	m := &ModuleData{Scope: u.NewScope(scope)}
	id, err := u.NewSymbol(scope, SymModule, name, sp, m)
	return id, m, err
}

// AddBlock declares an anonymous block in scope under a unique name.
func (u *Unit) AddBlock(scope ScopeID, sp source.Span) (SymbolID, *BlockData, error) {
	b := &BlockData{Scope: u.NewScope(scope)}
	id, err := u.NewSymbol(scope, SymBlock, u.UniqueName(scope, "block"), sp, b)
	return id, b, err
}

// AddExternal declares name in scope as an alias of original in module.
func (u *Unit) AddExternal(scope ScopeID, name, module, original string, target SymbolID, sp source.Span) (SymbolID, error) {
	return u.NewSymbol(scope, SymExternal, name, sp, &ExternalData{
		Module:   u.Strings.InternName(module),
		Original: u.Strings.InternName(original),
		Target:   target,
	})
}

// AddGeneric declares an overload set.
func (u *Unit) AddGeneric(scope ScopeID, name string, procs []SymbolID, sp source.Span) (SymbolID, error) {
	return u.NewSymbol(scope, SymGenericProc, name, sp, &GenericProcData{Procs: procs})
}

// AddAggregate declares a struct, union or enum with a fresh member scope.
func (u *Unit) AddAggregate(scope ScopeID, kind SymbolKind, name string, sp source.Span) (SymbolID, *AggregateData, error) {
	a := &AggregateData{Scope: u.NewScope(scope)}
	id, err := u.NewSymbol(scope, kind, name, sp, a)
	return id, a, err
}

// AggregateKind maps an aggregate symbol kind to its value type kind.
func AggregateKind(k SymbolKind) TypeKind {
	switch k {
	case SymStruct:
		return TypeStruct
	case SymUnion:
		return TypeUnion
	case SymEnum:
		return TypeEnum
	}
	return TypeInvalid
}
