package ir

import (
	"irlower/internal/source"
)

// ExprKind enumerates expression node kinds.
type ExprKind uint8

const (
	ExprInvalid ExprKind = iota
	ExprIntConst
	ExprRealConst
	ExprLogicalConst
	ExprStringConst
	ExprVar
	ExprBinOp
	ExprCompare
	ExprLogical
	ExprNot
	ExprNeg
	ExprCast
	ExprCall
	ExprIntrinsic
	ExprArrayItem
	ExprArraySection
	ExprArrayBound
	ExprArraySize
	ExprMember
)

func (k ExprKind) String() string {
	switch k {
	case ExprIntConst:
		return "IntConst"
	case ExprRealConst:
		return "RealConst"
	case ExprLogicalConst:
		return "LogicalConst"
	case ExprStringConst:
		return "StringConst"
	case ExprVar:
		return "Var"
	case ExprBinOp:
		return "BinOp"
	case ExprCompare:
		return "Compare"
	case ExprLogical:
		return "Logical"
	case ExprNot:
		return "Not"
	case ExprNeg:
		return "Neg"
	case ExprCast:
		return "Cast"
	case ExprCall:
		return "Call"
	case ExprIntrinsic:
		return "Intrinsic"
	case ExprArrayItem:
		return "ArrayItem"
	case ExprArraySection:
		return "ArraySection"
	case ExprArrayBound:
		return "ArrayBound"
	case ExprArraySize:
		return "ArraySize"
	case ExprMember:
		return "Member"
	default:
		return "Invalid"
	}
}

// IsConst reports whether k is a literal kind.
func (k ExprKind) IsConst() bool {
	return k >= ExprIntConst && k <= ExprStringConst
}

// Expr is an expression node. Literal kinds keep their value in Value and
// have no payload; other kinds may carry a folded Value as well.
type Expr struct {
	Kind  ExprKind
	Type  TypeID
	Span  source.Span
	Value *Value
	Data  ExprData
}

// ExprData is implemented by every expression payload.
type ExprData interface {
	exprData()
}

// BinOp enumerates arithmetic operators.
type BinOp uint8

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpPow
)

func (op BinOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpPow:
		return "**"
	default:
		return "?"
	}
}

// CmpOp enumerates comparison operators.
type CmpOp uint8

const (
	CmpEq CmpOp = iota
	CmpNotEq
	CmpLt
	CmpLtE
	CmpGt
	CmpGtE
)

func (op CmpOp) String() string {
	switch op {
	case CmpEq:
		return "=="
	case CmpNotEq:
		return "/="
	case CmpLt:
		return "<"
	case CmpLtE:
		return "<="
	case CmpGt:
		return ">"
	case CmpGtE:
		return ">="
	default:
		return "?"
	}
}

// LogicalOp enumerates logical connectives.
type LogicalOp uint8

const (
	LogAnd LogicalOp = iota
	LogOr
)

func (op LogicalOp) String() string {
	if op == LogAnd {
		return ".and."
	}
	return ".or."
}

// CastKind enumerates implicit conversions made explicit.
type CastKind uint8

const (
	CastIntToReal CastKind = iota
	CastRealToInt
	CastIntToInt
	CastRealToReal
	CastIntToComplex
	CastRealToComplex
	CastLogicalToInt
)

func (k CastKind) String() string {
	switch k {
	case CastIntToReal:
		return "int_to_real"
	case CastRealToInt:
		return "real_to_int"
	case CastIntToInt:
		return "int_to_int"
	case CastRealToReal:
		return "real_to_real"
	case CastIntToComplex:
		return "int_to_complex"
	case CastRealToComplex:
		return "real_to_complex"
	case CastLogicalToInt:
		return "logical_to_int"
	default:
		return "cast"
	}
}

// VarData references a variable (or any value-bearing symbol).
type VarData struct {
	Sym SymbolID
}

// BinOpData holds an arithmetic operation.
type BinOpData struct {
	Op    BinOp
	Left  *Expr
	Right *Expr
}

// CompareData holds a comparison; its type is logical.
type CompareData struct {
	Op    CmpOp
	Left  *Expr
	Right *Expr
}

// LogicalData holds .and./.or.
type LogicalData struct {
	Op    LogicalOp
	Left  *Expr
	Right *Expr
}

// UnaryData is the payload of Not and Neg.
type UnaryData struct {
	Arg *Expr
}

// CastData converts Arg.
type CastData struct {
	Kind CastKind
	Arg  *Expr
}

// CallData is a function call used as a value.
type CallData struct {
	Callee SymbolID
	Args   []*Expr
}

// IntrinsicData is a call to a builtin that has no implementation yet.
type IntrinsicData struct {
	ID   IntrinsicID
	Args []*Expr
}

// ArrayItemData indexes one element.
type ArrayItemData struct {
	Base    *Expr
	Indices []*Expr
}

// Range is one dimension of a section. Nil fields are omitted bounds.
type Range struct {
	Start *Expr
	End   *Expr
	Step  *Expr
}

// ArraySectionData selects a strided sub-array.
type ArraySectionData struct {
	Base   *Expr
	Ranges []Range
}

// ArrayBoundData is lbound(Base, Dim) or ubound(Base, Dim); Dim is 1-based.
type ArrayBoundData struct {
	Base  *Expr
	Dim   int
	Upper bool
}

// ArraySizeData is size(Base, Dim); Dim 0 means the total size.
type ArraySizeData struct {
	Base *Expr
	Dim  int
}

// MemberData selects a struct member.
type MemberData struct {
	Base   *Expr
	Member SymbolID
}

func (*VarData) exprData()          {}
func (*BinOpData) exprData()        {}
func (*CompareData) exprData()      {}
func (*LogicalData) exprData()      {}
func (*UnaryData) exprData()        {}
func (*CastData) exprData()         {}
func (*CallData) exprData()         {}
func (*IntrinsicData) exprData()    {}
func (*ArrayItemData) exprData()    {}
func (*ArraySectionData) exprData() {}
func (*ArrayBoundData) exprData()   {}
func (*ArraySizeData) exprData()    {}
func (*MemberData) exprData()       {}

// Children returns the addresses of e's direct sub-expression slots.
func (e *Expr) Children() []**Expr {
	if e == nil {
		return nil
	}
	switch d := e.Data.(type) {
	case nil, *VarData:
		return nil
	case *BinOpData:
		return []**Expr{&d.Left, &d.Right}
	case *CompareData:
		return []**Expr{&d.Left, &d.Right}
	case *LogicalData:
		return []**Expr{&d.Left, &d.Right}
	case *UnaryData:
		return []**Expr{&d.Arg}
	case *CastData:
		return []**Expr{&d.Arg}
	case *CallData:
		return argSlots(d.Args)
	case *IntrinsicData:
		return argSlots(d.Args)
	case *ArrayItemData:
		return append([]**Expr{&d.Base}, argSlots(d.Indices)...)
	case *ArraySectionData:
		out := []**Expr{&d.Base}
		for i := range d.Ranges {
			r := &d.Ranges[i]
			out = append(out, &r.Start, &r.End, &r.Step)
		}
		return out
	case *ArrayBoundData:
		return []**Expr{&d.Base}
	case *ArraySizeData:
		return []**Expr{&d.Base}
	case *MemberData:
		return []**Expr{&d.Base}
	}
	return nil
}

func argSlots(args []*Expr) []**Expr {
	out := make([]**Expr, len(args))
	for i := range args {
		out[i] = &args[i]
	}
	return out
}
