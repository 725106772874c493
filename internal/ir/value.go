package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueKind classifies a folded compile-time value.
type ValueKind uint8

const (
	ValueInvalid ValueKind = iota
	ValueInt
	ValueReal
	ValueLogical
	ValueString
)

func (k ValueKind) String() string {
	switch k {
	case ValueInt:
		return "int"
	case ValueReal:
		return "real"
	case ValueLogical:
		return "logical"
	case ValueString:
		return "string"
	default:
		return "invalid"
	}
}

// Value is a compile-time constant attached to an expression.
type Value struct {
	Kind ValueKind
	Int  int64
	Real float64
	Bool bool
	Str  string
}

func (v *Value) String() string {
	if v == nil {
		return "<nil>"
	}
	switch v.Kind {
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case ValueReal:
		out := strconv.FormatFloat(v.Real, 'g', -1, 64)
		if !strings.ContainsAny(out, ".eIN") {
			out += ".0"
		}
		return out
	case ValueLogical:
		if v.Bool {
			return ".true."
		}
		return ".false."
	case ValueString:
		return strconv.Quote(v.Str)
	default:
		return fmt.Sprintf("<value %d>", v.Kind)
	}
}

// ConstInt returns the integer value of e if it is known at compile time.
// A negated constant counts as a constant.
func ConstInt(e *Expr) (int64, bool) {
	if e == nil {
		return 0, false
	}
	if e.Value != nil && e.Value.Kind == ValueInt {
		return e.Value.Int, true
	}
	if e.Kind == ExprNeg {
		if v, ok := ConstInt(e.Data.(*UnaryData).Arg); ok {
			return -v, true
		}
	}
	return 0, false
}

// ConstReal returns the real value of e if it is known at compile time.
func ConstReal(e *Expr) (float64, bool) {
	if e == nil {
		return 0, false
	}
	if e.Value != nil && e.Value.Kind == ValueReal {
		return e.Value.Real, true
	}
	if e.Kind == ExprNeg {
		if v, ok := ConstReal(e.Data.(*UnaryData).Arg); ok {
			return -v, true
		}
	}
	return 0, false
}
