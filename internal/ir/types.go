package ir

import (
	"fmt"
	"strings"

	"irlower/internal/arena"
)

// TypeKind enumerates type descriptor kinds.
type TypeKind uint8

const (
	TypeInvalid TypeKind = iota
	TypeInteger
	TypeReal
	TypeComplex
	TypeLogical
	TypeCharacter
	TypeArray
	TypeStruct
	TypeUnion
	TypeEnum
)

func (k TypeKind) String() string {
	switch k {
	case TypeInteger:
		return "integer"
	case TypeReal:
		return "real"
	case TypeComplex:
		return "complex"
	case TypeLogical:
		return "logical"
	case TypeCharacter:
		return "character"
	case TypeArray:
		return "array"
	case TypeStruct:
		return "struct"
	case TypeUnion:
		return "union"
	case TypeEnum:
		return "enum"
	default:
		return "invalid"
	}
}

// Dim describes one array dimension. Start and Length are either both set
// or both nil (assumed/deferred shape).
type Dim struct {
	Start  *Expr
	Length *Expr
}

// Type is a type descriptor.
type Type struct {
	Kind  TypeKind
	Width uint8    // bytes, scalar kinds only
	Elem  TypeID   // TypeArray
	Dims  []Dim    // TypeArray
	Decl  SymbolID // TypeStruct, TypeUnion, TypeEnum
}

type scalarKey struct {
	kind  TypeKind
	width uint8
	decl  SymbolID
}

// Types stores the type descriptors of one unit. Scalar and aggregate
// references are interned; arrays are stored as given because their
// dimensions hold expressions.
type Types struct {
	pool    *arena.Pool[Type]
	scalars map[scalarKey]TypeID
}

// NewTypes creates an empty type table.
func NewTypes() *Types {
	return &Types{
		pool:    arena.NewPool[Type](64),
		scalars: make(map[scalarKey]TypeID),
	}
}

func (t *Types) intern(kind TypeKind, width uint8, decl SymbolID) TypeID {
	key := scalarKey{kind: kind, width: width, decl: decl}
	if id, ok := t.scalars[key]; ok {
		return id
	}
	raw, _ := t.pool.New(Type{Kind: kind, Width: width, Decl: decl})
	id := TypeID(raw)
	t.scalars[key] = id
	return id
}

func (t *Types) Integer(width uint8) TypeID { return t.intern(TypeInteger, width, NoSymbolID) }
func (t *Types) Real(width uint8) TypeID    { return t.intern(TypeReal, width, NoSymbolID) }
func (t *Types) Complex(width uint8) TypeID { return t.intern(TypeComplex, width, NoSymbolID) }
func (t *Types) Logical() TypeID            { return t.intern(TypeLogical, 4, NoSymbolID) }
func (t *Types) Character() TypeID          { return t.intern(TypeCharacter, 1, NoSymbolID) }

// Aggregate returns the type of values of a struct, union or enum declaration.
func (t *Types) Aggregate(kind TypeKind, decl SymbolID) TypeID {
	return t.intern(kind, 0, decl)
}

// Array creates a new array type.
func (t *Types) Array(elem TypeID, dims []Dim) TypeID {
	raw, _ := t.pool.New(Type{Kind: TypeArray, Elem: elem, Dims: dims})
	return TypeID(raw)
}

// Get returns the descriptor for id or nil.
func (t *Types) Get(id TypeID) *Type {
	return t.pool.Get(uint32(id))
}

// Len reports the number of descriptors.
func (t *Types) Len() uint32 { return t.pool.Len() }

// Kind returns the kind of id, TypeInvalid for unknown ids.
func (t *Types) Kind(id TypeID) TypeKind {
	if ty := t.Get(id); ty != nil {
		return ty.Kind
	}
	return TypeInvalid
}

// Scalar returns the element type of arrays and id itself otherwise.
func (t *Types) Scalar(id TypeID) TypeID {
	if ty := t.Get(id); ty != nil && ty.Kind == TypeArray {
		return ty.Elem
	}
	return id
}

// Rank returns the number of dimensions (0 for scalars).
func (t *Types) Rank(id TypeID) int {
	if ty := t.Get(id); ty != nil && ty.Kind == TypeArray {
		return len(ty.Dims)
	}
	return 0
}

func (t *Types) IsReal(id TypeID) bool    { return t.Kind(id) == TypeReal }
func (t *Types) IsInteger(id TypeID) bool { return t.Kind(id) == TypeInteger }
func (t *Types) IsLogical(id TypeID) bool { return t.Kind(id) == TypeLogical }

// IsAggregate reports whether values of id are arrays or structs. Functions
// returning such values are converted into subroutines.
func (t *Types) IsAggregate(id TypeID) bool {
	switch t.Kind(id) {
	case TypeArray, TypeStruct, TypeUnion:
		return true
	}
	return false
}

func numericRank(k TypeKind) int {
	switch k {
	case TypeInteger:
		return 1
	case TypeReal:
		return 2
	case TypeComplex:
		return 3
	}
	return 0
}

// Convertible reports whether a value of type from may be stored into a
// slot of type to under the implicit conversion rules: identical kinds,
// widening integer -> real -> complex, and element-wise for arrays of equal rank.
func (t *Types) Convertible(from, to TypeID) bool {
	if from == to {
		return true
	}
	a, b := t.Get(from), t.Get(to)
	if a == nil || b == nil {
		return false
	}
	if a.Kind == TypeArray || b.Kind == TypeArray {
		if a.Kind == TypeArray && b.Kind == TypeArray {
			return len(a.Dims) == len(b.Dims) && t.Convertible(a.Elem, b.Elem)
		}
		// scalar broadcast into an array
		if b.Kind == TypeArray {
			return t.Convertible(from, b.Elem)
		}
		return false
	}
	if a.Kind == b.Kind {
		return a.Decl == b.Decl
	}
	ra, rb := numericRank(a.Kind), numericRank(b.Kind)
	return ra > 0 && rb > 0 && ra <= rb
}

// Same reports whether a and b describe the same type. Array types are not
// interned, so they compare by rank and element type.
func (t *Types) Same(a, b TypeID) bool {
	if a == b {
		return true
	}
	x, y := t.Get(a), t.Get(b)
	if x == nil || y == nil || x.Kind != y.Kind {
		return false
	}
	if x.Kind == TypeArray {
		return len(x.Dims) == len(y.Dims) && t.Same(x.Elem, y.Elem)
	}
	return x.Width == y.Width && x.Decl == y.Decl
}

// Compatible reports whether two operands of a binary or compare node agree.
func (t *Types) Compatible(a, b TypeID) bool {
	return t.Convertible(a, b) || t.Convertible(b, a)
}

// String renders a type without dimension expressions; see Printer for the
// full form.
func (t *Types) String(id TypeID) string {
	ty := t.Get(id)
	if ty == nil {
		return "?"
	}
	switch ty.Kind {
	case TypeInteger, TypeReal, TypeComplex, TypeLogical:
		return fmt.Sprintf("%s(%d)", ty.Kind, ty.Width)
	case TypeCharacter:
		return "character"
	case TypeArray:
		return t.String(ty.Elem) + "[" + strings.Repeat(":", len(ty.Dims)) + "]"
	case TypeStruct, TypeUnion, TypeEnum:
		return fmt.Sprintf("%s#%d", ty.Kind, ty.Decl)
	}
	return "?"
}
