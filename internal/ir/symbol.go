package ir

import (
	"irlower/internal/arena"
	"irlower/internal/source"
)

// SymbolKind classifies a symbol.
type SymbolKind uint8

const (
	SymInvalid SymbolKind = iota
	SymVariable
	SymFunction
	SymProgram
	SymModule
	SymGenericProc
	SymExternal
	SymStruct
	SymUnion
	SymEnum
	SymBlock
)

func (k SymbolKind) String() string {
	switch k {
	case SymVariable:
		return "variable"
	case SymFunction:
		return "function"
	case SymProgram:
		return "program"
	case SymModule:
		return "module"
	case SymGenericProc:
		return "generic"
	case SymExternal:
		return "external"
	case SymStruct:
		return "struct"
	case SymUnion:
		return "union"
	case SymEnum:
		return "enum"
	case SymBlock:
		return "block"
	default:
		return "invalid"
	}
}

// SymbolFlags encode misc attributes for quick checks.
type SymbolFlags uint8

const (
	// SymPlaceholder marks a symbol created for a forward reference that
	// has not been defined yet.
	SymPlaceholder SymbolFlags = 1 << iota
	// SymRemoved marks a symbol erased from its scope.
	SymRemoved
)

// Access is the visibility of a symbol outside its module.
type Access uint8

const (
	AccessPublic Access = iota
	AccessPrivate
)

func (a Access) String() string {
	if a == AccessPrivate {
		return "private"
	}
	return "public"
}

// Intent is the intent/mutability class of a variable.
type Intent uint8

const (
	IntentLocal Intent = iota
	IntentIn
	IntentOut
	IntentInOut
	IntentReturn
	IntentUnspecified
)

func (i Intent) String() string {
	switch i {
	case IntentLocal:
		return "local"
	case IntentIn:
		return "in"
	case IntentOut:
		return "out"
	case IntentInOut:
		return "inout"
	case IntentReturn:
		return "return"
	default:
		return "unspecified"
	}
}

// IsArg reports whether the intent belongs to a dummy argument.
func (i Intent) IsArg() bool {
	return i == IntentIn || i == IntentOut || i == IntentInOut || i == IntentUnspecified
}

// Storage distinguishes plain variables from named constants.
type Storage uint8

const (
	StorageDefault Storage = iota
	StorageParameter
	StorageSave
)

func (s Storage) String() string {
	switch s {
	case StorageParameter:
		return "parameter"
	case StorageSave:
		return "save"
	default:
		return "default"
	}
}

// ABI is the calling-convention tag of a procedure or variable.
type ABI uint8

const (
	ABISource ABI = iota
	// ABIExternal is declaration only, defined elsewhere.
	ABIExternal
	ABIBindC
	ABIIntrinsic
)

func (a ABI) String() string {
	switch a {
	case ABISource:
		return "source"
	case ABIExternal:
		return "external"
	case ABIBindC:
		return "bind_c"
	case ABIIntrinsic:
		return "intrinsic"
	default:
		return "unknown"
	}
}

// FuncFlags describe generated and special procedures.
type FuncFlags uint8

const (
	FuncPure FuncFlags = 1 << iota
	FuncElemental
	// FuncGenerated marks an intrinsic implementation.
	FuncGenerated
	// FuncOptimizationHelper marks helpers introduced by numeric peepholes;
	// peephole passes never rewrite their bodies.
	FuncOptimizationHelper
)

// HasFlag checks if a flag is set.
func (f FuncFlags) HasFlag(flag FuncFlags) bool {
	return f&flag != 0
}

// Strings returns a slice of textual flag labels.
func (f FuncFlags) Strings() []string {
	labels := make([]string, 0, 4)
	if f.HasFlag(FuncPure) {
		labels = append(labels, "pure")
	}
	if f.HasFlag(FuncElemental) {
		labels = append(labels, "elemental")
	}
	if f.HasFlag(FuncGenerated) {
		labels = append(labels, "generated")
	}
	if f.HasFlag(FuncOptimizationHelper) {
		labels = append(labels, "opt_helper")
	}
	return labels
}

// Symbol is a named entity owned by a scope.
type Symbol struct {
	Kind   SymbolKind
	Name   arena.StrID
	Parent ScopeID
	Span   source.Span
	Flags  SymbolFlags
	Data   SymbolData
}

// SymbolData is implemented by every symbol payload.
type SymbolData interface {
	symbolData()
}

// VariableData describes a variable, dummy argument or named constant.
type VariableData struct {
	Type    TypeID
	Intent  Intent
	Storage Storage
	Access  Access
	ABI     ABI
	Init    *Expr
}

// FunctionData describes a function (Return set) or a subroutine.
type FunctionData struct {
	Scope  ScopeID
	Params []SymbolID
	Body   []*Stmt
	Return SymbolID
	ABI    ABI
	Access Access
	Flags  FuncFlags
	Deps   []arena.StrID
}

// ProgramData describes the program entry point.
type ProgramData struct {
	Scope ScopeID
	Body  []*Stmt
	Deps  []arena.StrID
}

// ModuleData describes a module.
type ModuleData struct {
	Scope           ScopeID
	Deps            []arena.StrID
	LoadedFromCache bool
}

// GenericProcData is a named overload set.
type GenericProcData struct {
	Procs  []SymbolID
	Access Access
}

// ExternalData aliases a symbol owned by another scope, usually another
// module. Target is resolved through the unit and never owned.
type ExternalData struct {
	Module   arena.StrID
	Original arena.StrID
	Target   SymbolID
	Access   Access
}

// AggregateData describes struct, union and enum declarations.
type AggregateData struct {
	Scope   ScopeID
	Members []SymbolID
	Access  Access
}

// BlockData is an anonymous nested scope with a body.
type BlockData struct {
	Scope ScopeID
	Body  []*Stmt
}

func (*VariableData) symbolData()    {}
func (*FunctionData) symbolData()    {}
func (*ProgramData) symbolData()     {}
func (*ModuleData) symbolData()      {}
func (*GenericProcData) symbolData() {}
func (*ExternalData) symbolData()    {}
func (*AggregateData) symbolData()   {}
func (*BlockData) symbolData()       {}

// OwnedScope returns the nested scope a symbol owns, if any.
func (s *Symbol) OwnedScope() ScopeID {
	switch d := s.Data.(type) {
	case *FunctionData:
		return d.Scope
	case *ProgramData:
		return d.Scope
	case *ModuleData:
		return d.Scope
	case *AggregateData:
		return d.Scope
	case *BlockData:
		return d.Scope
	}
	return NoScopeID
}

// Body returns the statement list of procedures, programs and blocks.
func (s *Symbol) Body() *[]*Stmt {
	switch d := s.Data.(type) {
	case *FunctionData:
		return &d.Body
	case *ProgramData:
		return &d.Body
	case *BlockData:
		return &d.Body
	}
	return nil
}

// Alive reports whether the symbol is defined and still registered.
func (s *Symbol) Alive() bool {
	return s != nil && s.Flags&(SymPlaceholder|SymRemoved) == 0
}

// IsPrivate reports whether the symbol is hidden from importers.
func (s *Symbol) IsPrivate() bool {
	switch d := s.Data.(type) {
	case *VariableData:
		return d.Access == AccessPrivate
	case *FunctionData:
		return d.Access == AccessPrivate
	case *GenericProcData:
		return d.Access == AccessPrivate
	case *ExternalData:
		return d.Access == AccessPrivate
	case *AggregateData:
		return d.Access == AccessPrivate
	}
	return false
}
