//nolint:errcheck // payload assertions are checked by construction
package ir

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"irlower/internal/arena"
)

// Printer renders a unit in its canonical text form: symbols are listed by
// name, scope counters and handles are omitted, so two units holding the same
// tree print identically.
type Printer struct {
	w      io.Writer
	u      *Unit
	indent int
	err    error
}

// NewPrinter creates a printer for u.
func NewPrinter(w io.Writer, u *Unit) *Printer {
	return &Printer{w: w, u: u}
}

// Dump writes the canonical dump of u to w.
func Dump(w io.Writer, u *Unit) error {
	p := NewPrinter(w, u)
	p.printf("unit\n")
	p.indent++
	p.PrintScope(u.Global)
	p.indent--
	return p.err
}

// DumpString returns the canonical dump of u.
func DumpString(u *Unit) string {
	var buf bytes.Buffer
	_ = Dump(&buf, u) //nolint:errcheck // bytes.Buffer never fails
	return buf.String()
}

// PrintScope prints every symbol of scope.
func (p *Printer) PrintScope(scope ScopeID) {
	for _, id := range p.u.SortedSymbols(scope) {
		p.PrintSymbol(id)
	}
}

// PrintSymbol prints one symbol and everything it owns.
func (p *Printer) PrintSymbol(id SymbolID) {
	sym := p.u.Symbol(id)
	name := p.u.Name(id)
	p.printIndent()
	if sym.Flags&SymPlaceholder != 0 {
		p.printf("placeholder %s %s\n", sym.Kind, name)
		return
	}
	switch d := sym.Data.(type) {
	case *VariableData:
		p.printf("var %s: %s", name, p.TypeString(d.Type))
		if d.Intent != IntentLocal {
			p.printf(" intent(%s)", d.Intent)
		}
		if d.Storage != StorageDefault {
			p.printf(" %s", d.Storage)
		}
		if d.Access == AccessPrivate {
			p.printf(" private")
		}
		if d.ABI != ABISource {
			p.printf(" abi(%s)", d.ABI)
		}
		if d.Init != nil {
			p.printf(" = ")
			p.printExpr(d.Init)
		}
		p.printf("\n")

	case *FunctionData:
		p.printf("function %s(%s)", name, p.names(d.Params))
		if d.Return.IsValid() {
			p.printf(" -> %s", p.u.Name(d.Return))
		}
		p.printf(" %s abi(%s)", d.Access, d.ABI)
		if flags := d.Flags.Strings(); len(flags) > 0 {
			p.printf(" [%s]", strings.Join(flags, " "))
		}
		p.printDeps(d.Deps)
		p.printf(" {\n")
		p.printOwned(d.Scope, d.Body)

	case *ProgramData:
		p.printf("program %s", name)
		p.printDeps(d.Deps)
		p.printf(" {\n")
		p.printOwned(d.Scope, d.Body)

	case *ModuleData:
		p.printf("module %s", name)
		if d.LoadedFromCache {
			p.printf(" cached")
		}
		p.printDeps(d.Deps)
		p.printf(" {\n")
		p.printOwned(d.Scope, nil)

	case *GenericProcData:
		p.printf("generic %s %s = [%s]\n", name, d.Access, p.names(d.Procs))

	case *ExternalData:
		p.printf("external %s => %s::%s", name, p.u.Strings.MustLookup(d.Module), p.u.Strings.MustLookup(d.Original))
		if d.Access == AccessPrivate {
			p.printf(" private")
		}
		if target := p.u.Symbol(d.Target); target == nil {
			p.printf(" unresolved")
		} else {
			p.printf(" (%s)", target.Kind)
		}
		p.printf("\n")

	case *AggregateData:
		p.printf("%s %s %s [%s] {\n", sym.Kind, name, d.Access, p.names(d.Members))
		p.printOwned(d.Scope, nil)

	case *BlockData:
		p.printf("block %s {\n", name)
		p.printOwned(d.Scope, d.Body)

	default:
		p.printf("<%s %s>\n", sym.Kind, name)
	}
}

func (p *Printer) printOwned(scope ScopeID, body []*Stmt) {
	p.indent++
	p.PrintScope(scope)
	if len(body) > 0 {
		p.printIndent()
		p.printf("body:\n")
		p.indent++
		p.printBody(body)
		p.indent--
	}
	p.indent--
	p.printIndent()
	p.printf("}\n")
}

func (p *Printer) printDeps(deps []arena.StrID) {
	if len(deps) == 0 {
		return
	}
	names := make([]string, len(deps))
	for i, d := range deps {
		names[i] = p.u.Strings.MustLookup(d)
	}
	p.printf(" deps(%s)", strings.Join(names, ", "))
}

func (p *Printer) names(ids []SymbolID) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = p.u.Name(id)
	}
	return strings.Join(out, ", ")
}

// TypeString renders a type including its dimension descriptors.
func (p *Printer) TypeString(id TypeID) string {
	ty := p.u.Types.Get(id)
	if ty == nil {
		return "?"
	}
	switch ty.Kind {
	case TypeArray:
		var sb strings.Builder
		sb.WriteString(p.TypeString(ty.Elem))
		sb.WriteString("[")
		for i, dim := range ty.Dims {
			if i > 0 {
				sb.WriteString(", ")
			}
			if dim.Start == nil && dim.Length == nil {
				sb.WriteString("*")
				continue
			}
			sb.WriteString(p.exprString(dim.Start))
			sb.WriteString(";")
			sb.WriteString(p.exprString(dim.Length))
		}
		sb.WriteString("]")
		return sb.String()
	case TypeStruct, TypeUnion, TypeEnum:
		return fmt.Sprintf("%s %s", ty.Kind, p.u.Name(ty.Decl))
	}
	return p.u.Types.String(id)
}

func (p *Printer) printBody(body []*Stmt) {
	for _, s := range body {
		p.printStmt(s)
	}
}

func (p *Printer) printBlock(body []*Stmt) {
	p.printf(" {\n")
	p.indent++
	p.printBody(body)
	p.indent--
	p.printIndent()
	p.printf("}")
}

func (p *Printer) printStmt(s *Stmt) {
	p.printIndent()
	switch s.Kind {
	case StmtAssign:
		d := s.Data.(*AssignData)
		p.printExpr(d.Target)
		p.printf(" = ")
		p.printExpr(d.Value)

	case StmtCall:
		d := s.Data.(*CallStmtData)
		p.printf("call %s(", p.u.Name(d.Callee))
		p.printExprs(d.Args)
		p.printf(")")

	case StmtDoLoop:
		d := s.Data.(*DoLoopData)
		p.printf("do ")
		p.printExpr(d.Var)
		p.printf(" = ")
		p.printExpr(d.Start)
		p.printf(", ")
		p.printExpr(d.End)
		if d.Step != nil {
			p.printf(", ")
			p.printExpr(d.Step)
		}
		p.printBlock(d.Body)

	case StmtWhile:
		d := s.Data.(*WhileData)
		p.printf("while ")
		p.printExpr(d.Cond)
		p.printBlock(d.Body)

	case StmtIf:
		d := s.Data.(*IfData)
		p.printf("if ")
		p.printExpr(d.Cond)
		p.printBlock(d.Then)
		if len(d.Else) > 0 {
			p.printf(" else")
			p.printBlock(d.Else)
		}

	case StmtSelect:
		d := s.Data.(*SelectData)
		p.printf("select ")
		p.printExpr(d.Test)
		p.printf(" {\n")
		p.indent++
		for _, c := range d.Cases {
			p.printIndent()
			p.printf("case ")
			if c.IsRange {
				if c.Lo != nil {
					p.printExpr(c.Lo)
				}
				p.printf(":")
				if c.Hi != nil {
					p.printExpr(c.Hi)
				}
			} else {
				p.printExprs(c.Values)
			}
			p.printBlock(c.Body)
			p.printf("\n")
		}
		if len(d.Default) > 0 {
			p.printIndent()
			p.printf("default")
			p.printBlock(d.Default)
			p.printf("\n")
		}
		p.indent--
		p.printIndent()
		p.printf("}")

	case StmtReturn:
		p.printf("return")
	case StmtExit:
		p.printf("exit")
	case StmtCycle:
		p.printf("cycle")

	case StmtPrint:
		d := s.Data.(*PrintData)
		p.printf("print ")
		p.printExprs(d.Args)

	case StmtBlockCall:
		d := s.Data.(*BlockCallData)
		p.printf("block %s", p.u.Name(d.Block))

	default:
		p.printf("<%s>", s.Kind)
	}
	p.printf("\n")
}

func (p *Printer) exprString(e *Expr) string {
	var buf bytes.Buffer
	sub := &Printer{w: &buf, u: p.u}
	sub.printExpr(e)
	return buf.String()
}

func (p *Printer) printExprs(es []*Expr) {
	for i, e := range es {
		if i > 0 {
			p.printf(", ")
		}
		p.printExpr(e)
	}
}

func (p *Printer) printExpr(e *Expr) {
	if e == nil {
		p.printf("<nil>")
		return
	}
	if e.Kind.IsConst() {
		p.printf("%s", e.Value)
		return
	}
	switch e.Kind {
	case ExprVar:
		p.printf("%s", p.u.Name(e.Data.(*VarData).Sym))
	case ExprBinOp:
		d := e.Data.(*BinOpData)
		p.printBinary(d.Left, d.Op.String(), d.Right)
	case ExprCompare:
		d := e.Data.(*CompareData)
		p.printBinary(d.Left, d.Op.String(), d.Right)
	case ExprLogical:
		d := e.Data.(*LogicalData)
		p.printBinary(d.Left, d.Op.String(), d.Right)
	case ExprNot:
		p.printf("(.not. ")
		p.printExpr(e.Data.(*UnaryData).Arg)
		p.printf(")")
	case ExprNeg:
		p.printf("(-")
		p.printExpr(e.Data.(*UnaryData).Arg)
		p.printf(")")
	case ExprCast:
		d := e.Data.(*CastData)
		p.printf("%s(", d.Kind)
		p.printExpr(d.Arg)
		p.printf(")")
	case ExprCall:
		d := e.Data.(*CallData)
		p.printf("%s(", p.u.Name(d.Callee))
		p.printExprs(d.Args)
		p.printf(")")
	case ExprIntrinsic:
		d := e.Data.(*IntrinsicData)
		p.printf("@%s(", d.ID)
		p.printExprs(d.Args)
		p.printf(")")
	case ExprArrayItem:
		d := e.Data.(*ArrayItemData)
		p.printExpr(d.Base)
		p.printf("(")
		p.printExprs(d.Indices)
		p.printf(")")
	case ExprArraySection:
		d := e.Data.(*ArraySectionData)
		p.printExpr(d.Base)
		p.printf("(")
		for i, r := range d.Ranges {
			if i > 0 {
				p.printf(", ")
			}
			p.printOptional(r.Start)
			p.printf(":")
			p.printOptional(r.End)
			if r.Step != nil {
				p.printf(":")
				p.printExpr(r.Step)
			}
		}
		p.printf(")")
	case ExprArrayBound:
		d := e.Data.(*ArrayBoundData)
		fn := "lbound"
		if d.Upper {
			fn = "ubound"
		}
		p.printf("%s(", fn)
		p.printExpr(d.Base)
		p.printf(", %d)", d.Dim)
	case ExprArraySize:
		d := e.Data.(*ArraySizeData)
		p.printf("size(")
		p.printExpr(d.Base)
		if d.Dim > 0 {
			p.printf(", %d", d.Dim)
		}
		p.printf(")")
	case ExprMember:
		d := e.Data.(*MemberData)
		p.printExpr(d.Base)
		p.printf("%%%s", p.u.Name(d.Member))
	default:
		p.printf("<%s>", e.Kind)
	}
	if e.Value != nil {
		p.printf(" {=%s}", e.Value)
	}
}

func (p *Printer) printOptional(e *Expr) {
	if e != nil {
		p.printExpr(e)
	}
}

func (p *Printer) printBinary(l *Expr, op string, r *Expr) {
	p.printf("(")
	p.printExpr(l)
	p.printf(" %s ", op)
	p.printExpr(r)
	p.printf(")")
}

func (p *Printer) printIndent() {
	p.printf("%s", strings.Repeat("  ", p.indent))
}

func (p *Printer) printf(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
