package ir

import "irlower/internal/source"

// StmtKind enumerates statement node kinds.
type StmtKind uint8

const (
	StmtInvalid StmtKind = iota
	StmtAssign
	StmtCall
	StmtDoLoop
	StmtWhile
	StmtIf
	StmtSelect
	StmtReturn
	StmtExit
	StmtCycle
	StmtPrint
	StmtBlockCall
)

func (k StmtKind) String() string {
	switch k {
	case StmtAssign:
		return "Assign"
	case StmtCall:
		return "Call"
	case StmtDoLoop:
		return "DoLoop"
	case StmtWhile:
		return "While"
	case StmtIf:
		return "If"
	case StmtSelect:
		return "Select"
	case StmtReturn:
		return "Return"
	case StmtExit:
		return "Exit"
	case StmtCycle:
		return "Cycle"
	case StmtPrint:
		return "Print"
	case StmtBlockCall:
		return "BlockCall"
	default:
		return "Invalid"
	}
}

// Stmt is a statement node. Return, Exit and Cycle have no payload.
type Stmt struct {
	Kind StmtKind
	Span source.Span
	Data StmtData
}

// StmtData is implemented by every statement payload.
type StmtData interface {
	stmtData()
}

// AssignData stores Value into Target.
type AssignData struct {
	Target *Expr
	Value  *Expr
}

// CallStmtData calls a subroutine.
type CallStmtData struct {
	Callee SymbolID
	Args   []*Expr
}

// DoLoopData is a counted loop `do Var = Start, End, Step`. Step is nil
// when omitted (1).
type DoLoopData struct {
	Var   *Expr
	Start *Expr
	End   *Expr
	Step  *Expr
	Body  []*Stmt
}

// WhileData loops while Cond holds.
type WhileData struct {
	Cond *Expr
	Body []*Stmt
}

// IfData is a two-way branch; Else may be empty.
type IfData struct {
	Cond *Expr
	Then []*Stmt
	Else []*Stmt
}

// Case is one arm of a select statement. A range arm (IsRange) tests
// Lo <= x <= Hi where either bound may be nil; otherwise x is compared
// against each of Values.
type Case struct {
	IsRange bool
	Values  []*Expr
	Lo      *Expr
	Hi      *Expr
	Body    []*Stmt
}

// SelectData is a multi-way branch over Test.
type SelectData struct {
	Test    *Expr
	Cases   []Case
	Default []*Stmt
}

// PrintData writes its arguments.
type PrintData struct {
	Args []*Expr
}

// BlockCallData executes the body of a Block symbol.
type BlockCallData struct {
	Block SymbolID
}

func (*AssignData) stmtData()    {}
func (*CallStmtData) stmtData()  {}
func (*DoLoopData) stmtData()    {}
func (*WhileData) stmtData()     {}
func (*IfData) stmtData()        {}
func (*SelectData) stmtData()    {}
func (*PrintData) stmtData()     {}
func (*BlockCallData) stmtData() {}

// Exprs returns the expression slots embedded directly in s.
func (s *Stmt) Exprs() []**Expr {
	switch d := s.Data.(type) {
	case *AssignData:
		return []**Expr{&d.Target, &d.Value}
	case *CallStmtData:
		return argSlots(d.Args)
	case *DoLoopData:
		return []**Expr{&d.Var, &d.Start, &d.End, &d.Step}
	case *WhileData:
		return []**Expr{&d.Cond}
	case *IfData:
		return []**Expr{&d.Cond}
	case *SelectData:
		out := []**Expr{&d.Test}
		for i := range d.Cases {
			c := &d.Cases[i]
			out = append(out, argSlots(c.Values)...)
			out = append(out, &c.Lo, &c.Hi)
		}
		return out
	case *PrintData:
		return argSlots(d.Args)
	}
	return nil
}

// Bodies returns the statement lists nested directly in s.
func (s *Stmt) Bodies() []*[]*Stmt {
	switch d := s.Data.(type) {
	case *DoLoopData:
		return []*[]*Stmt{&d.Body}
	case *WhileData:
		return []*[]*Stmt{&d.Body}
	case *IfData:
		return []*[]*Stmt{&d.Then, &d.Else}
	case *SelectData:
		out := make([]*[]*Stmt, 0, len(d.Cases)+1)
		for i := range d.Cases {
			out = append(out, &d.Cases[i].Body)
		}
		return append(out, &d.Default)
	}
	return nil
}
