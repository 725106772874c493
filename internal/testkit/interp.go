package testkit

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"irlower/internal/ir"
)

// ErrStepLimit is returned when a program runs longer than Interp.MaxSteps.
var ErrStepLimit = errors.New("interpreter step limit exceeded")

// Interpret runs the program of u and returns the lines it printed. Passes
// are tested by comparing the output before and after lowering.
func Interpret(u *ir.Unit) ([]string, error) {
	in := NewInterp(u)
	return in.Run()
}

// Interp is a tree-walking evaluator for the IR. It covers the statement
// and expression kinds the lowering passes produce and consume; arguments
// passed as plain variables are bound by reference.
type Interp struct {
	MaxSteps int

	u       *ir.Unit
	globals map[ir.SymbolID]*cell
	frames  []*frame
	out     []string
	steps   int
}

// NewInterp prepares an interpreter with a default step limit.
func NewInterp(u *ir.Unit) *Interp {
	return &Interp{MaxSteps: 1_000_000, u: u, globals: make(map[ir.SymbolID]*cell)}
}

type valKind uint8

const (
	vNone valKind = iota
	vInt
	vReal
	vBool
	vStr
	vArray
)

type val struct {
	k valKind
	i int64
	f float64
	b bool
	s string
	a *array
}

// array stores elements in column-major order.
type array struct {
	lo   []int64
	ext  []int64
	data []val
}

type cell struct{ v val }

type frame struct {
	scope ir.ScopeID
	cells map[ir.SymbolID]*cell
}

type ctl uint8

const (
	ctlNext ctl = iota
	ctlExit
	ctlCycle
	ctlReturn
)

type interpError struct{ err error }

func (in *Interp) fail(format string, args ...any) {
	panic(interpError{fmt.Errorf(format, args...)})
}

// Run executes the program body.
func (in *Interp) Run() (out []string, err error) {
	prog, ok := in.u.Program()
	if !ok {
		return nil, errors.New("unit has no program")
	}
	defer func() {
		if r := recover(); r != nil {
			ie, ok := r.(interpError)
			if !ok {
				panic(r)
			}
			out, err = in.out, ie.err
		}
	}()
	sym := in.u.Symbol(prog)
	in.push(sym.OwnedScope())
	in.exec(*sym.Body())
	in.pop()
	return in.out, nil
}

func (in *Interp) push(scope ir.ScopeID) *frame {
	f := &frame{scope: scope, cells: make(map[ir.SymbolID]*cell)}
	in.frames = append(in.frames, f)
	return f
}

func (in *Interp) pop() { in.frames = in.frames[:len(in.frames)-1] }

func (in *Interp) step() {
	in.steps++
	if in.MaxSteps > 0 && in.steps > in.MaxSteps {
		panic(interpError{ErrStepLimit})
	}
}

// cell finds the storage of a variable, allocating it on first use in the
// innermost frame of its scope, or globally for module variables.
func (in *Interp) cell(id ir.SymbolID) *cell {
	id = in.u.Deref(id)
	sym := in.u.Symbol(id)
	d, ok := sym.Data.(*ir.VariableData)
	if !ok {
		in.fail("%s is a %s, not a variable", in.u.Name(id), sym.Kind)
	}
	store := in.globals
	for i := len(in.frames) - 1; i >= 0; i-- {
		if in.frames[i].scope == sym.Parent {
			store = in.frames[i].cells
			break
		}
	}
	if c, ok := store[id]; ok {
		return c
	}
	c := &cell{v: in.zero(d.Type)}
	store[id] = c
	if d.Init != nil {
		in.assign(c, in.eval(d.Init), d.Type)
	}
	return c
}

func (in *Interp) zero(typ ir.TypeID) val {
	ty := in.u.Types.Get(typ)
	if ty == nil {
		return val{}
	}
	switch ty.Kind {
	case ir.TypeInteger:
		return val{k: vInt}
	case ir.TypeReal:
		return val{k: vReal}
	case ir.TypeLogical:
		return val{k: vBool}
	case ir.TypeCharacter:
		return val{k: vStr}
	case ir.TypeArray:
		a := &array{}
		n := int64(1)
		for i, dim := range ty.Dims {
			if dim.Start == nil {
				in.fail("cannot allocate deferred-shape dimension %d", i+1)
			}
			lo, ext := in.int(in.eval(dim.Start)), in.int(in.eval(dim.Length))
			ext = max(ext, 0)
			a.lo = append(a.lo, lo)
			a.ext = append(a.ext, ext)
			n *= ext
		}
		a.data = make([]val, n)
		for i := range a.data {
			a.data[i] = in.zero(ty.Elem)
		}
		return val{k: vArray, a: a}
	}
	return val{}
}

func (in *Interp) exec(body []*ir.Stmt) ctl {
	for _, s := range body {
		if c := in.stmt(s); c != ctlNext {
			return c
		}
	}
	return ctlNext
}

func (in *Interp) stmt(s *ir.Stmt) ctl {
	in.step()
	switch d := s.Data.(type) {
	case *ir.AssignData:
		in.store(d.Target, in.eval(d.Value))
	case *ir.CallStmtData:
		in.call(d.Callee, d.Args)
	case *ir.DoLoopData:
		c := in.cell(d.Var.Data.(*ir.VarData).Sym)
		start, end := in.eval(d.Start), in.eval(d.End)
		step := val{k: vInt, i: 1}
		if d.Step != nil {
			step = in.eval(d.Step)
		}
		if in.num(step) == 0 {
			in.fail("zero do-loop step")
		}
		// The variable is advanced before each iteration, so it keeps the
		// last value that passed the bound; an empty loop leaves start-step.
		in.assign(c, arith(ir.OpSub, start, step), d.Var.Type)
		for {
			in.step()
			next := arith(ir.OpAdd, c.v, step)
			if in.num(step) > 0 && in.num(next) > in.num(end) || in.num(step) < 0 && in.num(next) < in.num(end) {
				break
			}
			in.assign(c, next, d.Var.Type)
			if r := in.exec(d.Body); r == ctlExit {
				break
			} else if r == ctlReturn {
				return r
			}
		}
	case *ir.WhileData:
		for in.bool(in.eval(d.Cond)) {
			in.step()
			if r := in.exec(d.Body); r == ctlExit {
				break
			} else if r == ctlReturn {
				return r
			}
		}
	case *ir.IfData:
		if in.bool(in.eval(d.Cond)) {
			return in.exec(d.Then)
		}
		return in.exec(d.Else)
	case *ir.SelectData:
		x := in.eval(d.Test)
		for _, c := range d.Cases {
			if in.matches(x, c) {
				return in.exec(c.Body)
			}
		}
		return in.exec(d.Default)
	case *ir.PrintData:
		parts := make([]string, len(d.Args))
		for i, a := range d.Args {
			parts[i] = format(in.eval(a))
		}
		in.out = append(in.out, strings.Join(parts, " "))
	case *ir.BlockCallData:
		blk := in.u.Symbol(d.Block)
		in.push(blk.OwnedScope())
		r := in.exec(*blk.Body())
		in.pop()
		return r
	default:
		switch s.Kind {
		case ir.StmtReturn:
			return ctlReturn
		case ir.StmtExit:
			return ctlExit
		case ir.StmtCycle:
			return ctlCycle
		}
		in.fail("unsupported statement %s", s.Kind)
	}
	return ctlNext
}

func (in *Interp) matches(x val, c ir.Case) bool {
	if c.IsRange {
		if c.Lo != nil && compare(ir.CmpLt, x, in.eval(c.Lo)) {
			return false
		}
		if c.Hi != nil && compare(ir.CmpGt, x, in.eval(c.Hi)) {
			return false
		}
		return true
	}
	for _, v := range c.Values {
		if compare(ir.CmpEq, x, in.eval(v)) {
			return true
		}
	}
	return false
}

func (in *Interp) store(target *ir.Expr, v val) {
	switch d := target.Data.(type) {
	case *ir.VarData:
		in.assign(in.cell(d.Sym), v, target.Type)
	case *ir.ArrayItemData:
		a := in.eval(d.Base).a
		if a == nil {
			in.fail("indexing a non-array")
		}
		a.data[in.offset(a, d.Indices)] = in.convert(v, target.Type)
	default:
		in.fail("unsupported assignment target %s", target.Kind)
	}
}

func (in *Interp) assign(c *cell, v val, typ ir.TypeID) {
	if c.v.k != vArray {
		c.v = in.convert(v, typ)
		return
	}
	elem := in.u.Types.Scalar(typ)
	dst := c.v.a.data
	if v.k != vArray {
		for i := range dst {
			dst[i] = in.convert(v, elem)
		}
		return
	}
	if len(v.a.data) != len(dst) {
		in.fail("array size mismatch: %d into %d", len(v.a.data), len(dst))
	}
	for i, x := range v.a.data {
		dst[i] = in.convert(x, elem)
	}
}

func (in *Interp) convert(v val, typ ir.TypeID) val {
	switch in.u.Types.Kind(typ) {
	case ir.TypeInteger:
		if v.k == vReal {
			return val{k: vInt, i: int64(v.f)}
		}
	case ir.TypeReal:
		if v.k == vInt {
			return val{k: vReal, f: float64(v.i)}
		}
	}
	return v
}

func (in *Interp) offset(a *array, indices []*ir.Expr) int {
	if len(indices) != len(a.lo) {
		in.fail("rank mismatch: %d indices for rank %d", len(indices), len(a.lo))
	}
	off, stride := int64(0), int64(1)
	for k, ix := range indices {
		i := in.int(in.eval(ix)) - a.lo[k]
		if i < 0 || i >= a.ext[k] {
			in.fail("index %d out of bounds in dimension %d", i+a.lo[k], k+1)
		}
		off += i * stride
		stride *= a.ext[k]
	}
	return int(off)
}

func (in *Interp) call(callee ir.SymbolID, args []*ir.Expr) *frame {
	callee = in.u.Deref(callee)
	if g, ok := in.u.Symbol(callee).Data.(*ir.GenericProcData); ok {
		callee = ir.NoSymbolID
		for _, p := range g.Procs {
			if fn := in.u.Function(p); fn != nil && len(fn.Params) == len(args) {
				callee = in.u.Deref(p)
				break
			}
		}
	}
	fn := in.u.Function(callee)
	if fn == nil {
		in.fail("call of non-procedure %s", in.u.Name(callee))
	}
	if len(fn.Params) != len(args) {
		in.fail("%s: %d arguments for %d parameters", in.u.Name(callee), len(args), len(fn.Params))
	}
	cells := make(map[ir.SymbolID]*cell, len(fn.Params))
	for i, p := range fn.Params {
		if v, ok := args[i].Data.(*ir.VarData); ok {
			cells[p] = in.cell(v.Sym)
			continue
		}
		c := &cell{v: in.eval(args[i])}
		c.v = in.convert(c.v, in.u.VarType(p))
		cells[p] = c
	}
	f := in.push(fn.Scope)
	f.cells = cells
	in.exec(fn.Body)
	in.pop()
	return f
}

func (in *Interp) eval(e *ir.Expr) val {
	if e.Kind.IsConst() {
		return fromValue(e.Value)
	}
	switch d := e.Data.(type) {
	case *ir.VarData:
		return in.cell(d.Sym).v
	case *ir.BinOpData:
		return elementwise(in.eval(d.Left), in.eval(d.Right), func(l, r val) val {
			if d.Op == ir.OpDiv && (r.k == vInt && r.i == 0) {
				in.fail("integer division by zero")
			}
			return arith(d.Op, l, r)
		})
	case *ir.CompareData:
		return val{k: vBool, b: compare(d.Op, in.eval(d.Left), in.eval(d.Right))}
	case *ir.LogicalData:
		l := in.bool(in.eval(d.Left))
		if d.Op == ir.LogAnd && !l || d.Op == ir.LogOr && l {
			return val{k: vBool, b: l}
		}
		return val{k: vBool, b: in.bool(in.eval(d.Right))}
	case *ir.UnaryData:
		v := in.eval(d.Arg)
		if e.Kind == ir.ExprNot {
			return val{k: vBool, b: !in.bool(v)}
		}
		return elementwise(v, val{}, func(x, _ val) val { return negate(x) })
	case *ir.CastData:
		return in.convert(in.eval(d.Arg), e.Type)
	case *ir.CallData:
		fn := in.u.Function(d.Callee)
		if fn == nil || !fn.Return.IsValid() {
			in.fail("%s has no result", in.u.Name(d.Callee))
		}
		f := in.call(d.Callee, d.Args)
		if c, ok := f.cells[fn.Return]; ok {
			return c.v
		}
		return in.zero(in.u.VarType(fn.Return))
	case *ir.IntrinsicData:
		args := make([]val, len(d.Args))
		for i, a := range d.Args {
			args[i] = in.eval(a)
		}
		return in.convert(in.intrinsic(d.ID, args), e.Type)
	case *ir.ArrayItemData:
		a := in.eval(d.Base).a
		if a == nil {
			in.fail("indexing a non-array")
		}
		return a.data[in.offset(a, d.Indices)]
	case *ir.ArraySectionData:
		return in.section(in.eval(d.Base).a, d.Ranges)
	case *ir.ArrayBoundData:
		a := in.eval(d.Base).a
		if d.Dim < 1 || d.Dim > len(a.lo) {
			in.fail("bound of dimension %d", d.Dim)
		}
		if d.Upper {
			return val{k: vInt, i: a.lo[d.Dim-1] + a.ext[d.Dim-1] - 1}
		}
		return val{k: vInt, i: a.lo[d.Dim-1]}
	case *ir.ArraySizeData:
		a := in.eval(d.Base).a
		if d.Dim == 0 {
			return val{k: vInt, i: int64(len(a.data))}
		}
		return val{k: vInt, i: a.ext[d.Dim-1]}
	}
	in.fail("unsupported expression %s", e.Kind)
	return val{}
}

func (in *Interp) section(a *array, ranges []ir.Range) val {
	if a == nil || len(ranges) != len(a.lo) {
		in.fail("bad section")
	}
	idx := make([][]int64, len(ranges))
	out := &array{}
	for k, r := range ranges {
		lo, hi, st := a.lo[k], a.lo[k]+a.ext[k]-1, int64(1)
		if r.Start != nil {
			lo = in.int(in.eval(r.Start))
		}
		if r.End != nil {
			hi = in.int(in.eval(r.End))
		}
		if r.Step != nil {
			st = in.int(in.eval(r.Step))
		}
		if st == 0 {
			in.fail("zero section stride")
		}
		for i := lo; st > 0 && i <= hi || st < 0 && i >= hi; i += st {
			idx[k] = append(idx[k], i)
		}
		out.lo = append(out.lo, 1)
		out.ext = append(out.ext, int64(len(idx[k])))
	}
	n := int64(1)
	for _, e := range out.ext {
		n *= e
	}
	out.data = make([]val, 0, n)
	pos := make([]int, len(idx))
	for range n {
		off, stride := int64(0), int64(1)
		for k := range pos {
			off += (idx[k][pos[k]] - a.lo[k]) * stride
			stride *= a.ext[k]
		}
		out.data = append(out.data, a.data[off])
		for k := range pos {
			pos[k]++
			if pos[k] < len(idx[k]) {
				break
			}
			pos[k] = 0
		}
	}
	return val{k: vArray, a: out}
}

func (in *Interp) intrinsic(id ir.IntrinsicID, args []val) val {
	switch id {
	case ir.IntrinsicAbs:
		if in.num(args[0]) < 0 {
			return negate(args[0])
		}
		return args[0]
	case ir.IntrinsicSign:
		a := args[0]
		if in.num(a) < 0 {
			a = negate(a)
		}
		if in.num(args[1]) < 0 {
			a = negate(a)
		}
		return a
	case ir.IntrinsicMax, ir.IntrinsicMin:
		best := args[0]
		op := ir.CmpGt
		if id == ir.IntrinsicMin {
			op = ir.CmpLt
		}
		for _, a := range args[1:] {
			if compare(op, a, best) {
				best = a
			}
		}
		return best
	case ir.IntrinsicMod:
		a, p := args[0], args[1]
		if a.k == vInt && p.k == vInt {
			if p.i == 0 {
				in.fail("mod by zero")
			}
			return val{k: vInt, i: a.i % p.i}
		}
		return val{k: vReal, f: math.Mod(in.num(a), in.num(p))}
	}
	in.fail("unsupported intrinsic %s", id)
	return val{}
}

func (in *Interp) int(v val) int64 {
	if v.k != vInt {
		in.fail("expected integer, got kind %d", v.k)
	}
	return v.i
}

func (in *Interp) num(v val) float64 {
	switch v.k {
	case vInt:
		return float64(v.i)
	case vReal:
		return v.f
	}
	in.fail("expected number, got kind %d", v.k)
	return 0
}

func (in *Interp) bool(v val) bool {
	if v.k != vBool {
		in.fail("expected logical, got kind %d", v.k)
	}
	return v.b
}

func fromValue(v *ir.Value) val {
	if v == nil {
		return val{}
	}
	switch v.Kind {
	case ir.ValueInt:
		return val{k: vInt, i: v.Int}
	case ir.ValueReal:
		return val{k: vReal, f: v.Real}
	case ir.ValueLogical:
		return val{k: vBool, b: v.Bool}
	case ir.ValueString:
		return val{k: vStr, s: v.Str}
	}
	return val{}
}

func elementwise(l, r val, fn func(l, r val) val) val {
	switch {
	case l.k == vArray && r.k == vArray:
		out := &array{lo: l.a.lo, ext: l.a.ext, data: make([]val, len(l.a.data))}
		for i := range out.data {
			out.data[i] = fn(l.a.data[i], r.a.data[i])
		}
		return val{k: vArray, a: out}
	case l.k == vArray:
		out := &array{lo: l.a.lo, ext: l.a.ext, data: make([]val, len(l.a.data))}
		for i := range out.data {
			out.data[i] = fn(l.a.data[i], r)
		}
		return val{k: vArray, a: out}
	case r.k == vArray:
		out := &array{lo: r.a.lo, ext: r.a.ext, data: make([]val, len(r.a.data))}
		for i := range out.data {
			out.data[i] = fn(l, r.a.data[i])
		}
		return val{k: vArray, a: out}
	}
	return fn(l, r)
}

func asReal(v val) float64 {
	if v.k == vInt {
		return float64(v.i)
	}
	return v.f
}

func arith(op ir.BinOp, l, r val) val {
	if l.k == vInt && r.k == vInt {
		switch op {
		case ir.OpAdd:
			return val{k: vInt, i: l.i + r.i}
		case ir.OpSub:
			return val{k: vInt, i: l.i - r.i}
		case ir.OpMul:
			return val{k: vInt, i: l.i * r.i}
		case ir.OpDiv:
			return val{k: vInt, i: l.i / r.i}
		case ir.OpPow:
			out := int64(1)
			for range max(r.i, 0) {
				out *= l.i
			}
			return val{k: vInt, i: out}
		}
	}
	a, b := asReal(l), asReal(r)
	switch op {
	case ir.OpAdd:
		return val{k: vReal, f: a + b}
	case ir.OpSub:
		return val{k: vReal, f: a - b}
	case ir.OpMul:
		return val{k: vReal, f: a * b}
	case ir.OpDiv:
		return val{k: vReal, f: a / b}
	}
	return val{k: vReal, f: math.Pow(a, b)}
}

func negate(v val) val {
	if v.k == vInt {
		return val{k: vInt, i: -v.i}
	}
	return val{k: vReal, f: -v.f}
}

func compare(op ir.CmpOp, l, r val) bool {
	var c int
	switch {
	case l.k == vStr && r.k == vStr:
		c = strings.Compare(l.s, r.s)
	case l.k == vBool && r.k == vBool:
		if l.b != r.b {
			c = 1
		}
	case l.k == vInt && r.k == vInt:
		c = cmpInt(l.i, r.i)
	default:
		a, b := asReal(l), asReal(r)
		switch {
		case a < b:
			c = -1
		case a > b:
			c = 1
		}
	}
	switch op {
	case ir.CmpEq:
		return c == 0
	case ir.CmpNotEq:
		return c != 0
	case ir.CmpLt:
		return c < 0
	case ir.CmpLtE:
		return c <= 0
	case ir.CmpGt:
		return c > 0
	}
	return c >= 0
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func format(v val) string {
	switch v.k {
	case vInt:
		return strconv.FormatInt(v.i, 10)
	case vReal:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case vBool:
		if v.b {
			return "T"
		}
		return "F"
	case vStr:
		return v.s
	case vArray:
		parts := make([]string, len(v.a.data))
		for i, x := range v.a.data {
			parts[i] = format(x)
		}
		return strings.Join(parts, " ")
	}
	return "?"
}
