package passes

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"irlower/internal/config"
	"irlower/internal/diag"
	"irlower/internal/ir"
	"irlower/internal/observ"
	"irlower/internal/source"
	"irlower/internal/trace"
	"irlower/internal/verify"
)

// ErrUnknownPass is returned for pass names missing from the registry.
var ErrUnknownPass = errors.New("unknown pass")

var registry = map[string]func() Pass{
	"select_case":              func() Pass { return SelectCase{} },
	"array_slice":              func() Pass { return &ArraySlice{} },
	"subroutine_from_function": func() Pass { return SubroutineFromFunction{} },
	"div_to_mul":               func() Pass { return DivToMul{} },
	"sign_from_value":          func() Pass { return SignFromValue{} },
	"fma":                      func() Pass { return FMA{} },
	"intrinsic_function":       func() Pass { return IntrinsicFunction{} },
	"do_loops":                 func() Pass { return DoLoops{} },
	"unused_functions":         func() Pass { return UnusedFunctions{} },
}

// DefaultOrder is the documented pipeline. Branch and slice desugaring come
// before loop desugaring because they emit counted loops; the numeric
// peepholes run before intrinsic materialization so that sign(1.0, b) is
// still recognisable; unused elimination runs last.
var DefaultOrder = []string{
	"select_case",
	"array_slice",
	"subroutine_from_function",
	"div_to_mul",
	"sign_from_value",
	"fma",
	"intrinsic_function",
	"do_loops",
	"unused_functions",
}

// fastOnly passes change floating point rounding and only run in fast mode
// unless listed explicitly.
var fastOnly = map[string]bool{
	"div_to_mul":      true,
	"sign_from_value": true,
	"fma":             true,
}

// Lookup instantiates a registered pass.
func Lookup(name string) (Pass, error) {
	mk, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownPass, name)
	}
	return mk(), nil
}

// IsFastOnly reports whether name is one of the numeric peepholes.
func IsFastOnly(name string) bool { return fastOnly[name] }

// Manager runs an ordered list of passes over units.
type Manager struct {
	passes   []Pass
	skipped  []string
	verify   bool
	limit    int
	ns       string
	opts     Options
	reporter diag.Reporter
	timer    *observ.Timer
	progress ProgressSink
}

// NewManager builds the pipeline described by cfg. Unknown names in either
// the pass list or the skip list are configuration errors.
func NewManager(cfg config.Config, reporter diag.Reporter) (*Manager, error) {
	p := cfg.Pipeline
	for _, name := range p.Skip {
		if _, ok := registry[name]; !ok {
			return nil, fmt.Errorf("passes: skip: %w %q", ErrUnknownPass, name)
		}
	}
	names := p.Passes
	explicit := len(names) > 0
	if !explicit {
		names = DefaultOrder
	}
	m := &Manager{
		verify:   p.Verify,
		limit:    max(p.FixedPointLimit, 1),
		ns:       p.Namespace,
		opts:     Options{UnusedRounds: cfg.Unused.Rounds, ForceUnused: cfg.Unused.Force},
		reporter: reporter,
	}
	if m.ns == config.RandomNamespace {
		m.ns = ir.NewNamespace()
	}
	if p.TimeReport {
		m.timer = observ.NewTimer()
	}
	for _, name := range names {
		pass, err := Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("passes: %w", err)
		}
		if slices.Contains(p.Skip, name) {
			m.skipped = append(m.skipped, name)
			continue
		}
		if !explicit && fastOnly[name] && !p.Fast {
			continue
		}
		m.passes = append(m.passes, pass)
	}
	return m, nil
}

// Names lists the passes that will run, in order.
func (m *Manager) Names() []string {
	out := make([]string, len(m.passes))
	for i, p := range m.passes {
		out[i] = p.Name()
	}
	return out
}

// Namespace is the suffix the pipeline applies to generated names, empty
// when names are not namespaced.
func (m *Manager) Namespace() string { return m.ns }

// Timer returns the time report, or nil when time_report is off.
func (m *Manager) Timer() *observ.Timer { return m.timer }

// Run lowers u in place. The tracer is taken from ctx. The first failing
// pass aborts the unit.
func (m *Manager) Run(ctx context.Context, u *ir.Unit) error {
	tracer := trace.FromContext(ctx)
	pipe := trace.Begin(tracer, trace.ScopePipeline, "lower", 0)
	defer pipe.End("")

	for _, name := range m.skipped {
		if m.reporter != nil {
			diag.ReportNote(m.reporter, diag.PassSkipped, source.Span{}, name+" skipped by configuration").Emit()
		}
	}
	if m.ns != "" {
		u.Ctx.Namespace = m.ns
	}
	pc := NewContext(m.opts, m.reporter, tracer)
	if m.verify {
		if err := verify.Check(u); err != nil {
			return fmt.Errorf("passes: input: %w", err)
		}
	}
	for _, p := range m.passes {
		m.emit(Event{Pass: p.Name(), Status: StatusQueued})
	}
	for _, p := range m.passes {
		if err := ctx.Err(); err != nil {
			m.emit(Event{Pass: p.Name(), Status: StatusError, Err: err})
			return err
		}
		if err := m.runPass(pc, p, u, pipe.ID()); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) runPass(pc *Context, p Pass, u *ir.Unit, parent uint64) error {
	span := trace.Begin(pc.Tracer, trace.ScopePass, p.Name(), parent)
	m.emit(Event{Pass: p.Name(), Status: StatusWorking})
	started := time.Now()
	phase := -1
	if m.timer != nil {
		phase = m.timer.Begin(p.Name())
	}

	limit := 1
	if fp, ok := p.(FixedPoint); ok && fp.FixedPoint() {
		limit = m.limit
	}
	iters, changed := 0, true
	for changed && iters < limit {
		iters++
		it := trace.Begin(pc.Tracer, trace.ScopeUnit, p.Name(), span.ID())
		pc.Span = it.ID()
		var err error
		changed, err = p.Run(pc, u)
		it.End(strconv.FormatBool(changed))
		if err != nil {
			span.End("error")
			err = fmt.Errorf("passes: %s: %w", p.Name(), err)
			m.emit(Event{Pass: p.Name(), Status: StatusError, Iterations: iters, Err: err, Elapsed: time.Since(started)})
			return err
		}
	}
	if changed && limit > 1 {
		pc.report(diag.PassFixedPointLimit, diag.SevWarning, source.Span{},
			fmt.Sprintf("%s still changing after %d iterations", p.Name(), limit))
	}

	note := strconv.Itoa(iters) + " iteration(s)"
	if m.timer != nil {
		m.timer.End(phase, note)
	}
	span.WithExtra("iterations", strconv.Itoa(iters)).End("")
	if m.verify {
		if err := verify.Check(u); err != nil {
			err = fmt.Errorf("passes: after %s: %w", p.Name(), err)
			m.emit(Event{Pass: p.Name(), Status: StatusError, Iterations: iters, Err: err, Elapsed: time.Since(started)})
			return err
		}
	}
	m.emit(Event{Pass: p.Name(), Status: StatusDone, Iterations: iters, Elapsed: time.Since(started)})
	return nil
}
