// Package passes holds the lowering passes and the manager that runs them
// in their documented order.
//
// Every pass mutates the unit in place and reports whether it changed
// anything. Running a pass again after it reported no change is a no-op.
package passes

import (
	"irlower/internal/diag"
	"irlower/internal/ir"
	"irlower/internal/source"
	"irlower/internal/trace"
)

// Pass is one lowering step.
type Pass interface {
	Name() string
	Run(pc *Context, u *ir.Unit) (bool, error)
}

// FixedPoint marks passes whose rewrite can re-expose its own trigger shape;
// the manager repeats them until they report no change.
type FixedPoint interface {
	FixedPoint() bool
}

// Options tune individual passes.
type Options struct {
	UnusedRounds int  // mark/sweep rounds of unused_functions
	ForceUnused  bool // eliminate even without a program entry point
}

// DefaultOptions matches config.Default.
func DefaultOptions() Options {
	return Options{UnusedRounds: 4}
}

// Context is handed to every pass of one pipeline run.
type Context struct {
	Options  Options
	Reporter diag.Reporter // may be nil
	Tracer   trace.Tracer
	Span     uint64 // parent span for node-level events

	intrinsics *intrinsicCache
}

// NewContext creates a pass context with a fresh intrinsic cache.
func NewContext(opts Options, reporter diag.Reporter, tracer trace.Tracer) *Context {
	if tracer == nil {
		tracer = trace.Nop
	}
	return &Context{
		Options:    opts,
		Reporter:   reporter,
		Tracer:     tracer,
		intrinsics: newIntrinsicCache(),
	}
}

func (pc *Context) report(code diag.Code, sev diag.Severity, sp source.Span, msg string) {
	if pc == nil || pc.Reporter == nil {
		return
	}
	diag.NewReportBuilder(pc.Reporter, sev, code, sp, msg).Emit()
}

func (pc *Context) node(name, detail string) {
	if pc == nil || pc.Tracer == nil {
		return
	}
	if pc.Tracer.Level().ShouldEmit(trace.ScopeNode) {
		trace.Point(pc.Tracer, trace.ScopeNode, name, detail, pc.Span)
	}
}

func (pc *Context) cache() *intrinsicCache {
	if pc.intrinsics == nil {
		pc.intrinsics = newIntrinsicCache()
	}
	return pc.intrinsics
}
