package passes_test

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"irlower/internal/config"
	"irlower/internal/diag"
	"irlower/internal/ir"
	"irlower/internal/passes"
	"irlower/internal/testkit"
	"irlower/internal/trace"
)

func TestManagerPassSelection(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   []string
	}{
		{
			name: "default",
			want: []string{"select_case", "array_slice", "subroutine_from_function", "intrinsic_function", "do_loops", "unused_functions"},
		},
		{
			name:   "fast",
			mutate: func(c *config.Config) { c.Pipeline.Fast = true },
			want:   passes.DefaultOrder,
		},
		{
			name:   "skip",
			mutate: func(c *config.Config) { c.Pipeline.Skip = []string{"unused_functions", "select_case"} },
			want:   []string{"array_slice", "subroutine_from_function", "intrinsic_function", "do_loops"},
		},
		{
			name:   "explicit list keeps peepholes",
			mutate: func(c *config.Config) { c.Pipeline.Passes = []string{"fma", "do_loops"} },
			want:   []string{"fma", "do_loops"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			m, err := passes.NewManager(cfg, nil)
			if err != nil {
				t.Fatalf("NewManager: %v", err)
			}
			if got := m.Names(); !slices.Equal(got, tt.want) {
				t.Fatalf("passes %v, want %v", got, tt.want)
			}
		})
	}
}

func TestManagerUnknownPass(t *testing.T) {
	for _, mutate := range []func(*config.Config){
		func(c *config.Config) { c.Pipeline.Passes = []string{"do_loops", "loop_unroll"} },
		func(c *config.Config) { c.Pipeline.Skip = []string{"nope"} },
	} {
		cfg := config.Default()
		mutate(&cfg)
		if _, err := passes.NewManager(cfg, nil); !errors.Is(err, passes.ErrUnknownPass) {
			t.Fatalf("want ErrUnknownPass, got %v", err)
		}
	}
}

func TestManagerReportsSkippedPasses(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.Skip = []string{"fma"}
	bag := diag.NewBag(8)
	m, err := passes.NewManager(cfg, diag.BagReporter{Bag: bag})
	if err != nil {
		t.Fatal(err)
	}
	b := testkit.NewBuilder()
	b.Program("main")
	if err := m.Run(context.Background(), b.U); err != nil {
		t.Fatal(err)
	}
	if bag.Len() != 1 || bag.Items()[0].Code != diag.PassSkipped {
		t.Fatalf("want one PassSkipped note, got %+v", bag.Items())
	}
}

func TestManagerVerifiesInput(t *testing.T) {
	b := testkit.NewBuilder()
	gone, _ := b.Func(b.U.Global, "gone", ir.AccessPrivate)
	_, p := b.Program("main")
	p.Body = []*ir.Stmt{b.CallStmt(gone)}
	b.U.Remove(b.U.Global, gone)

	m, err := passes.NewManager(config.Default(), nil)
	if err != nil {
		t.Fatal(err)
	}
	err = m.Run(context.Background(), b.U)
	if err == nil || !strings.Contains(err.Error(), "input") {
		t.Fatalf("want an input verification error, got %v", err)
	}
}

func TestManagerTimeReportAndTrace(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.TimeReport = true
	m, err := passes.NewManager(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	tr := trace.NewStreamTracer(&buf, trace.LevelDetail, trace.FormatText)
	ctx := trace.WithTracer(context.Background(), tr)

	b := testkit.NewBuilder()
	_, p := b.Program("main")
	i := b.Local(p.Scope, "i", b.I4)
	p.Body = []*ir.Stmt{b.Do(i, b.Int(1), b.Int(2), nil, b.Print(b.Ref(i)))}
	if err := m.Run(ctx, b.U); err != nil {
		t.Fatal(err)
	}
	if err := tr.Flush(); err != nil {
		t.Fatal(err)
	}
	if got, want := m.Timer().Len(), len(m.Names()); got != want {
		t.Fatalf("timer recorded %d phases, want %d", got, want)
	}
	if !strings.Contains(m.Timer().Summary(), "do_loops") {
		t.Fatalf("summary misses do_loops:\n%s", m.Timer().Summary())
	}
	out := buf.String()
	for _, want := range []string{"lower", "do_loops", "iterations=2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("trace misses %q:\n%s", want, out)
		}
	}
}

func TestManagerCancelled(t *testing.T) {
	m, err := passes.NewManager(config.Default(), nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := testkit.NewBuilder()
	b.Program("main")
	if err := m.Run(ctx, b.U); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestManagerProgressEvents(t *testing.T) {
	m, err := passes.NewManager(config.Default(), nil)
	if err != nil {
		t.Fatal(err)
	}
	events := make(chan passes.Event, 64)
	m.SetProgress(passes.ChannelSink{Ch: events})
	b := testkit.NewBuilder()
	_, p := b.Program("main")
	i := b.Local(p.Scope, "i", b.I4)
	p.Body = []*ir.Stmt{b.Do(i, b.Int(1), b.Int(2), nil, b.Print(b.Ref(i)))}
	if err := m.Run(context.Background(), b.U); err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(events)

	names := m.Names()
	var got []passes.Event
	for ev := range events {
		got = append(got, ev)
	}
	if len(got) != 3*len(names) {
		t.Fatalf("got %d events, want %d", len(got), 3*len(names))
	}
	for i, name := range names {
		if ev := got[i]; ev.Pass != name || ev.Status != passes.StatusQueued {
			t.Fatalf("event %d = %+v, want %s queued", i, ev, name)
		}
		working, done := got[len(names)+2*i], got[len(names)+2*i+1]
		if working.Pass != name || working.Status != passes.StatusWorking {
			t.Fatalf("want %s working, got %+v", name, working)
		}
		if done.Pass != name || done.Status != passes.StatusDone || done.Iterations < 1 {
			t.Fatalf("want %s done, got %+v", name, done)
		}
	}
}

func TestManagerNamespace(t *testing.T) {
	tests := []struct {
		name string
		ns   string
		want func(ns string) string
	}{
		{name: "none", ns: "", want: func(string) string { return "scaled_call_res" }},
		{name: "fixed", ns: "ab12", want: func(string) string { return "scaled_call_res_ab12" }},
		{name: "random", ns: config.RandomNamespace, want: func(ns string) string { return "scaled_call_res_" + ns }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testkit.NewBuilder()
			scaled := buildScaled(b)
			_, p := b.Program("main")
			p.Body = []*ir.Stmt{b.Print(b.Call(scaled, b.Int(2)))}

			cfg := config.Default()
			cfg.Pipeline.Passes = []string{"subroutine_from_function"}
			cfg.Pipeline.Namespace = tt.ns
			m, err := passes.NewManager(cfg, nil)
			if err != nil {
				t.Fatalf("NewManager: %v", err)
			}
			if tt.ns == config.RandomNamespace && (m.Namespace() == "" || m.Namespace() == config.RandomNamespace) {
				t.Fatalf("random namespace not drawn: %q", m.Namespace())
			}
			if err := m.Run(context.Background(), b.U); err != nil {
				t.Fatalf("Run: %v", err)
			}
			want := tt.want(m.Namespace())
			if _, ok := b.U.ResolveLocal(p.Scope, want); !ok {
				t.Fatalf("temporary %s not declared:\n%s", want, ir.DumpString(b.U))
			}
		})
	}
}
