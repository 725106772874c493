package observ

import (
	"strings"
	"testing"
	"time"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	a := tm.Begin("select_case")
	tm.End(a, "changed")
	b := tm.Begin("do_loops")
	tm.End(b, "")
	tm.End(42, "ignored")

	r := tm.Report()
	if len(r.Phases) != 2 || r.Phases[0].Name != "select_case" || r.Phases[0].Note != "changed" {
		t.Fatalf("unexpected report: %+v", r)
	}
	if r.TotalMS < r.Phases[0].DurationMS {
		t.Fatalf("total %f smaller than a phase", r.TotalMS)
	}
	s := tm.Summary()
	for _, want := range []string{"timings:", "select_case", "// changed", "total"} {
		if !strings.Contains(s, want) {
			t.Fatalf("summary missing %q:\n%s", want, s)
		}
	}
}

func TestEmptyTimer(t *testing.T) {
	tm := NewTimer()
	if r := tm.Report(); r.TotalMS != 0 || r.Phases != nil {
		t.Fatalf("expected empty report, got %+v", r)
	}
	if got := tm.Slowest(); got != "" {
		t.Fatalf("Slowest = %q on an empty timer", got)
	}
}

func TestTimerSlowest(t *testing.T) {
	tm := NewTimer()
	tm.phases = []Phase{
		{Name: "select_case", Dur: 2 * time.Millisecond},
		{Name: "do_loops", Dur: 7 * time.Millisecond},
		{Name: "unused_functions", Dur: time.Millisecond},
	}
	if got := tm.Slowest(); got != "do_loops" {
		t.Fatalf("Slowest = %q, want do_loops", got)
	}
	if s := tm.Summary(); !strings.Contains(s, " 70.0%") {
		t.Fatalf("summary misses the share of do_loops:\n%s", s)
	}
}
