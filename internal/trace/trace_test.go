package trace

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLevelFiltersScopes(t *testing.T) {
	tests := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopePipeline, false},
		{LevelError, ScopePipeline, false},
		{LevelPass, ScopePass, true},
		{LevelPass, ScopeUnit, false},
		{LevelDetail, ScopeUnit, true},
		{LevelDetail, ScopeNode, false},
		{LevelDebug, ScopeNode, true},
	}
	for _, tt := range tests {
		if got := tt.level.ShouldEmit(tt.scope); got != tt.want {
			t.Errorf("%s.ShouldEmit(%s) = %v, want %v", tt.level, tt.scope, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"off", "error", "pass", "detail", "DEBUG"} {
		if _, err := ParseLevel(s); err != nil {
			t.Errorf("ParseLevel(%q): %v", s, err)
		}
	}
	if _, err := ParseLevel("phase"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestStreamTracerWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelPass, FormatText)
	ctx := WithTracer(context.Background(), tr)

	root := Begin(FromContext(ctx), ScopePipeline, "pipeline", 0)
	pass := Begin(FromContext(ctx), ScopePass, "do_loops", root.ID())
	pass.WithExtra("changed", "true").End("")
	Begin(FromContext(ctx), ScopeUnit, "iter:1", pass.ID()).End("")
	root.End("ok")

	out := buf.String()
	for _, want := range []string{"→ pipeline", "→ do_loops", "← do_loops {changed=true}", "← pipeline (ok)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "iter:1") {
		t.Fatalf("unit scope should be filtered at pass level:\n%s", out)
	}
}

func TestRingTracerWraps(t *testing.T) {
	tr := NewRingTracer(2, LevelDebug)
	for _, name := range []string{"a", "b", "c"} {
		Point(tr, ScopeNode, name, "", 0)
	}
	got := tr.Snapshot()
	if len(got) != 2 || got[0].Name != "b" || got[1].Name != "c" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestRingTracerDumpTo(t *testing.T) {
	tr := NewRingTracer(8, LevelPass)
	Point(tr, ScopePass, "do_loops", "changed", 0)
	path := filepath.Join(t.TempDir(), "trace.ndjson")
	if err := tr.DumpTo(path, FormatNDJSON); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"do_loops"`) {
		t.Fatalf("dump misses the event:\n%s", data)
	}
}

func TestNewOffIsNop(t *testing.T) {
	tr, err := New(Config{Level: LevelOff})
	if err != nil {
		t.Fatal(err)
	}
	if tr.Enabled() {
		t.Fatalf("off tracer must be disabled")
	}
	if FromContext(context.Background()) != Nop {
		t.Fatalf("empty context must yield Nop")
	}
}
