package ui

import (
	"errors"
	"strings"
	"testing"

	"irlower/internal/passes"
)

func TestProgressModelTracksPasses(t *testing.T) {
	events := make(chan passes.Event)
	m := NewProgressModel("lower main.mod", []string{"select_case", "do_loops"}, events).(*progressModel)

	m.Update(eventMsg{Pass: "select_case", Status: passes.StatusWorking})
	if got := completion(m.items); got != 0.25 {
		t.Fatalf("completion = %v, want 0.25", got)
	}
	m.Update(eventMsg{Pass: "select_case", Status: passes.StatusDone, Iterations: 2})
	m.Update(eventMsg{Pass: "unknown", Status: passes.StatusDone})
	if got := completion(m.items); got != 0.5 {
		t.Fatalf("completion = %v, want 0.5", got)
	}
	view := m.View()
	if !strings.Contains(view, "2 iter") || !strings.Contains(view, "queued") {
		t.Fatalf("unexpected view:\n%s", view)
	}

	m.Update(eventMsg{Pass: "do_loops", Status: passes.StatusError, Err: errors.New("boom")})
	m.Update(doneMsg{})
	if view := m.View(); !strings.Contains(view, "failed: lower main.mod (do_loops)") {
		t.Fatalf("failure not shown:\n%s", view)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"do_loops", 20, "do_loops"},
		{"subroutine_from_function", 10, "subrout..."},
		{"fma", 2, "fm"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Fatalf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
