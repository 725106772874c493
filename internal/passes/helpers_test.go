package passes_test

import (
	"context"
	"slices"
	"testing"

	"irlower/internal/config"
	"irlower/internal/diag"
	"irlower/internal/ir"
	"irlower/internal/passes"
	"irlower/internal/source"
	"irlower/internal/testkit"
)

var noSpan source.Span

// lower runs the named passes (the default pipeline when none are given)
// with verification after every pass.
func lower(t *testing.T, u *ir.Unit, names ...string) *diag.Bag {
	t.Helper()
	cfg := config.Default()
	cfg.Pipeline.Passes = names
	bag := diag.NewBag(64)
	m, err := passes.NewManager(cfg, diag.BagReporter{Bag: bag})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.Run(context.Background(), u); err != nil {
		t.Fatalf("lowering failed: %v\n%s", err, ir.DumpString(u))
	}
	return bag
}

func run(t *testing.T, u *ir.Unit) []string {
	t.Helper()
	out, err := testkit.Interpret(u)
	if err != nil {
		t.Fatalf("interpret: %v\n%s", err, ir.DumpString(u))
	}
	return out
}

// sameOutput lowers u and checks that the program prints the same lines.
func sameOutput(t *testing.T, u *ir.Unit, names ...string) []string {
	t.Helper()
	before := run(t, u)
	lower(t, u, names...)
	after := run(t, u)
	if !slices.Equal(before, after) {
		t.Fatalf("output changed by lowering\nbefore: %q\nafter:  %q\n%s", before, after, ir.DumpString(u))
	}
	return after
}
