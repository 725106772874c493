package diag

import (
	"strings"
	"sync"
	"testing"

	"irlower/internal/source"
)

func TestBagAccumulatesAndSorts(t *testing.T) {
	bag := NewBag(4)
	r := BagReporter{Bag: bag}
	ReportWarning(r, CacheFallback, source.Span{File: 0, Start: 20, End: 25}, "stale").Emit()
	ReportError(r, SymDuplicate, source.Span{File: 0, Start: 3, End: 4}, "duplicate 'x'").
		WithNote(source.Span{File: 0, Start: 1, End: 2}, "first defined here").
		Emit()
	if !bag.HasErrors() || !bag.HasWarnings() {
		t.Fatalf("expected error and warning in bag")
	}
	bag.Sort()
	items := bag.Items()
	if items[0].Code != SymDuplicate || items[1].Code != CacheFallback {
		t.Fatalf("unexpected order: %v, %v", items[0].Code, items[1].Code)
	}
	if len(items[0].Notes) != 1 {
		t.Fatalf("note lost")
	}
}

func TestBagLimit(t *testing.T) {
	bag := NewBag(1)
	if !bag.Add(NewError(SymNotFound, source.Span{}, "a")) {
		t.Fatalf("first add must succeed")
	}
	if bag.Add(NewError(SymNotFound, source.Span{}, "b")) {
		t.Fatalf("second add must hit the limit")
	}
	other := NewBag(2)
	other.Add(New(SevNote, PassSkipped, source.Span{}, "skipped"))
	bag.Merge(other)
	if bag.Len() != 2 || bag.Count(SevError) != 1 {
		t.Fatalf("merge: len=%d errors=%d", bag.Len(), bag.Count(SevError))
	}
}

func TestDedupReporter(t *testing.T) {
	bag := NewBag(0)
	r := NewDedupReporter(BagReporter{Bag: bag})
	sp := source.Span{Start: 1, End: 2}
	r.Report(PassFixedPointLimit, SevWarning, sp, "do_loops", nil)
	r.Report(PassFixedPointLimit, SevWarning, sp, "do_loops", nil)
	if bag.Len() != 1 {
		t.Fatalf("duplicates were forwarded: %d", bag.Len())
	}
}

func TestDedupReporterConcurrent(t *testing.T) {
	bag := NewBag(0)
	r := NewDedupReporter(BagReporter{Bag: bag})
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Report(CacheMiss, SevNote, source.Span{}, "module lib is not cached", nil)
		}()
	}
	wg.Wait()
	if bag.Len() != 1 {
		t.Fatalf("got %d diagnostics, want 1", bag.Len())
	}
}

func TestFormatShort(t *testing.T) {
	locs := source.NewLocations()
	id := locs.AddFile("m.f90", []byte("x = 1\ny = 2\n"))
	d := NewError(SymTypeMismatch, source.Span{File: id, Start: 6, End: 7}, "bad operands").
		WithNote(source.Span{File: id, Start: 0, End: 1}, "declared here")
	out := FormatShort([]Diagnostic{d}, locs, true)
	if !strings.Contains(out, "m.f90:2:1: ERROR SYM1005: bad operands") {
		t.Fatalf("unexpected primary line:\n%s", out)
	}
	if !strings.Contains(out, "m.f90:1:1:   note SYM1005: declared here") {
		t.Fatalf("unexpected note line:\n%s", out)
	}
}
