package modfile_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"irlower/internal/diag"
	"irlower/internal/ir"
	"irlower/internal/modfile"
	"irlower/internal/serial"
	"irlower/internal/source"
	"irlower/internal/testkit"
)

func openCache(t *testing.T, dir string) (*modfile.Cache, *diag.Bag) {
	t.Helper()
	bag := diag.NewBag(64)
	c, err := modfile.Open(dir, modfile.FormatBinary, diag.BagReporter{Bag: bag})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return c, bag
}

func hasCode(bag *diag.Bag, code diag.Code) bool {
	for _, d := range bag.Items() {
		if d.Code == code {
			return true
		}
	}
	return false
}

// addModule adds a module holding one increment function to b's unit.
func addModule(b *testkit.Builder, name, fn string) {
	_, mod := b.Module(name)
	_, f := b.Func(mod.Scope, fn, ir.AccessPublic)
	x := b.Param(f, "x", b.I4, ir.IntentIn)
	r := b.Result(f, "r", b.I4)
	f.Body = []*ir.Stmt{b.Set(b.Ref(r), b.Bin(ir.OpAdd, b.Ref(x), b.Int(1)))}
}

func moduleUnit(name, fn string) *ir.Unit {
	b := testkit.NewBuilder()
	addModule(b, name, fn)
	return b.U
}

func TestCachePutGet(t *testing.T) {
	dir := t.TempDir()
	c, bag := openCache(t, dir)
	key, err := c.Put(testkit.Sample(), "mathlib", sampleLocations())
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	want, err := modfile.KeyOf(testkit.Sample(), "mathlib")
	if err != nil || key != want {
		t.Fatalf("key = %v, want %v (%v)", key, want, err)
	}

	// a second cache over the same directory reads from disk
	c2, _ := openCache(t, dir)
	u := ir.NewUnit(nil)
	locs, ok, err := c2.Get(key, u)
	if err != nil || !ok {
		t.Fatalf("get: hit=%v err=%v", ok, err)
	}
	if !locs.Equal(sampleLocations()) {
		t.Fatalf("location tables differ")
	}
	if _, ok := u.ResolveLocal(u.Global, "mathlib"); !ok {
		t.Fatalf("module missing after load")
	}

	other := modfile.Key{Name: "mathlib"}
	if _, ok, err := c.Get(other, ir.NewUnit(nil)); ok || err != nil {
		t.Fatalf("unknown key: hit=%v err=%v", ok, err)
	}
	if !hasCode(bag, diag.CacheMiss) {
		t.Fatalf("miss not reported")
	}
}

func TestKeyOfUnknownModule(t *testing.T) {
	if _, err := modfile.KeyOf(testkit.Sample(), "main"); !errors.Is(err, modfile.ErrNoModule) {
		t.Fatalf("program accepted as module: %v", err)
	}
	if _, err := modfile.KeyOf(ir.NewUnit(nil), "nothing"); !errors.Is(err, modfile.ErrNoModule) {
		t.Fatalf("got %v", err)
	}
}

func TestKeyFollowsContent(t *testing.T) {
	a, err := modfile.KeyOf(moduleUnit("m", "f"), "m")
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	b, _ := modfile.KeyOf(moduleUnit("m", "f"), "m")
	c, _ := modfile.KeyOf(moduleUnit("m", "g"), "m")
	if a != b {
		t.Fatalf("equal modules hash differently")
	}
	if a == c {
		t.Fatalf("renaming a function did not change the key")
	}
}

func corrupt(t *testing.T, dir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "mods", "*.mp"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("cache files: %v %v", matches, err)
	}
	if err := os.WriteFile(matches[0], []byte{0xc1, 0x00}, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestCacheCorruptEntry(t *testing.T) {
	dir := t.TempDir()
	c, _ := openCache(t, dir)
	key, err := c.Put(moduleUnit("m", "f"), "m", nil)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	corrupt(t, dir)

	c2, bag := openCache(t, dir)
	_, ok, err := c2.Get(key, ir.NewUnit(nil))
	if ok || !errors.Is(err, serial.ErrMalformed) {
		t.Fatalf("hit=%v err=%v, want malformed", ok, err)
	}
	if !hasCode(bag, diag.CacheMalformed) {
		t.Fatalf("corruption not reported: %+v", bag.Items())
	}
}

func TestLoadOrBuildFallsBack(t *testing.T) {
	dir := t.TempDir()
	c, _ := openCache(t, dir)
	key, err := c.Put(moduleUnit("m", "f"), "m", nil)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	corrupt(t, dir)

	c2, bag := openCache(t, dir)
	built := 0
	build := func(u *ir.Unit) (*source.Locations, error) {
		built++
		addModule(testkit.BuilderFor(u), "m", "f")
		return source.NewLocations(), nil
	}
	u, _, err := c2.LoadOrBuild(key, ir.NewContext(), build)
	if err != nil {
		t.Fatalf("load or build: %v", err)
	}
	if built != 1 || !hasCode(bag, diag.CacheFallback) {
		t.Fatalf("built %d times, fallback reported: %v", built, hasCode(bag, diag.CacheFallback))
	}
	if _, ok := u.ResolveLocal(u.Global, "m"); !ok {
		t.Fatalf("rebuilt unit lacks the module")
	}

	// the rebuilt entry replaced the damaged one
	c3, _ := openCache(t, dir)
	if _, _, err := c3.LoadOrBuild(key, ir.NewContext(), build); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if built != 1 {
		t.Fatalf("rebuilt again instead of loading")
	}
}

func TestLoadMany(t *testing.T) {
	c, _ := openCache(t, t.TempDir())
	ka, err := c.Put(moduleUnit("alpha", "f"), "alpha", nil)
	if err != nil {
		t.Fatalf("put alpha: %v", err)
	}
	kb, err := c.Put(moduleUnit("beta", "g"), "beta", nil)
	if err != nil {
		t.Fatalf("put beta: %v", err)
	}
	missing := modfile.Key{Name: "gamma"}

	ictx := ir.NewContext()
	got, err := c.LoadMany(context.Background(), ictx, []modfile.Key{ka, missing, kb}, 2)
	if err != nil {
		t.Fatalf("load many: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d results", len(got))
	}
	for i, want := range []struct {
		hit  bool
		name string
	}{{true, "alpha"}, {false, ""}, {true, "beta"}} {
		if got[i].Hit != want.hit {
			t.Fatalf("result %d hit=%v", i, got[i].Hit)
		}
		if !want.hit {
			if got[i].Unit != nil {
				t.Fatalf("miss %d carries a unit", i)
			}
			continue
		}
		if _, ok := got[i].Unit.ResolveLocal(got[i].Unit.Global, want.name); !ok {
			t.Fatalf("result %d lacks module %s", i, want.name)
		}
	}
	if got[0].Unit == got[2].Unit {
		t.Fatalf("modules share a unit")
	}
	seen := make(map[uint64]string)
	for _, l := range []modfile.Loaded{got[0], got[2]} {
		if l.Unit.Ctx != ictx {
			t.Fatalf("%s was not loaded into the shared context", l.Key.Name)
		}
		for id := uint32(1); id <= l.Unit.ScopeCount(); id++ {
			counter := l.Unit.Scope(ir.ScopeID(id)).Counter
			if prev, dup := seen[counter]; dup {
				t.Fatalf("scope counter %d used by both %s and %s", counter, prev, l.Key.Name)
			}
			seen[counter] = l.Key.Name
		}
	}
}

func TestLoadManyStopsOnError(t *testing.T) {
	dir := t.TempDir()
	c, _ := openCache(t, dir)
	key, err := c.Put(moduleUnit("m", "f"), "m", nil)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	corrupt(t, dir)
	c2, _ := openCache(t, dir)
	if _, err := c2.LoadMany(context.Background(), nil, []modfile.Key{key}, 0); !errors.Is(err, serial.ErrMalformed) {
		t.Fatalf("got %v, want malformed", err)
	}
}

func TestDropAll(t *testing.T) {
	dir := t.TempDir()
	c, _ := openCache(t, dir)
	key, err := c.Put(moduleUnit("m", "f"), "m", nil)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := c.DropAll(); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if _, ok, err := c.Get(key, ir.NewUnit(nil)); ok || err != nil {
		t.Fatalf("entry survived: hit=%v err=%v", ok, err)
	}
}
