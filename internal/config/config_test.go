package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"irlower/internal/trace"
)

func TestDecodeOverridesDefaults(t *testing.T) {
	src := `
[pipeline]
skip = ["fma"]
fast = true

[unused]
rounds = 2

[trace]
level = "pass"
format = "ndjson"
`
	cfg, err := Decode(strings.NewReader(src), "irlower.toml")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !cfg.Pipeline.Fast || len(cfg.Pipeline.Skip) != 1 || cfg.Pipeline.Skip[0] != "fma" {
		t.Fatalf("pipeline not decoded: %+v", cfg.Pipeline)
	}
	if !cfg.Pipeline.Verify || cfg.Pipeline.FixedPointLimit != 16 {
		t.Fatalf("defaults lost: %+v", cfg.Pipeline)
	}
	if cfg.Unused.Rounds != 2 {
		t.Fatalf("rounds = %d, want 2", cfg.Unused.Rounds)
	}
	tc, err := cfg.TraceConfig()
	if err != nil {
		t.Fatal(err)
	}
	if tc.Level != trace.LevelPass || tc.Format != trace.FormatNDJSON {
		t.Fatalf("trace config: %+v", tc)
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
		is   error
	}{
		{"unknown key", "[pipeline]\nturbo = true\n", ErrUnknownKey},
		{"unknown section", "[backend]\nx = 1\n", ErrUnknownKey},
		{"zero rounds", "[unused]\nrounds = 0\n", nil},
		{"bad level", "[trace]\nlevel = \"loud\"\n", nil},
		{"bad mode", "[trace]\nmode = \"tape\"\n", nil},
		{"negative ring", "[trace]\nring_size = -1\n", nil},
		{"namespace with dot", "[pipeline]\nnamespace = \"a.b\"\n", nil},
		{"bad toml", "[pipeline\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.src), "x.toml")
			if err == nil {
				t.Fatalf("expected error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Fatalf("error %v is not %v", err, tt.is)
			}
		})
	}
}

func TestTraceRingMode(t *testing.T) {
	cfg, err := Decode(strings.NewReader("[trace]\nlevel = \"detail\"\nmode = \"ring\"\nring_size = 64\n"), "irlower.toml")
	if err != nil {
		t.Fatal(err)
	}
	tc, err := cfg.TraceConfig()
	if err != nil {
		t.Fatal(err)
	}
	if tc.Mode != trace.ModeRing || tc.RingSize != 64 || tc.Level != trace.LevelDetail {
		t.Fatalf("trace config: %+v", tc)
	}
	tr, err := trace.New(tc)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := tr.(*trace.RingTracer); !ok {
		t.Fatalf("want a ring tracer, got %T", tr)
	}
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(root, FileName)
	if err := os.WriteFile(want, []byte("[unused]\nforce = true\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, ok, err := Find(nested)
	if err != nil || !ok || got != want {
		t.Fatalf("Find = %q, %v, %v; want %q", got, ok, err, want)
	}
	cfg, err := Load(got)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Unused.Force || cfg.Unused.Rounds != 4 {
		t.Fatalf("unexpected config: %+v", cfg.Unused)
	}
}
