package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/fatih/color"

	"irlower/internal/config"
	"irlower/internal/ir"
	"irlower/internal/modfile"
	"irlower/internal/observ"
	"irlower/internal/passes"
	"irlower/internal/source"
	"irlower/internal/testkit"
)

func TestReadColorMode(t *testing.T) {
	tests := []struct {
		in      string
		want    colorMode
		wantErr bool
	}{
		{"", colorAuto, false},
		{" ON ", colorOn, false},
		{"off", colorOff, false},
		{"sometimes", "", true},
	}
	for _, tt := range tests {
		got, err := readColorMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("readColorMode(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestIRFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []modfile.Format{modfile.FormatBinary, modfile.FormatText} {
		t.Run(f.String(), func(t *testing.T) {
			path := filepath.Join(dir, "sample-"+f.String()+".mod")
			want := testkit.Sample()
			if err := writeIRFile(path, want, source.NewLocations(), f); err != nil {
				t.Fatalf("write: %v", err)
			}
			in, err := readIRFile(path)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if in.Format != f {
				t.Fatalf("format detected as %s", in.Format)
			}
			if got, exp := ir.DumpString(in.Unit), ir.DumpString(want); got != exp {
				t.Fatalf("dump differs: %s", testkit.FirstDiff(exp, got))
			}
			if got := moduleNames(in.Unit); !slices.Equal(got, []string{"mathlib"}) {
				t.Fatalf("modules %v", got)
			}
		})
	}
}

func TestReadIRFileMissing(t *testing.T) {
	if _, err := readIRFile(filepath.Join(t.TempDir(), "absent.mod")); err == nil {
		t.Fatal("want an error for a missing file")
	}
}

func TestRenderPasses(t *testing.T) {
	orig := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = orig }()

	cfg := config.Default()
	cfg.Pipeline.Skip = []string{"unused_functions"}
	m, err := passes.NewManager(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	renderPasses(&buf, "defaults", cfg, m.Names())
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 1+len(passes.DefaultOrder) {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(strings.TrimSpace(lines[1]), "1  select_case") {
		t.Fatalf("first pass line %q", lines[1])
	}
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		switch fields[1] {
		case "fma":
			if fields[0] != "-" || !strings.Contains(line, "[fast]") {
				t.Fatalf("fma line %q", line)
			}
		case "unused_functions":
			if fields[0] != "-" || !strings.Contains(line, "[skipped]") {
				t.Fatalf("unused_functions line %q", line)
			}
		}
	}
}

func TestVersionJSON(t *testing.T) {
	var buf bytes.Buffer
	info := versionInfo{Version: "1.2.3", GitCommit: "abc"}
	if err := renderVersionJSON(&buf, info, versionOptions{format: "json", showHash: true}); err != nil {
		t.Fatal(err)
	}
	var got versionPayload
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, buf.String())
	}
	if got.Tool != "irlower" || got.Version != "1.2.3" || got.GitCommit != "abc" || got.BuildDate != "" {
		t.Fatalf("payload %+v", got)
	}
}

func TestPrintTimings(t *testing.T) {
	tm := observ.NewTimer()
	tm.End(tm.Begin("do_loops"), "1 iteration(s)")

	var text bytes.Buffer
	if err := printTimings(&text, tm, "text"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text.String(), "slowest: do_loops") {
		t.Fatalf("text timings:\n%s", text.String())
	}

	var js bytes.Buffer
	if err := printTimings(&js, tm, "JSON"); err != nil {
		t.Fatal(err)
	}
	var r observ.Report
	if err := json.Unmarshal(js.Bytes(), &r); err != nil || len(r.Phases) != 1 || r.Phases[0].Name != "do_loops" {
		t.Fatalf("json timings %q: %v", js.String(), err)
	}

	if err := printTimings(&js, tm, "yaml"); err == nil {
		t.Fatal("want an error for an unknown format")
	}
}
