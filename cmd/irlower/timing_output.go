package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"irlower/internal/observ"
)

func printTimings(out io.Writer, t *observ.Timer, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		fmt.Fprint(out, t.Summary())
		if slowest := t.Slowest(); slowest != "" {
			fmt.Fprintf(out, "slowest: %s\n", slowest)
		}
		return nil
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(t.Report())
	default:
		return fmt.Errorf("unsupported timings format %q (must be text or json)", format)
	}
}
