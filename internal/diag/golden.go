package diag

import (
	"fmt"
	"sort"
	"strings"

	"irlower/internal/source"
)

type shortDiagnostic struct {
	Severity string
	Code     string
	Path     string
	Line     uint32
	Column   uint32
	Message  string
}

// FormatShort renders diagnostics one per line in a stable order:
// "path:line:col: SEVERITY CODE: message". Notes follow as indented lines
// when includeNotes is set.
func FormatShort(diags []Diagnostic, locs *source.Locations, includeNotes bool) string {
	if len(diags) == 0 {
		return ""
	}
	rendered := make([]shortDiagnostic, 0, len(diags))
	for i := range diags {
		d := &diags[i]
		rendered = append(rendered, render(d.Severity.String(), d.Code.ID(), d.Primary, d.Message, locs))
		if !includeNotes {
			continue
		}
		for _, n := range d.Notes {
			rendered = append(rendered, render("  note", d.Code.ID(), n.Span, n.Msg, locs))
		}
	}
	if !includeNotes {
		sort.SliceStable(rendered, func(i, j int) bool {
			di, dj := rendered[i], rendered[j]
			if di.Path != dj.Path {
				return di.Path < dj.Path
			}
			if di.Line != dj.Line {
				return di.Line < dj.Line
			}
			if di.Column != dj.Column {
				return di.Column < dj.Column
			}
			return di.Code < dj.Code
		})
	}

	var sb strings.Builder
	for _, r := range rendered {
		fmt.Fprintf(&sb, "%s:%d:%d: %s %s: %s\n", r.Path, r.Line, r.Column, r.Severity, r.Code, r.Message)
	}
	return sb.String()
}

func render(sev, code string, sp source.Span, msg string, locs *source.Locations) shortDiagnostic {
	out := shortDiagnostic{Severity: sev, Code: code, Message: msg, Path: "<unknown>"}
	if locs == nil {
		return out
	}
	if name, pos, ok := locs.Position(sp); ok {
		out.Path = name
		out.Line = pos.Line
		out.Column = pos.Col
	}
	return out
}
