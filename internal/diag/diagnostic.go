package diag

import (
	"irlower/internal/source"
)

// Note is a secondary label: it explains why the primary span is reported.
type Note struct {
	Span source.Span
	Msg  string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  source.Span
	Notes    []Note
}
