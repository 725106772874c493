package diag

// Severity defines the importance of a diagnostic.
type Severity uint8

const (
	// SevStyle is for style suggestions.
	SevStyle Severity = iota
	// SevNote is for informational diagnostics.
	SevNote
	// SevWarning is for warning diagnostics.
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevStyle:
		return "STYLE"
	case SevNote:
		return "NOTE"
	case SevWarning:
		return "WARNING"
	case SevError:
		return "ERROR"
	}
	return "UNKNOWN"
}
