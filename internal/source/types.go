package source

// FileID indexes Locations.Files.
type FileID uint32

// LineCol represents a human-readable position in a source file.
type LineCol struct {
	Line uint32 // 1-based
	Col  uint32 // 1-based
}
