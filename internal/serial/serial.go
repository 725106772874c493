// Package serial encodes an IR unit into a tag-prefixed stream and reads it
// back.
//
// Every node writes a one-byte kind tag followed by its fields in a fixed
// order. Symbols are written inside the scope that owns them; any other
// mention of a symbol is a reference triple (scope counter, kind, name).
// On read a reference to a symbol that has not been seen yet binds a
// placeholder of the declared kind, and the definition fills that
// placeholder in place once it arrives, so forward references and cycles
// need no ordering.
package serial

import "errors"

var (
	// ErrTruncated reports a stream that ended inside a value.
	ErrTruncated = errors.New("serial: truncated stream")
	// ErrMalformed reports a stream that is complete but does not describe
	// a valid unit.
	ErrMalformed = errors.New("serial: malformed stream")
	// ErrUnresolved reports an external alias whose module is loaded but
	// does not define the aliased name.
	ErrUnresolved = errors.New("serial: unresolved external symbol")
)
