package ir

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
)

// Digest - фиксированный 256 битный хеш области видимости.
type Digest [32]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Combine строит хеш: H( content || dep1 || dep2 ... ).
func Combine(content Digest, deps ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(content[:])
	for _, d := range deps {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// StructuralHash fingerprints a scope for cache invalidation. The result
// does not depend on insertion order, handles or scope counters: every
// symbol hashes its name, kind, key attributes and nested scope, and the
// per-symbol digests are combined in sorted order.
func (u *Unit) StructuralHash(scope ScopeID) Digest {
	sc := u.Scope(scope)
	if sc == nil {
		return Digest{}
	}
	parts := make([]Digest, 0, sc.Len())
	for _, id := range sc.Symbols() {
		parts = append(parts, u.symbolHash(id))
	}
	slices.SortFunc(parts, func(a, b Digest) int { return bytes.Compare(a[:], b[:]) })
	return Combine(Digest{}, parts...)
}

func (u *Unit) symbolHash(id SymbolID) Digest {
	sym := u.Symbol(id)
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\x00%s\x00", sym.Kind, u.Name(id))
	// The canonical dump of the symbol header and body captures the key
	// attributes; nested scopes are hashed recursively below.
	p := NewPrinter(&buf, u)
	switch d := sym.Data.(type) {
	case *VariableData, *GenericProcData, *ExternalData:
		p.PrintSymbol(id)
	case *FunctionData:
		fmt.Fprintf(&buf, "%s|%s|%s|%d|", p.names(d.Params), u.nameOrEmpty(d.Return), d.ABI, d.Flags)
		fmt.Fprintf(&buf, "%s|", d.Access)
		p.printBody(d.Body)
	case *ProgramData:
		p.printBody(d.Body)
	case *BlockData:
		p.printBody(d.Body)
	case *AggregateData:
		fmt.Fprintf(&buf, "%s|%s|", p.names(d.Members), d.Access)
	case *ModuleData:
		fmt.Fprintf(&buf, "%v|", d.LoadedFromCache)
	}
	content := sha256.Sum256(buf.Bytes())
	if owned := sym.OwnedScope(); owned.IsValid() {
		return Combine(content, u.StructuralHash(owned))
	}
	return content
}

func (u *Unit) nameOrEmpty(id SymbolID) string {
	if !id.IsValid() {
		return ""
	}
	return u.Name(id)
}
