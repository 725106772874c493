package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// symbol table
	SymDuplicate          Code = 1001
	SymNotFound           Code = 1002
	SymPathNotFound       Code = 1003
	SymImplicitConversion Code = 1004
	SymTypeMismatch       Code = 1005

	// module cache
	CacheVersionMismatch Code = 2001
	CacheTruncated       Code = 2002
	CacheMalformed       Code = 2003
	CacheMiss            Code = 2004
	CacheFallback        Code = 2005

	// pass pipeline
	PassSkipped         Code = 3001
	PassFixedPointLimit Code = 3002
	PassUnusedNoProgram Code = 3003
)

var codeDescription = map[Code]string{
	UnknownCode:           "unknown error",
	SymDuplicate:          "duplicate symbol definition",
	SymNotFound:           "symbol not found",
	SymPathNotFound:       "qualified path not found",
	SymImplicitConversion: "implicit conversion is not allowed",
	SymTypeMismatch:       "operand types do not match",
	CacheVersionMismatch:  "module cache was written by another compiler version",
	CacheTruncated:        "module cache file is truncated",
	CacheMalformed:        "module cache file is malformed",
	CacheMiss:             "module not found in cache",
	CacheFallback:         "module cache unusable, recompiling from source",
	PassSkipped:           "pass skipped by configuration",
	PassFixedPointLimit:   "pass did not reach a fixed point",
	PassUnusedNoProgram:   "unused symbol elimination needs a program entry point",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("SYM%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("CACHE%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("PASS%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
