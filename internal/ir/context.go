package ir

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"
)

// Context is the state shared by every unit of one compilation: the scope
// counter and the optional namespace used by UniqueName.
// Counters are unique inside a compilation and never stable across runs.
// Units decoded concurrently may share one context; Namespace must be set
// before that.
type Context struct {
	counter   atomic.Uint64
	Namespace string
}

// NewContext returns a context without a namespace.
func NewContext() *Context {
	return &Context{}
}

// NextCounter issues the next scope counter.
func (c *Context) NextCounter() uint64 {
	return c.counter.Add(1)
}

// Counter reports the last issued counter.
func (c *Context) Counter() uint64 { return c.counter.Load() }

// NewNamespace returns a random suffix for names that must not collide
// across separately compiled units.
func NewNamespace() string {
	return fmt.Sprintf("%08x", rand.Uint32())
}
