package node

import "github.com/luoyjx/jsoncrdt/dot"

// RegisterSet applies last-writer-wins semantics (spec §4.2): if d is
// strictly greater than the register's current dot, the value is
// replaced; otherwise the write is discarded. Returns whether the
// register changed.
func RegisterSet(r *Register, value any, d dot.Dot) bool {
	if dot.Compare(d, r.Dot) > 0 {
		r.Value = value
		r.Dot = d
		return true
	}
	return false
}
