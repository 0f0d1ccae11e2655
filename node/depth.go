package node

import "fmt"

// DefaultMaxDepth is the minimum depth bound spec §5 requires ("at least
// ~16k"). Callers may raise it via an explicit maxDepth argument but
// should rarely need to lower it.
const DefaultMaxDepth = 16384

// ErrMaxDepthExceeded is returned by any bounded traversal (materialize,
// clone, merge, compile, compact, snapshot, lookup) that would otherwise
// exhaust the host stack (spec §5, §7 MAX_DEPTH_EXCEEDED).
type ErrMaxDepthExceeded struct {
	MaxDepth int
}

func (e *ErrMaxDepthExceeded) Error() string {
	return fmt.Sprintf("node: max depth %d exceeded", e.MaxDepth)
}
