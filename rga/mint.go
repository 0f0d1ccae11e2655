package rga

import (
	"github.com/luoyjx/jsoncrdt/dot"
	"github.com/luoyjx/jsoncrdt/node"
)

// MintInsertDot returns a dot suitable for inserting a new sibling
// after prev, fast-forwarding clk past the highest existing
// sibling-counter at prev first if necessary (spec §4.3: "the fresh dot
// must be greater than every existing sibling-dot at that
// predecessor"). Without this, a patch that inserts several items at
// the same index under sequential semantics can linearize out of order
// relative to the RFC 6902 projection of the same patch against plain
// JSON.
func MintInsertDot(seq *node.Sequence, prev string, clk *dot.Clock) dot.Dot {
	var maxCounter uint64
	for _, elem := range seq.Elements {
		if elem.Prev != prev {
			continue
		}
		if elem.InsDot.Counter > maxCounter {
			maxCounter = elem.InsDot.Counter
		}
	}
	if maxCounter > clk.Counter() {
		clk.FastForward(maxCounter)
	}
	return clk.Next()
}
