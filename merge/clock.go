package merge

import (
	"github.com/luoyjx/jsoncrdt/dot"
	"github.com/luoyjx/jsoncrdt/node"
)

// ReconcileClock builds the clock a replica should use after merging,
// per spec §4.7: the caller-chosen actor (the replica performing the
// merge, typically its own), with its counter raised to the maximum
// counter observed for that actor anywhere in the merged tree or either
// input clock. This preserves invariant 6 — a clock's counter must
// never fall below the highest counter it has already minted or
// observed — across a merge that pulls in an own-actor dot the local
// clock had not yet seen (e.g. reconnecting after another process wrote
// under the same actor).
func ReconcileClock(merged *node.Node, a, b *dot.Clock, actor string, maxDepth int) (*dot.Clock, error) {
	clk, err := dot.NewClock(actor)
	if err != nil {
		return nil, err
	}
	if a != nil && a.Actor() == actor {
		clk.FastForward(a.Counter())
	}
	if b != nil && b.Actor() == actor {
		clk.FastForward(b.Counter())
	}
	if err := forEachDot(merged, maxDepth, func(d dot.Dot) {
		if d.Actor == actor {
			clk.FastForward(d.Counter)
		}
	}); err != nil {
		return nil, err
	}
	return clk, nil
}
