package jsondoc

import (
	"github.com/luoyjx/jsoncrdt/compact"
	"github.com/luoyjx/jsoncrdt/diff"
	"github.com/luoyjx/jsoncrdt/dot"
	"github.com/luoyjx/jsoncrdt/materialize"
	"github.com/luoyjx/jsoncrdt/merge"
	"github.com/luoyjx/jsoncrdt/patch"
	"github.com/luoyjx/jsoncrdt/snapshot"
)

// Materialize projects s's document down to a plain JSON value (spec
// §4.5).
func Materialize(s *State, maxDepth int) (any, error) {
	return materialize.Project(s.Doc, maxDepth)
}

// Diff computes the RFC 6902 patch that turns x into y. It operates on
// plain JSON values rather than States — spec §6 lists diff as a
// value-level operation, independent of any particular document's
// causal history.
func Diff(x, y any, cellCap, maxDepth int) ([]patch.Operation, error) {
	return diff.Diff(x, y, cellCap, maxDepth)
}

// Merge unions a and b's documents under the rules of spec §4.7 and
// reconciles a fresh clock for actor from both inputs' causal history,
// returning a brand-new State. Neither a nor b is mutated.
func Merge(a, b *State, actor string, maxDepth int) (*State, error) {
	mergedDoc, err := merge.Merge(a.Doc, b.Doc, maxDepth)
	if err != nil {
		return nil, err
	}
	clk, err := merge.ReconcileClock(mergedDoc, a.Clock, b.Clock, actor, maxDepth)
	if err != nil {
		return nil, err
	}
	return &State{Doc: mergedDoc, Clock: clk}, nil
}

// Serialize encodes s's document into the wire snapshot format of spec
// §6. The clock is not part of the wire format — it is re-derived by
// Deserialize from the dots already present in the document.
func Serialize(s *State, maxDepth int) ([]byte, error) {
	return snapshot.Serialize(s.Doc, maxDepth)
}

// Deserialize decodes a wire snapshot back into a State owned by actor.
// The clock is rebuilt by scanning the document for the highest counter
// actor has already minted, via the same reconciliation Merge uses —
// deserializing is treated as a merge against two empty histories.
func Deserialize(data []byte, actor string, maxDepth int) (*State, error) {
	doc, err := snapshot.Deserialize(data, maxDepth)
	if err != nil {
		return nil, err
	}
	clk, err := merge.ReconcileClock(doc, nil, nil, actor, maxDepth)
	if err != nil {
		return nil, err
	}
	return &State{Doc: doc, Clock: clk}, nil
}

// Compact drops tombstones that stable already dominates (spec §4.8),
// mutating s.Doc in place and returning how much was reclaimed.
func Compact(s *State, stable *dot.VersionVector, maxDepth int) (compact.Stats, error) {
	return compact.Compact(s.Doc, stable, maxDepth)
}
