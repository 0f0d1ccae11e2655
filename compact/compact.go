// Package compact implements the whole-document tombstone compactor
// (spec §4.8): given a version vector every peer the caller will still
// sync with is guaranteed to have observed, drop the tombstones (and,
// for sequences, the tombstoned elements) that vector has made safe to
// forget.
package compact

import (
	"fmt"

	"github.com/luoyjx/jsoncrdt/dot"
	"github.com/luoyjx/jsoncrdt/node"
	"github.com/luoyjx/jsoncrdt/rga"
)

// Error reports a depth overflow during compaction.
type Error struct {
	Path []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("compact: max depth exceeded at %v", e.Path)
}

// Stats totals what a compaction pass removed.
type Stats struct {
	ObjectTombstones   int
	SequenceTombstones int
}

// Compact walks n in place and, wherever a dot is dominated by stable
// (i.e. every peer the caller still syncs with has already observed
// it), removes the tombstone that records it:
//
//   - in objects, a key's tombstone entry is dropped once its dot is
//     stable; live entries are never touched regardless of stability.
//   - in sequences, rga.Compact handles the harder case: a tombstoned
//     element whose insertion dot is stable is physically removed, with
//     any live element's prev pointer rewritten past it first.
//
// The walk uses an explicit work stack rather than native recursion
// (spec §5), so a document deeper than maxDepth fails with a typed
// error instead of exhausting the host stack. Mutation happens via the
// node/rga packages' own in-place mutators, so this package never
// constructs node internals directly.
func Compact(n *node.Node, stable *dot.VersionVector, maxDepth int) (Stats, error) {
	var stats Stats
	if n == nil {
		return stats, nil
	}

	type frame struct {
		n     *node.Node
		path  []string
		depth int
	}
	stack := []frame{{n: n, depth: 0}}

	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if fr.depth > maxDepth {
			return stats, &Error{Path: fr.path}
		}

		switch fr.n.Kind {
		case node.KindRegister:
			// No tombstones on a register; nothing to compact.

		case node.KindObject:
			for key, tombDot := range fr.n.Object.Tombstones {
				if stable.Dominates(tombDot) {
					delete(fr.n.Object.Tombstones, key)
					stats.ObjectTombstones++
				}
			}
			for key, entry := range fr.n.Object.Entries {
				stack = append(stack, frame{n: entry.Child, path: appendPath(fr.path, key), depth: fr.depth + 1})
			}

		case node.KindSequence:
			removed := rga.Compact(fr.n.Sequence, stable.Dominates)
			stats.SequenceTombstones += removed
			for id, elem := range fr.n.Sequence.Elements {
				stack = append(stack, frame{n: elem.Child, path: appendPath(fr.path, id), depth: fr.depth + 1})
			}
		}
	}

	return stats, nil
}

func appendPath(path []string, step string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, step)
}
