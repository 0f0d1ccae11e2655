package rga

import (
	"github.com/luoyjx/jsoncrdt/dot"
	"github.com/luoyjx/jsoncrdt/node"
)

// Compact removes every element that is tombstoned and whose insertion
// dot is reported stable by the caller-supplied predicate, rewriting the
// prev pointer of any live element that pointed at a removed element to
// the removed element's own prev first (spec §4.3, preserving invariant
// 3: every live element's prev chain terminates at a live element or
// HEAD). It returns the number of elements removed.
func Compact(seq *node.Sequence, stable func(dot.Dot) bool) int {
	toRemove := make(map[string]bool)
	for id, elem := range seq.Elements {
		if elem.Tombstone && stable(elem.InsDot) {
			toRemove[id] = true
		}
	}
	if len(toRemove) == 0 {
		return 0
	}

	// Rewrite prev pointers of elements (live or tombstoned-but-kept)
	// that point at a removed id, walking up the chain of consecutively
	// removed predecessors until a surviving anchor is found.
	resolve := func(id string) string {
		for toRemove[id] {
			elem, ok := seq.Elements[id]
			if !ok {
				return node.HeadID
			}
			id = elem.Prev
		}
		return id
	}

	for id, elem := range seq.Elements {
		if toRemove[id] {
			continue
		}
		elem.Prev = resolve(elem.Prev)
	}

	for id := range toRemove {
		delete(seq.Elements, id)
	}
	seq.Invalidate()
	return len(toRemove)
}
