package patch

import "github.com/luoyjx/jsoncrdt/pointer"

// arraySlot tracks, for one position in a sequential-semantics array
// simulation, whether that position corresponds to an element already
// present in the immutable base document (isBase, at baseIndex) or to
// one introduced earlier in the same patch by the ArrInsert/ArrReplace
// at intent-stream position refOp. The applier resolves ArrInsert's
// predecessor and ArrReplace/ArrDelete's target against the base
// sequence whenever possible (spec §4.6); refOp is the escape hatch for
// positions base resolution cannot reach.
type arraySlot struct {
	isBase    bool
	baseIndex int
	refOp     int
}

// trackers holds one slot slice per array path, lazily seeded from the
// original base document's array contents the first time that path is
// touched by an Arr* op in a sequential-semantics compile.
type trackers struct {
	byPath map[string][]arraySlot
}

func newTrackers() *trackers {
	return &trackers{byPath: make(map[string][]arraySlot)}
}

// get returns the current slots for arrPath, seeding them from base on
// first access.
func (t *trackers) get(arrPath string, base any, baseTokens []string) []arraySlot {
	if slots, ok := t.byPath[arrPath]; ok {
		return slots
	}
	slots := freshBaseSlots(base, baseTokens)
	t.byPath[arrPath] = slots
	return slots
}

// freshBaseSlots computes an uncached, all-base slot slice straight from
// base. Used instead of (*trackers).get under SemanticsBase, where every
// op's indices must resolve against the original base array regardless
// of what earlier ops in the same patch did — there is no patch-local
// accumulation to track.
func freshBaseSlots(base any, baseTokens []string) []arraySlot {
	var slots []arraySlot
	if v, ok := getJSON(base, baseTokens); ok {
		if arr, ok := v.([]any); ok {
			slots = make([]arraySlot, len(arr))
			for i := range arr {
				slots[i] = arraySlot{isBase: true, baseIndex: i}
			}
		}
	}
	return slots
}

func (t *trackers) set(arrPath string, slots []arraySlot) {
	t.byPath[arrPath] = slots
}

// arrayPathKey renders a pointer-token path to a stable map key.
func arrayPathKey(tokens []string) string {
	return pointer.Join(tokens)
}
