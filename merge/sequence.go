package merge

import (
	"github.com/luoyjx/jsoncrdt/intent"
	"github.com/luoyjx/jsoncrdt/node"
)

// mergeSequence implements spec §4.7's Sequence ∧ Sequence rule: for
// each element id in the union, an id present on both sides keeps a
// single element whose tombstone is the delete-biased OR and whose
// child recursively merges (deferred onto the caller's stack); an id
// present on only one side is cloned in wholesale. prev/insDot are
// taken from whichever side has the id, since the spec guarantees they
// agree on both sides by construction.
//
// Before any of that, the lineage check: if both sides hold non-empty
// element sets with no id in common, the two sequences almost certainly
// have unrelated histories, and silently unioning them would splice
// unrelated content with an arbitrary interleaving — so this fails
// LINEAGE_MISMATCH instead.
func mergeSequence(a, b *node.Node, path []string, budget int) (*node.Node, []childTask, error) {
	aSeq, bSeq := a.Sequence, b.Sequence

	if len(aSeq.Elements) > 0 && len(bSeq.Elements) > 0 {
		shared := false
		for id := range aSeq.Elements {
			if _, ok := bSeq.Elements[id]; ok {
				shared = true
				break
			}
		}
		if !shared {
			return nil, nil, &Error{Reason: intent.ReasonLineageMismatch, Path: append([]string{}, path...)}
		}
	}

	out := node.NewSequence()
	var tasks []childTask
	for _, id := range unionSequenceIDs(aSeq, bSeq) {
		aElem, aOK := aSeq.Elements[id]
		bElem, bOK := bSeq.Elements[id]

		switch {
		case aOK && bOK:
			elem := &node.Element{
				ID:        aElem.ID,
				Prev:      aElem.Prev,
				InsDot:    aElem.InsDot,
				Tombstone: aElem.Tombstone || bElem.Tombstone,
			}
			out.Sequence.Elements[id] = elem
			tasks = append(tasks, childTask{
				a: aElem.Child, b: bElem.Child, path: path,
				set: func(n *node.Node) { elem.Child = n },
			})
		case aOK:
			cloned, err := node.Clone(aElem.Child, budget)
			if err != nil {
				return nil, nil, err
			}
			out.Sequence.Elements[id] = &node.Element{
				ID: aElem.ID, Prev: aElem.Prev, InsDot: aElem.InsDot,
				Child: cloned, Tombstone: aElem.Tombstone,
			}
		case bOK:
			cloned, err := node.Clone(bElem.Child, budget)
			if err != nil {
				return nil, nil, err
			}
			out.Sequence.Elements[id] = &node.Element{
				ID: bElem.ID, Prev: bElem.Prev, InsDot: bElem.InsDot,
				Child: cloned, Tombstone: bElem.Tombstone,
			}
		}
	}

	return out, tasks, nil
}

func unionSequenceIDs(a, b *node.Sequence) []string {
	seen := make(map[string]bool, len(a.Elements)+len(b.Elements))
	ids := make([]string, 0, len(a.Elements)+len(b.Elements))
	for id := range a.Elements {
		seen[id] = true
		ids = append(ids, id)
	}
	for id := range b.Elements {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}
