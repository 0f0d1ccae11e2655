package intent

import (
	"github.com/luoyjx/jsoncrdt/dot"
	"github.com/luoyjx/jsoncrdt/node"
	"github.com/luoyjx/jsoncrdt/rga"
)

// sequenceSlot resolves Path+Key against root and, if present, returns
// the sequence living at that slot. hasSeq is false if the parent
// exists but the slot is absent or not a sequence.
func sequenceSlot(root *node.Node, path []PathStep, key string, maxDepth int) (parent *node.Node, seq *node.Sequence, hasSeq bool, err error) {
	parent, err = Walk(root, path, maxDepth)
	if err != nil {
		return nil, nil, false, err
	}
	if parent.Kind != node.KindObject {
		return parent, nil, false, &ApplyError{Reason: ReasonInvalidTarget}
	}
	entry, ok := parent.Object.Get(key)
	if !ok {
		return parent, nil, false, nil
	}
	if entry.Child.Kind != node.KindSequence {
		return parent, nil, false, &ApplyError{Reason: ReasonInvalidTarget}
	}
	return parent, entry.Child.Sequence, true, nil
}

// resolveRef looks up the element id a prior ArrInsert/ArrReplace
// produced, for intents whose RefOp points at it instead of a base
// index.
func resolveRef(created map[int]string, refOp int) (string, error) {
	id, ok := created[refOp]
	if !ok {
		return "", &ApplyError{Reason: ReasonMissingTarget}
	}
	return id, nil
}

func applyArrInsert(base, head *node.Node, it Intent, clk *dot.Clock, maxDepth int, created map[int]string) (string, error) {
	headParent, headSeq, headHas, errH := sequenceSlot(head, it.Path, it.Key, maxDepth)
	if errH != nil {
		return "", errH
	}

	if it.RefOp != nil {
		prev, err := resolveRef(created, *it.RefOp)
		if err != nil {
			return "", err
		}
		if !headHas {
			return "", &ApplyError{Reason: ReasonMissingTarget}
		}
		insDot := rga.MintInsertDot(headSeq, prev, clk)
		child := node.FromJSON(it.Value, clk.Next)
		rga.InsertAfter(headSeq, prev, insDot.ID(), insDot, child)
		return insDot.ID(), nil
	}

	_, baseSeq, baseHas, errB := sequenceSlot(base, it.Path, it.Key, maxDepth)
	if errB != nil {
		return "", errB
	}

	if !baseHas {
		if it.Index != 0 && !it.End {
			return "", &ApplyError{Reason: ReasonMissingTarget}
		}
		if !headHas {
			d := clk.Next()
			seqNode := node.NewSequence()
			node.ObjectSet(headParent.Object, it.Key, seqNode, d)
			headSeq = seqNode.Sequence
		}
		insDot := rga.MintInsertDot(headSeq, node.HeadID, clk)
		child := node.FromJSON(it.Value, clk.Next)
		rga.InsertAfter(headSeq, node.HeadID, insDot.ID(), insDot, child)
		return insDot.ID(), nil
	}

	prev, err := rga.ResolveInsertIndex(baseSeq, it.Index, it.End, maxDepth)
	if err != nil {
		return "", &ApplyError{Reason: ReasonOutOfBounds}
	}
	if !headHas {
		return "", &ApplyError{Reason: ReasonMissingTarget}
	}
	insDot := rga.MintInsertDot(headSeq, prev, clk)
	child := node.FromJSON(it.Value, clk.Next)
	rga.InsertAfter(headSeq, prev, insDot.ID(), insDot, child)
	return insDot.ID(), nil
}

// targetElementID resolves the head-side id of the element an
// ArrReplace/ArrDelete intent names, via its RefOp (a prior op's
// output) or via the base sequence at Index.
func targetElementID(base, head *node.Node, it Intent, maxDepth int, created map[int]string) (string, error) {
	if it.RefOp != nil {
		return resolveRef(created, *it.RefOp)
	}
	_, baseSeq, baseHas, errB := sequenceSlot(base, it.Path, it.Key, maxDepth)
	if errB != nil {
		return "", errB
	}
	if !baseHas {
		return "", &ApplyError{Reason: ReasonMissingTarget}
	}
	baseElem, err := rga.ElementAtIndex(baseSeq, it.Index, maxDepth)
	if err != nil {
		return "", &ApplyError{Reason: ReasonOutOfBounds}
	}
	return baseElem.ID, nil
}

func applyArrReplace(base, head *node.Node, it Intent, clk *dot.Clock, maxDepth int, created map[int]string) (string, error) {
	targetID, err := targetElementID(base, head, it, maxDepth, created)
	if err != nil {
		return "", err
	}

	_, headSeq, headHas, errH := sequenceSlot(head, it.Path, it.Key, maxDepth)
	if errH != nil {
		return "", errH
	}
	if !headHas {
		return "", &ApplyError{Reason: ReasonMissingTarget}
	}
	headElem, ok := headSeq.Elements[targetID]
	if !ok || headElem.Tombstone {
		return "", &ApplyError{Reason: ReasonMissingTarget}
	}

	rga.Delete(headSeq, headElem.ID)
	insDot := rga.MintInsertDot(headSeq, headElem.Prev, clk)
	child := node.FromJSON(it.Value, clk.Next)
	rga.InsertAfter(headSeq, headElem.Prev, insDot.ID(), insDot, child)
	return insDot.ID(), nil
}

func applyArrDelete(base, head *node.Node, it Intent, maxDepth int, created map[int]string) error {
	targetID, err := targetElementID(base, head, it, maxDepth, created)
	if err != nil {
		return err
	}

	_, headSeq, headHas, errH := sequenceSlot(head, it.Path, it.Key, maxDepth)
	if errH != nil {
		return errH
	}
	if !headHas {
		return &ApplyError{Reason: ReasonMissingTarget}
	}
	if !rga.Delete(headSeq, targetID) {
		return &ApplyError{Reason: ReasonMissingTarget}
	}
	return nil
}
