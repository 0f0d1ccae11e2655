// Package rga implements insertion, deletion, linearization, index
// resolution, and compaction over the sequence node's causal tree (spec
// §4.3). The tree is keyed by `prev`; visibility and order are derived
// by traversal rather than stored in a flat slice.
package rga

import (
	"sort"

	"github.com/luoyjx/jsoncrdt/dot"
	"github.com/luoyjx/jsoncrdt/node"
)

// InsertAfter stores a new element with predecessor prev, id id, and
// child child under insDot. If id is already present the call is a
// no-op, making insertion idempotent under replay.
func InsertAfter(seq *node.Sequence, prev, id string, insDot dot.Dot, child *node.Node) bool {
	if _, exists := seq.Elements[id]; exists {
		return false
	}
	seq.Elements[id] = &node.Element{
		ID:     id,
		Prev:   prev,
		InsDot: insDot,
		Child:  child,
	}
	seq.Invalidate()
	return true
}

// Delete marks id's tombstone flag, idempotently. Reports whether it
// changed anything.
func Delete(seq *node.Sequence, id string) bool {
	elem, ok := seq.Elements[id]
	if !ok || elem.Tombstone {
		return false
	}
	elem.Tombstone = true
	seq.Invalidate()
	return true
}

// frame is a DFS stack entry: the prev-key whose children are being
// visited, and an index into that group's already-sorted sibling slice.
type frame struct {
	children []*node.Element
	index    int
}

// Linearize returns the full element-id order (including tombstoned
// elements) produced by depth-first, descending-sibling traversal from
// HEAD (spec §4.3, rules 1-3). The result is cached on seq and reused
// until the next mutation. maxDepth bounds recursion depth, since this
// walk uses an explicit stack rather than the Go call stack.
func Linearize(seq *node.Sequence, maxDepth int) ([]string, error) {
	if cached, ok := seq.CachedLinearization(); ok {
		return cached, nil
	}

	byPrev := groupByPrev(seq)
	order := make([]string, 0, len(seq.Elements))

	stack := []frame{{children: byPrev[node.HeadID]}}
	for len(stack) > 0 {
		if len(stack) > maxDepth {
			return nil, &node.ErrMaxDepthExceeded{MaxDepth: maxDepth}
		}
		top := &stack[len(stack)-1]
		if top.index >= len(top.children) {
			stack = stack[:len(stack)-1]
			continue
		}
		elem := top.children[top.index]
		top.index++
		order = append(order, elem.ID)
		stack = append(stack, frame{children: byPrev[elem.ID]})
	}

	seq.SetCachedLinearization(order)
	return order, nil
}

// VisibleOrder returns Linearize's result filtered to non-tombstoned
// element ids.
func VisibleOrder(seq *node.Sequence, maxDepth int) ([]string, error) {
	all, err := Linearize(seq, maxDepth)
	if err != nil {
		return nil, err
	}
	visible := make([]string, 0, len(all))
	for _, id := range all {
		if elem := seq.Elements[id]; elem != nil && !elem.Tombstone {
			visible = append(visible, id)
		}
	}
	return visible, nil
}

// groupByPrev buckets elements by their prev field, each bucket sorted
// by insertion dot descending (spec §4.3 rule 2).
func groupByPrev(seq *node.Sequence) map[string][]*node.Element {
	byPrev := make(map[string][]*node.Element)
	for _, elem := range seq.Elements {
		byPrev[elem.Prev] = append(byPrev[elem.Prev], elem)
	}
	for prev, siblings := range byPrev {
		sort.Slice(siblings, func(i, j int) bool {
			return dot.Compare(siblings[i].InsDot, siblings[j].InsDot) > 0
		})
		byPrev[prev] = siblings
	}
	return byPrev
}

// ResolveInsertIndex maps an external JSON Patch array index to the
// predecessor id that a new element should be inserted after: HEAD for
// index 0, the id of the element currently at index-1 otherwise. end
// selects "after the last visible element" (the `-` token or an
// unbounded index), ignoring index. It validates 0 <= index <=
// len(visible).
func ResolveInsertIndex(seq *node.Sequence, index int, end bool, maxDepth int) (string, error) {
	visible, err := VisibleOrder(seq, maxDepth)
	if err != nil {
		return "", err
	}
	if end {
		if len(visible) == 0 {
			return node.HeadID, nil
		}
		return visible[len(visible)-1], nil
	}
	if index < 0 || index > len(visible) {
		return "", errOutOfBounds
	}
	if index == 0 {
		return node.HeadID, nil
	}
	return visible[index-1], nil
}

// ElementAtIndex returns the element currently at visible index i,
// using 0-based indexing, for replace/delete resolution.
func ElementAtIndex(seq *node.Sequence, index int, maxDepth int) (*node.Element, error) {
	visible, err := VisibleOrder(seq, maxDepth)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(visible) {
		return nil, errOutOfBounds
	}
	return seq.Elements[visible[index]], nil
}

// errOutOfBounds is a sentinel the patch/intent layers translate into
// their own typed OUT_OF_BOUNDS errors; rga itself carries no opinion
// on error-reason vocabularies.
var errOutOfBounds = &boundsError{}

type boundsError struct{}

func (*boundsError) Error() string { return "rga: index out of bounds" }

// IsOutOfBounds reports whether err was produced by an out-of-range
// index passed to ResolveInsertIndex or ElementAtIndex.
func IsOutOfBounds(err error) bool {
	_, ok := err.(*boundsError)
	return ok
}
