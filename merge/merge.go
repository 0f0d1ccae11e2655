// Package merge implements the pairwise, commutative, associative,
// idempotent state-based merge of two document trees (spec §4.7),
// including the lineage check that guards against silently splicing two
// sequences that never shared a common ancestor.
package merge

import (
	"fmt"

	"github.com/luoyjx/jsoncrdt/dot"
	"github.com/luoyjx/jsoncrdt/intent"
	"github.com/luoyjx/jsoncrdt/node"
)

// Error reports why Merge could not produce a result.
type Error struct {
	Reason intent.Reason
	Path   []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("merge: %s at %v", e.Reason, e.Path)
}

// IsLineageMismatch reports whether err is a LINEAGE_MISMATCH failure.
func IsLineageMismatch(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Reason == intent.ReasonLineageMismatch
}

// childTask is a deferred recursive merge: the pair of subtrees to
// merge, the path to them (for lineage-mismatch diagnostics), and a
// setter that wires the eventual result into its parent.
type childTask struct {
	a, b *node.Node
	path []string
	set  func(*node.Node)
}

// Merge produces a new tree that is the union of a and b under the
// per-kind rules of spec §4.7, walking both trees in lockstep with an
// explicit work stack (never native recursion) so a document deeper
// than maxDepth fails cleanly instead of exhausting the host stack.
// Either input may be nil, in which case the other is cloned and
// returned (merge's identity element).
func Merge(a, b *node.Node, maxDepth int) (*node.Node, error) {
	if a == nil && b == nil {
		return nil, nil
	}
	if a == nil {
		return node.Clone(b, maxDepth)
	}
	if b == nil {
		return node.Clone(a, maxDepth)
	}

	type frame struct {
		a, b  *node.Node
		path  []string
		depth int
		set   func(*node.Node)
	}

	var root *node.Node
	stack := []frame{{a: a, b: b, depth: 0, set: func(n *node.Node) { root = n }}}

	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if fr.depth > maxDepth {
			return nil, &Error{Reason: intent.ReasonMaxDepthExceeded, Path: fr.path}
		}

		merged, children, err := mergeOne(fr.a, fr.b, fr.path, maxDepth-fr.depth)
		if err != nil {
			return nil, err
		}
		fr.set(merged)
		for _, c := range children {
			stack = append(stack, frame{a: c.a, b: c.b, path: c.path, depth: fr.depth + 1, set: c.set})
		}
	}
	return root, nil
}

// mergeOne merges a single pair of co-located nodes, returning any
// deferred child merges the caller's stack must still process.
func mergeOne(a, b *node.Node, path []string, budget int) (*node.Node, []childTask, error) {
	if a.Kind != b.Kind {
		merged, err := mergeKindMismatch(a, b, budget)
		return merged, nil, err
	}
	switch a.Kind {
	case node.KindRegister:
		return mergeRegister(a, b), nil, nil
	case node.KindObject:
		return mergeObject(a, b, path, budget)
	case node.KindSequence:
		return mergeSequence(a, b, path, budget)
	default:
		return nil, nil, fmt.Errorf("merge: unknown node kind %v", a.Kind)
	}
}

// mergeRegister keeps the value whose dot is greater (spec §4.7,
// Register ∧ Register); ties are equivalent, so either may be kept.
func mergeRegister(a, b *node.Node) *node.Node {
	if dot.Compare(b.Register.Dot, a.Register.Dot) > 0 {
		return node.NewRegister(b.Register.Value, b.Register.Dot)
	}
	return node.NewRegister(a.Register.Value, a.Register.Dot)
}

// mergeKindMismatch handles the case where the same path holds a
// different node kind on each side — for example when a root-level
// replace concurrently changed kinds, or concurrent writes put values of
// different kinds at the same key (spec §9). The side with the
// greater representative dot (the max dot anywhere in its subtree)
// replaces the other wholesale; there is no field-by-field merge to do.
func mergeKindMismatch(a, b *node.Node, budget int) (*node.Node, error) {
	aDot, err := maxDotInSubtree(a, budget)
	if err != nil {
		return nil, err
	}
	bDot, err := maxDotInSubtree(b, budget)
	if err != nil {
		return nil, err
	}
	winner := a
	if dot.Compare(bDot, aDot) > 0 {
		winner = b
	}
	return node.Clone(winner, budget)
}

func appendPath(path []string, step string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, step)
}
