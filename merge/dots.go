package merge

import (
	"github.com/luoyjx/jsoncrdt/dot"
	"github.com/luoyjx/jsoncrdt/intent"
	"github.com/luoyjx/jsoncrdt/node"
)

// forEachDot visits every dot appearing anywhere in n's subtree —
// registers' own dot, objects' tombstone and entry dots, sequences'
// element insertion dots — using an explicit work stack rather than
// native recursion (spec §5). It is the shared traversal behind both
// the kind-mismatch representative-dot rule and clock reconciliation
// after merge.
func forEachDot(n *node.Node, maxDepth int, visit func(dot.Dot)) error {
	if n == nil {
		return nil
	}
	type frame struct {
		n     *node.Node
		depth int
	}
	stack := []frame{{n, 0}}
	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if fr.depth > maxDepth {
			return &Error{Reason: intent.ReasonMaxDepthExceeded}
		}

		switch fr.n.Kind {
		case node.KindRegister:
			visit(fr.n.Register.Dot)
		case node.KindObject:
			for _, d := range fr.n.Object.Tombstones {
				visit(d)
			}
			for _, entry := range fr.n.Object.Entries {
				visit(entry.Dot)
				stack = append(stack, frame{entry.Child, fr.depth + 1})
			}
		case node.KindSequence:
			for _, elem := range fr.n.Sequence.Elements {
				visit(elem.InsDot)
				stack = append(stack, frame{elem.Child, fr.depth + 1})
			}
		}
	}
	return nil
}

// maxDotInSubtree returns the greatest dot anywhere in n's subtree,
// used by the kind-mismatch merge rule (spec §4.7, §9).
func maxDotInSubtree(n *node.Node, maxDepth int) (dot.Dot, error) {
	var max dot.Dot
	err := forEachDot(n, maxDepth, func(d dot.Dot) {
		if dot.Compare(d, max) > 0 {
			max = d
		}
	})
	return max, err
}
