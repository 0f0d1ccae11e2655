package intent

import (
	"github.com/luoyjx/jsoncrdt/node"
	"github.com/luoyjx/jsoncrdt/rga"
)

// Walk resolves a container path against root, returning the node found
// at the end of it. An empty path returns root itself. Each step must
// match the shape of the node it is applied to: a Key step requires an
// Object, an Index step requires a Sequence resolvable via its current
// visible linearization.
func Walk(root *node.Node, path []PathStep, maxDepth int) (*node.Node, error) {
	cur := root
	for _, step := range path {
		switch step.Kind {
		case StepKey:
			if cur.Kind != node.KindObject {
				return nil, &ErrNotContainer{Step: step}
			}
			entry, ok := cur.Object.Get(step.Key)
			if !ok {
				return nil, &ErrNotContainer{Step: step, Missing: true}
			}
			cur = entry.Child
		case StepIndex:
			if cur.Kind != node.KindSequence {
				return nil, &ErrNotContainer{Step: step}
			}
			elem, err := rga.ElementAtIndex(cur.Sequence, step.Index, maxDepth)
			if err != nil {
				return nil, &ErrNotContainer{Step: step, Missing: true}
			}
			cur = elem.Child
		}
	}
	return cur, nil
}

// ErrNotContainer reports that a path step could not be resolved: the
// node at that point was not the expected container kind, or the
// referenced key/index does not exist.
type ErrNotContainer struct {
	Step    PathStep
	Missing bool
}

func (e *ErrNotContainer) Error() string {
	if e.Missing {
		return "intent: missing path step"
	}
	return "intent: path traverses a non-container"
}
