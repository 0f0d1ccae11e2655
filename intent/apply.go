package intent

import (
	"reflect"

	"github.com/luoyjx/jsoncrdt/dot"
	"github.com/luoyjx/jsoncrdt/materialize"
	"github.com/luoyjx/jsoncrdt/node"
)

// Apply runs intents in order against head, using base for index and
// Test resolution, per spec §4.6. It halts on the first failing intent
// without rolling back prior mutations (the caller is expected to have
// cloned head first if it needs atomicity). It returns the resulting
// head node — ordinarily the same pointer passed in, except when a
// root-replacing ObjSet intent produces a brand new root — even on
// error, so a non-atomic caller still observes every mutation that
// committed before the failing intent, including a root swap.
func Apply(base, head *node.Node, intents []Intent, clk *dot.Clock, testAgainst Selector, maxDepth int) (*node.Node, error) {
	created := make(map[int]string)
	for i, it := range intents {
		var err error
		switch it.Kind {
		case KindTest:
			err = applyTest(base, head, it, testAgainst, maxDepth)
		case KindObjSet:
			head, err = applyObjSet(head, it, clk, maxDepth)
		case KindObjRemove:
			err = applyObjRemove(head, it, clk, maxDepth)
		case KindArrInsert:
			var id string
			id, err = applyArrInsert(base, head, it, clk, maxDepth, created)
			if err == nil {
				created[i] = id
			}
		case KindArrReplace:
			var id string
			id, err = applyArrReplace(base, head, it, clk, maxDepth, created)
			if err == nil {
				created[i] = id
			}
		case KindArrDelete:
			err = applyArrDelete(base, head, it, maxDepth, created)
		}
		if err != nil {
			return head, toApplyError(err, i, it.Path)
		}
	}
	return head, nil
}

// toApplyError normalizes the errors produced by the ops into a single
// *ApplyError carrying the op index and path: an *ApplyError gets op set
// (and path, if it has none), *node.ErrMaxDepthExceeded becomes
// MAX_DEPTH_EXCEEDED, *ErrNotContainer becomes MISSING_PARENT or
// INVALID_TARGET, and any other error is returned unchanged.
func toApplyError(err error, op int, path []PathStep) error {
	switch e := err.(type) {
	case *ApplyError:
		e.Op = op
		if len(e.Path) == 0 {
			e.Path = path
		}
		return e
	case *node.ErrMaxDepthExceeded:
		return &ApplyError{Reason: ReasonMaxDepthExceeded, Op: op, Path: path}
	case *ErrNotContainer:
		reason := ReasonInvalidTarget
		if e.Missing {
			reason = ReasonMissingParent
		}
		return &ApplyError{Reason: reason, Op: op, Path: path}
	default:
		return err
	}
}

func applyTest(base, head *node.Node, it Intent, sel Selector, maxDepth int) error {
	root := head
	if sel == SelectorBase {
		root = base
	}
	target, err := Walk(root, it.Path, maxDepth)
	if err != nil {
		return &ApplyError{Reason: ReasonMissingTarget}
	}
	got, err := materialize.Project(target, maxDepth)
	if err != nil {
		return err
	}
	if !reflect.DeepEqual(got, it.Value) {
		return &ApplyError{Reason: ReasonTestFailed}
	}
	return nil
}

func applyObjSet(head *node.Node, it Intent, clk *dot.Clock, maxDepth int) (*node.Node, error) {
	if it.Key == RootKey {
		newRoot := node.FromJSON(it.Value, clk.Next)
		return newRoot, nil
	}

	parent, err := Walk(head, it.Path, maxDepth)
	if err != nil {
		return head, err
	}
	if parent.Kind != node.KindObject {
		return head, &ApplyError{Reason: ReasonInvalidTarget}
	}
	if it.Mode == ModeReplace && !parent.Object.Has(it.Key) {
		return head, &ApplyError{Reason: ReasonMissingTarget}
	}

	d := clk.Next()
	child := node.FromJSON(it.Value, clk.Next)
	node.ObjectSet(parent.Object, it.Key, child, d)
	return head, nil
}

func applyObjRemove(head *node.Node, it Intent, clk *dot.Clock, maxDepth int) error {
	parent, err := Walk(head, it.Path, maxDepth)
	if err != nil {
		return err
	}
	if parent.Kind != node.KindObject {
		return &ApplyError{Reason: ReasonInvalidTarget}
	}
	if !parent.Object.Has(it.Key) {
		return &ApplyError{Reason: ReasonMissingTarget}
	}
	node.ObjectRemove(parent.Object, it.Key, clk.Next())
	return nil
}
