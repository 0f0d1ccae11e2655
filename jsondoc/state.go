// Package jsondoc is the public facade over the core engine (spec §1,
// §6): a document plus its clock, and the operations a caller drives a
// replica through — create, fork, patch, materialize, diff, merge,
// serialize, compact. It is intentionally thin: every hard piece of
// engineering (the RGA, the patch compiler, the merge rules, the wire
// format) lives in its own package, already out of scope for this
// layer per spec §1's "out of scope" list.
package jsondoc

import (
	"fmt"

	"github.com/luoyjx/jsoncrdt/dot"
	"github.com/luoyjx/jsoncrdt/intent"
	"github.com/luoyjx/jsoncrdt/node"
)

// State is a document paired with the clock that mints its local dots
// (spec §3: "State: (document, clock)").
type State struct {
	Doc   *node.Node
	Clock *dot.Clock
}

// Error reports a facade-level failure that has no natural home in any
// single underlying package (an invalid initial document, for
// instance). Operations that fail inside patch/intent/merge/compact/
// snapshot/diff propagate that package's own typed error unchanged,
// per spec §7's propagation policy.
type Error struct {
	Reason intent.Reason
	Path   []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsondoc: %s at %v", e.Reason, e.Path)
}

// CreateState builds a fresh state from a plain JSON value, owned by
// actor. base must be within maxDepth or creation fails rather than
// building a document the rest of the module could not safely traverse
// later.
func CreateState(base any, actor string, maxDepth int) (*State, error) {
	if err := checkJSONDepth(base, maxDepth); err != nil {
		return nil, err
	}
	clk, err := dot.NewClock(actor)
	if err != nil {
		return nil, err
	}
	doc := node.FromJSON(base, clk.Next)
	return &State{Doc: doc, Clock: clk}, nil
}

// Fork produces an independent replica of s: a deep clone of the
// document under a brand-new, globally-unique actor (spec §4.1 — reusing
// the origin's actor would let the two replicas mint colliding dots and
// break convergence).
func Fork(s *State, maxDepth int) (*State, error) {
	doc, err := node.Clone(s.Doc, maxDepth)
	if err != nil {
		return nil, err
	}
	clk, err := dot.NewClock(dot.NewActor())
	if err != nil {
		return nil, err
	}
	return &State{Doc: doc, Clock: clk}, nil
}

// checkJSONDepth walks a raw JSON value (not yet a node tree) with an
// explicit work stack, matching the bounded-traversal discipline every
// other package in this module follows (spec §5).
func checkJSONDepth(v any, maxDepth int) error {
	type frame struct {
		v     any
		depth int
	}
	stack := []frame{{v, 0}}
	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if fr.depth > maxDepth {
			return &Error{Reason: intent.ReasonMaxDepthExceeded}
		}
		switch t := fr.v.(type) {
		case map[string]any:
			for _, vv := range t {
				stack = append(stack, frame{vv, fr.depth + 1})
			}
		case []any:
			for _, vv := range t {
				stack = append(stack, frame{vv, fr.depth + 1})
			}
		}
	}
	return nil
}
