// Package materialize projects a CRDT node tree into plain JSON values
// (spec §4.4): registers become their stored value, objects become
// plain maps of live entries, and sequences become arrays of live
// elements in linearized order.
package materialize

import (
	"github.com/luoyjx/jsoncrdt/node"
	"github.com/luoyjx/jsoncrdt/rga"
)

// frame is one pending source node in the iterative work stack, with a
// setter that writes its materialized value into an object key, a
// sequence slot, or the top-level result.
type frame struct {
	src   *node.Node
	depth int
	// set writes the materialized value for src into its destination.
	set func(any)
}

// Project converts n into a plain JSON value (map[string]any, []any, or
// a scalar), bounded to maxDepth levels, using an explicit work stack
// rather than native recursion (spec §4.4, §5). Register payloads are
// deep-copied so the result holds no references into the CRDT tree.
func Project(n *node.Node, maxDepth int) (any, error) {
	if n == nil {
		return nil, nil
	}

	var result any
	stack := []frame{{src: n, depth: 0, set: func(v any) { result = v }}}

	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if fr.depth > maxDepth {
			return nil, &node.ErrMaxDepthExceeded{MaxDepth: maxDepth}
		}

		switch fr.src.Kind {
		case node.KindRegister:
			fr.set(deepCopyValue(fr.src.Register.Value))

		case node.KindObject:
			out := make(map[string]any, len(fr.src.Object.Entries))
			fr.set(out)
			for key, entry := range fr.src.Object.Entries {
				key, entry := key, entry
				stack = append(stack, frame{
					src:   entry.Child,
					depth: fr.depth + 1,
					set:   func(v any) { out[key] = v },
				})
			}

		case node.KindSequence:
			order, err := rga.VisibleOrder(fr.src.Sequence, maxDepth)
			if err != nil {
				return nil, err
			}
			out := make([]any, len(order))
			fr.set(out)
			for i, id := range order {
				i := i
				elem := fr.src.Sequence.Elements[id]
				stack = append(stack, frame{
					src:   elem.Child,
					depth: fr.depth + 1,
					set:   func(v any) { out[i] = v },
				})
			}

		default:
			panic("materialize: unknown node kind")
		}
	}
	return result, nil
}

// deepCopyValue copies a register's JSON value so the materialized
// result shares no mutable structure with the stored node. Register
// values are themselves plain JSON (map[string]any/[]any/scalars) since
// composite additions are lowered to structural nodes by node.FromJSON;
// this only needs to handle the remaining plain-JSON shapes.
func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = deepCopyValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = deepCopyValue(vv)
		}
		return out
	default:
		return v
	}
}
