package snapshot

import (
	"encoding/json"
	"math"

	"github.com/luoyjx/jsoncrdt/dot"
	"github.com/luoyjx/jsoncrdt/intent"
	"github.com/luoyjx/jsoncrdt/node"
)

// Deserialize parses JSON-serialized wire bytes back into a node tree,
// checking every invariant spec §6 demands along the way: a sequence
// element's id must equal the canonical string of its insDot, its prev
// must be HEAD or another element in the same sequence (never itself),
// dots must carry a non-empty actor and a safe-integer counter, and
// register payloads must contain only finite numbers. Any violation
// fails with a pointer to the offending location, never a partial tree.
func Deserialize(data []byte, maxDepth int) (*node.Node, error) {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &Error{Reason: intent.ReasonInvalidSerializedShape}
	}
	return fromWire(&w, maxDepth)
}

// maxSafeInteger is JavaScript's Number.MAX_SAFE_INTEGER, the ceiling
// the spec holds counters to so a wire document stays representable in
// any JSON consumer, not just this Go implementation.
const maxSafeInteger = 1<<53 - 1

func fromWire(w *wireNode, maxDepth int) (*node.Node, error) {
	if w == nil {
		return nil, nil
	}

	root := &node.Node{}

	type frame struct {
		src   *wireNode
		dst   *node.Node
		path  []string
		depth int
	}
	stack := []frame{{src: w, dst: root, depth: 0}}

	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if fr.depth > maxDepth {
			return nil, &Error{Reason: intent.ReasonMaxDepthExceeded, Path: fr.path}
		}

		switch fr.src.Kind {
		case kindRegister:
			if fr.src.Dot == nil {
				return nil, &Error{Reason: intent.ReasonInvalidSerializedShape, Path: fr.path}
			}
			d, err := checkWireDot(*fr.src.Dot, fr.path)
			if err != nil {
				return nil, err
			}
			if !finiteNumbers(fr.src.Value) {
				return nil, &Error{Reason: intent.ReasonInvalidSerializedInvariant, Path: fr.path}
			}
			fr.dst.Kind = node.KindRegister
			fr.dst.Register = &node.Register{Value: fr.src.Value, Dot: d}

		case kindObject:
			fr.dst.Kind = node.KindObject
			fr.dst.Object = &node.Object{
				Entries:    make(map[string]*node.ObjEntry, len(fr.src.Entries)),
				Tombstones: make(map[string]dot.Dot, len(fr.src.Tombstones)),
			}
			for key, wd := range fr.src.Tombstones {
				d, err := checkWireDot(wd, appendPath(fr.path, key))
				if err != nil {
					return nil, err
				}
				fr.dst.Object.Tombstones[key] = d
			}
			for key, we := range fr.src.Entries {
				if we == nil {
					return nil, &Error{Reason: intent.ReasonInvalidSerializedShape, Path: appendPath(fr.path, key)}
				}
				d, err := checkWireDot(we.Dot, appendPath(fr.path, key))
				if err != nil {
					return nil, err
				}
				childDst := &node.Node{}
				fr.dst.Object.Entries[key] = &node.ObjEntry{Child: childDst, Dot: d}
				stack = append(stack, frame{
					src: &we.Child, dst: childDst, depth: fr.depth + 1, path: appendPath(fr.path, key),
				})
			}

		case kindSequence:
			fr.dst.Kind = node.KindSequence
			fr.dst.Sequence = &node.Sequence{Elements: make(map[string]*node.Element, len(fr.src.Elements))}
			for i := range fr.src.Elements {
				we := &fr.src.Elements[i]
				elemPath := appendPath(fr.path, we.ID)

				insDot, err := checkWireDot(we.InsDot, elemPath)
				if err != nil {
					return nil, err
				}
				if we.ID != insDot.ID() {
					return nil, &Error{Reason: intent.ReasonInvalidSerializedInvariant, Path: elemPath}
				}
				if we.Prev == we.ID {
					return nil, &Error{Reason: intent.ReasonInvalidSerializedInvariant, Path: elemPath}
				}
				if we.Prev != node.HeadID {
					if _, err := dot.ParseID(we.Prev); err != nil {
						return nil, &Error{Reason: intent.ReasonInvalidSerializedInvariant, Path: elemPath}
					}
				}

				childDst := &node.Node{}
				fr.dst.Sequence.Elements[we.ID] = &node.Element{
					ID: we.ID, Prev: we.Prev, InsDot: insDot, Child: childDst, Tombstone: we.Tombstone,
				}
				stack = append(stack, frame{
					src: &we.Value, dst: childDst, depth: fr.depth + 1, path: elemPath,
				})
			}
			// prev must reference an element that actually exists in this
			// same sequence (or HEAD); checked once the whole element set
			// is known, rather than per-element during the first pass.
			for id, elem := range fr.dst.Sequence.Elements {
				if elem.Prev == node.HeadID {
					continue
				}
				if _, ok := fr.dst.Sequence.Elements[elem.Prev]; !ok {
					return nil, &Error{Reason: intent.ReasonInvalidSerializedInvariant, Path: appendPath(fr.path, id)}
				}
			}

		default:
			return nil, &Error{Reason: intent.ReasonInvalidSerializedShape, Path: fr.path}
		}
	}

	return root, nil
}

func checkWireDot(w wireDot, path []string) (dot.Dot, error) {
	if w.Actor == "" {
		return dot.Dot{}, &Error{Reason: intent.ReasonInvalidSerializedInvariant, Path: path}
	}
	if w.Ctr > maxSafeInteger {
		return dot.Dot{}, &Error{Reason: intent.ReasonInvalidSerializedInvariant, Path: path}
	}
	return fromWireDot(w), nil
}

// finiteNumbers reports whether v, and every number nested within it,
// is finite. JSON text cannot itself encode NaN/Infinity, so this is a
// defensive check against values constructed by a non-JSON-text path.
func finiteNumbers(v any) bool {
	switch t := v.(type) {
	case float64:
		return !math.IsNaN(t) && !math.IsInf(t, 0)
	case map[string]any:
		for _, elem := range t {
			if !finiteNumbers(elem) {
				return false
			}
		}
		return true
	case []any:
		for _, elem := range t {
			if !finiteNumbers(elem) {
				return false
			}
		}
		return true
	default:
		return true
	}
}
