// Package snapshot implements the JSON-serializable wire mirror of a
// document tree (spec §6): a plain, tagged structure any JSON encoder
// can round-trip, independent of this module's internal node pointers.
package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/luoyjx/jsoncrdt/dot"
	"github.com/luoyjx/jsoncrdt/intent"
	"github.com/luoyjx/jsoncrdt/node"
)

// Kind discriminator strings on the wire, matching spec §6 exactly.
const (
	kindRegister = "lww"
	kindObject   = "obj"
	kindSequence = "seq"
)

// Error reports why serialization or deserialization failed.
type Error struct {
	Reason intent.Reason
	Path   []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("snapshot: %s at %v", e.Reason, e.Path)
}

// wireDot is a dot's wire form: {actor, ctr}.
type wireDot struct {
	Actor string `json:"actor"`
	Ctr   uint64 `json:"ctr"`
}

// wireNode is the tagged union on the wire. Exactly the fields for Kind
// are populated; the rest are omitted.
type wireNode struct {
	Kind string `json:"kind"`

	// lww
	Value any      `json:"value,omitempty"`
	Dot   *wireDot `json:"dot,omitempty"`

	// obj
	Entries    map[string]*wireEntry `json:"entries,omitempty"`
	Tombstones map[string]wireDot    `json:"tombstones,omitempty"`

	// seq
	Elements []wireElement `json:"elements,omitempty"`
}

type wireEntry struct {
	Child wireNode `json:"child"`
	Dot   wireDot  `json:"dot"`
}

type wireElement struct {
	ID        string   `json:"id"`
	Prev      string   `json:"prev"`
	Tombstone bool     `json:"tombstone"`
	Value     wireNode `json:"value"`
	InsDot    wireDot  `json:"insDot"`
}

func toWireDot(d dot.Dot) wireDot {
	return wireDot{Actor: d.Actor, Ctr: d.Counter}
}

func fromWireDot(d wireDot) dot.Dot {
	return dot.Dot{Actor: d.Actor, Counter: d.Ctr}
}

// Serialize converts n into its wire form and marshals it to JSON, using
// an explicit work stack (spec §5) rather than native recursion so a
// document deeper than maxDepth fails cleanly.
func Serialize(n *node.Node, maxDepth int) ([]byte, error) {
	w, err := toWire(n, maxDepth)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

func toWire(n *node.Node, maxDepth int) (*wireNode, error) {
	if n == nil {
		return nil, nil
	}

	root := &wireNode{}

	type frame struct {
		src   *node.Node
		dst   *wireNode
		path  []string
		depth int
	}
	stack := []frame{{src: n, dst: root, depth: 0}}

	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if fr.depth > maxDepth {
			return nil, &Error{Reason: intent.ReasonMaxDepthExceeded, Path: fr.path}
		}

		switch fr.src.Kind {
		case node.KindRegister:
			fr.dst.Kind = kindRegister
			fr.dst.Value = fr.src.Register.Value
			d := toWireDot(fr.src.Register.Dot)
			fr.dst.Dot = &d

		case node.KindObject:
			fr.dst.Kind = kindObject
			fr.dst.Entries = make(map[string]*wireEntry, len(fr.src.Object.Entries))
			fr.dst.Tombstones = make(map[string]wireDot, len(fr.src.Object.Tombstones))
			for key, tomb := range fr.src.Object.Tombstones {
				fr.dst.Tombstones[key] = toWireDot(tomb)
			}
			for key, entry := range fr.src.Object.Entries {
				we := &wireEntry{Dot: toWireDot(entry.Dot)}
				fr.dst.Entries[key] = we
				stack = append(stack, frame{
					src: entry.Child, depth: fr.depth + 1, path: appendPath(fr.path, key),
					dst: &we.Child,
				})
			}

		case node.KindSequence:
			fr.dst.Kind = kindSequence
			fr.dst.Elements = make([]wireElement, len(fr.src.Sequence.Elements))
			i := 0
			for id, elem := range fr.src.Sequence.Elements {
				idx := i
				i++
				fr.dst.Elements[idx] = wireElement{
					ID: id, Prev: elem.Prev, Tombstone: elem.Tombstone,
					InsDot: toWireDot(elem.InsDot),
				}
				stack = append(stack, frame{
					src: elem.Child, depth: fr.depth + 1, path: appendPath(fr.path, id),
					dst: &fr.dst.Elements[idx].Value,
				})
			}

		default:
			return nil, fmt.Errorf("snapshot: unknown node kind %v", fr.src.Kind)
		}
	}

	return root, nil
}

func appendPath(path []string, step string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, step)
}
