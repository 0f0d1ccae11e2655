package node

import "github.com/luoyjx/jsoncrdt/dot"

// FromJSON recursively lowers a plain JSON value (as produced by
// encoding/json: map[string]any, []any, string, float64, bool, nil) into
// a CRDT node tree, minting a fresh dot via next for every register,
// object entry, and sequence element it creates. This is what lets a
// single JSON Patch "add" of a composite value become a fully
// structural, independently-mergeable subtree rather than an opaque
// blob: a later patch can still target a path inside it.
func FromJSON(value any, next func() dot.Dot) *Node {
	switch v := value.(type) {
	case map[string]any:
		obj := NewObject()
		for key, child := range v {
			d := next()
			obj.Object.Entries[key] = &ObjEntry{Child: FromJSON(child, next), Dot: d}
		}
		return obj
	case []any:
		seq := NewSequence()
		prev := HeadID
		for _, child := range v {
			d := next()
			id := d.ID()
			seq.Sequence.Elements[id] = &Element{
				ID:     id,
				Prev:   prev,
				InsDot: d,
				Child:  FromJSON(child, next),
			}
			prev = id
		}
		return seq
	default:
		return NewRegister(v, next())
	}
}
