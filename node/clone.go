package node

// Clone deep-copies n up to maxDepth levels, using an explicit work
// stack rather than native recursion so that documents deeper than the
// host's call stack do not crash the process (spec §5). It returns
// ErrMaxDepthExceeded if n is deeper than maxDepth.
func Clone(n *Node, maxDepth int) (*Node, error) {
	if n == nil {
		return nil, nil
	}
	root := shallowCopy(n)

	type frame struct {
		src, dst *Node
		depth    int
	}
	stack := []frame{{n, root, 0}}

	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if fr.depth > maxDepth {
			return nil, &ErrMaxDepthExceeded{MaxDepth: maxDepth}
		}

		switch fr.src.Kind {
		case KindRegister:
			// Leaf: nothing to recurse into. The register's value is a
			// plain JSON scalar/composite snapshot; a shallow copy of the
			// Register struct already detached dst from src's pointer.
		case KindObject:
			for key, entry := range fr.src.Object.Entries {
				childCopy := shallowCopy(entry.Child)
				fr.dst.Object.Entries[key] = &ObjEntry{Child: childCopy, Dot: entry.Dot}
				stack = append(stack, frame{entry.Child, childCopy, fr.depth + 1})
			}
		case KindSequence:
			for id, elem := range fr.src.Sequence.Elements {
				childCopy := shallowCopy(elem.Child)
				fr.dst.Sequence.Elements[id] = &Element{
					ID:        elem.ID,
					Prev:      elem.Prev,
					InsDot:    elem.InsDot,
					Child:     childCopy,
					Tombstone: elem.Tombstone,
				}
				stack = append(stack, frame{elem.Child, childCopy, fr.depth + 1})
			}
		}
	}
	return root, nil
}

// shallowCopy allocates a fresh Node/Register/Object/Sequence of the
// same kind as n, with empty child containers ready to be populated by
// the caller, but does not copy n's children.
func shallowCopy(n *Node) *Node {
	switch n.Kind {
	case KindRegister:
		return &Node{Kind: KindRegister, Register: &Register{Value: n.Register.Value, Dot: n.Register.Dot}}
	case KindObject:
		out := NewObject()
		for key, tomb := range n.Object.Tombstones {
			out.Object.Tombstones[key] = tomb
		}
		return out
	case KindSequence:
		return NewSequence()
	default:
		panic("node: unknown kind in shallowCopy")
	}
}
