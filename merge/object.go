package merge

import (
	"github.com/luoyjx/jsoncrdt/dot"
	"github.com/luoyjx/jsoncrdt/node"
)

// mergeObject implements spec §4.7's Object ∧ Object rule: tombstones
// union by max-dot; entries present on both sides recursively merge
// (entry-dot becomes the larger of the two) and are deferred onto the
// caller's work stack; entries present on only one side are cloned in
// wholesale (so the result never aliases either input's subtree); then
// delete-wins drops any entry whose key tombstone dot is >= its own.
func mergeObject(a, b *node.Node, path []string, budget int) (*node.Node, []childTask, error) {
	out := node.NewObject()

	for key, d := range a.Object.Tombstones {
		out.Object.Tombstones[key] = d
	}
	for key, d := range b.Object.Tombstones {
		if cur, ok := out.Object.Tombstones[key]; !ok || dot.Compare(d, cur) > 0 {
			out.Object.Tombstones[key] = d
		}
	}

	var tasks []childTask
	for _, key := range unionObjectKeys(a.Object, b.Object) {
		aEntry, aOK := a.Object.Entries[key]
		bEntry, bOK := b.Object.Entries[key]

		switch {
		case aOK && bOK:
			entryDot := aEntry.Dot
			if dot.Compare(bEntry.Dot, entryDot) > 0 {
				entryDot = bEntry.Dot
			}
			entry := &node.ObjEntry{Dot: entryDot}
			out.Object.Entries[key] = entry
			tasks = append(tasks, childTask{
				a: aEntry.Child, b: bEntry.Child, path: appendPath(path, key),
				set: func(n *node.Node) { entry.Child = n },
			})
		case aOK:
			cloned, err := node.Clone(aEntry.Child, budget)
			if err != nil {
				return nil, nil, err
			}
			out.Object.Entries[key] = &node.ObjEntry{Child: cloned, Dot: aEntry.Dot}
		case bOK:
			cloned, err := node.Clone(bEntry.Child, budget)
			if err != nil {
				return nil, nil, err
			}
			out.Object.Entries[key] = &node.ObjEntry{Child: cloned, Dot: bEntry.Dot}
		}
	}

	for key, entry := range out.Object.Entries {
		if tomb, ok := out.Object.Tombstones[key]; ok && dot.Compare(tomb, entry.Dot) >= 0 {
			delete(out.Object.Entries, key)
		}
	}

	return out, tasks, nil
}

func unionObjectKeys(a, b *node.Object) []string {
	seen := make(map[string]bool, len(a.Entries)+len(b.Entries))
	keys := make([]string, 0, len(a.Entries)+len(b.Entries))
	for k := range a.Entries {
		seen[k] = true
		keys = append(keys, k)
	}
	for k := range b.Entries {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}
