package node

import "github.com/luoyjx/jsoncrdt/dot"

// ObjectSet implements spec §4.2's ObjSet rule: if a tombstone exists
// with tombstoneDot >= d, the set is ignored (delete-wins at that dot).
// Otherwise, if no live entry exists or the existing entry's dot is <= d,
// the entry is overwritten. The per-key tombstone, if any, is left
// untouched either way. Returns whether the object's live state changed.
func ObjectSet(o *Object, key string, child *Node, d dot.Dot) bool {
	if tomb, ok := o.Tombstones[key]; ok && dot.Compare(tomb, d) >= 0 {
		return false
	}
	existing, ok := o.Entries[key]
	if ok && dot.Compare(existing.Dot, d) > 0 {
		return false
	}
	o.Entries[key] = &ObjEntry{Child: child, Dot: d}
	return true
}

// ObjectRemove implements spec §4.2's ObjRemove rule: records
// tombstone[key] = d if no tombstone exists yet or the existing
// tombstone is strictly older than d, then deletes the live entry (if
// any). Returns whether anything changed.
func ObjectRemove(o *Object, key string, d dot.Dot) bool {
	changed := false
	if tomb, ok := o.Tombstones[key]; !ok || dot.Compare(tomb, d) < 0 {
		o.Tombstones[key] = d
		changed = true
	}
	if _, ok := o.Entries[key]; ok {
		delete(o.Entries, key)
		changed = true
	}
	return changed
}

// Get returns the live child and dot at key, if any.
func (o *Object) Get(key string) (*ObjEntry, bool) {
	e, ok := o.Entries[key]
	return e, ok
}

// Has reports whether key currently has a live entry.
func (o *Object) Has(key string) bool {
	_, ok := o.Entries[key]
	return ok
}

// Keys returns the live keys in the object's underlying map iteration
// order (not semantically significant, per spec §4.4).
func (o *Object) Keys() []string {
	keys := make([]string, 0, len(o.Entries))
	for k := range o.Entries {
		keys = append(keys, k)
	}
	return keys
}
