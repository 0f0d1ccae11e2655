// Package node implements the three CRDT node shapes of the document
// model — register, object, and sequence — and their local, single-site
// mutation rules (spec §3, §4.2). Every node access elsewhere in this
// module switches exhaustively on Kind; a missing arm is a latent bug
// (spec §9).
package node

import "github.com/luoyjx/jsoncrdt/dot"

// Kind discriminates the three node shapes.
type Kind int

const (
	// KindRegister holds an immutable-snapshot JSON value tagged with a
	// single dot, resolved last-writer-wins by dot order.
	KindRegister Kind = iota
	// KindObject holds a key->entry map plus a per-key tombstone map.
	KindObject
	// KindSequence holds an RGA causal tree of elements.
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindRegister:
		return "register"
	case KindObject:
		return "object"
	case KindSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// HeadID is the sentinel predecessor id denoting "the start of the
// sequence" (spec §3, §4.3).
const HeadID = "HEAD"

// Node is a tagged union over the three CRDT shapes. Exactly one of
// Register, Object, Sequence is non-nil, matching Kind.
type Node struct {
	Kind     Kind
	Register *Register
	Object   *Object
	Sequence *Sequence
}

// Register is a single LWW value.
type Register struct {
	Value any
	Dot   dot.Dot
}

// ObjEntry is a live key's child node and the dot that wrote it.
type ObjEntry struct {
	Child *Node
	Dot   dot.Dot
}

// Object is a key -> entry map with a parallel per-key tombstone map.
type Object struct {
	Entries    map[string]*ObjEntry
	Tombstones map[string]dot.Dot
}

// Element is one node in the sequence's causal tree.
type Element struct {
	ID        string
	Prev      string
	InsDot    dot.Dot
	Child     *Node
	Tombstone bool
}

// Sequence is a set of elements keyed by element id, plus a cache of the
// last-computed linearization. The cache is invalidated (version bumped)
// on any mutation; see Invalidate.
type Sequence struct {
	Elements map[string]*Element
	version  uint64
	cache    []string // cached linearized element ids
	cacheVer uint64
}

// NewRegister builds a register node holding value tagged with d.
func NewRegister(value any, d dot.Dot) *Node {
	return &Node{Kind: KindRegister, Register: &Register{Value: value, Dot: d}}
}

// NewObject builds an empty object node.
func NewObject() *Node {
	return &Node{Kind: KindObject, Object: &Object{
		Entries:    make(map[string]*ObjEntry),
		Tombstones: make(map[string]dot.Dot),
	}}
}

// NewSequence builds an empty sequence node.
func NewSequence() *Node {
	return &Node{Kind: KindSequence, Sequence: &Sequence{
		Elements: make(map[string]*Element),
	}}
}

// Version returns the sequence's mutation counter, used by rga to key
// linearization caches without relying on object identity (spec §5,
// shared-resource policy).
func (s *Sequence) Version() uint64 {
	return s.version
}

// Invalidate bumps the sequence's mutation counter, invalidating any
// cached linearization. Callers outside this package (the rga package's
// insert/delete mutators) must call this after every structural change.
func (s *Sequence) Invalidate() {
	s.version++
}

// CachedLinearization returns the cached element-id order if it is still
// current, and whether it was valid.
func (s *Sequence) CachedLinearization() ([]string, bool) {
	if s.cache == nil || s.cacheVer != s.version {
		return nil, false
	}
	return s.cache, true
}

// SetCachedLinearization stores order as the cache for the sequence's
// current version.
func (s *Sequence) SetCachedLinearization(order []string) {
	s.cache = order
	s.cacheVer = s.version
}
