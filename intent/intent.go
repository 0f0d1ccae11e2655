// Package intent defines the internal CRDT-flavored operations that
// the JSON Patch compiler lowers onto, and the pipeline that applies an
// intent stream against a document's head tree (spec §4.6).
package intent

import (
	"fmt"

	"github.com/luoyjx/jsoncrdt/dot"
	"github.com/luoyjx/jsoncrdt/node"
)

// Kind discriminates the six intent op shapes.
type Kind int

const (
	KindTest Kind = iota
	KindObjSet
	KindObjRemove
	KindArrInsert
	KindArrReplace
	KindArrDelete
)

func (k Kind) String() string {
	switch k {
	case KindTest:
		return "test"
	case KindObjSet:
		return "objSet"
	case KindObjRemove:
		return "objRemove"
	case KindArrInsert:
		return "arrInsert"
	case KindArrReplace:
		return "arrReplace"
	case KindArrDelete:
		return "arrDelete"
	default:
		return "unknown"
	}
}

// Mode distinguishes ObjSet's add-vs-replace contract (§4.6: replace on
// an absent key fails; add does not).
type Mode int

const (
	ModeAdd Mode = iota
	ModeReplace
)

// RootKey is the sentinel object key used by ObjSet when a patch add or
// replace targets the whole document ("" pointer), so the root
// node can be replaced wholesale through the same codepath as any other
// key (spec §4.5, root add/replace row).
const RootKey = "\x00root"

// StepKind discriminates a single container-path step.
type StepKind int

const (
	StepKey StepKind = iota
	StepIndex
)

// PathStep is one hop of a resolved container path: either an object
// key or a resolved sequence index.
type PathStep struct {
	Kind  StepKind
	Key   string
	Index int
}

// Intent is one lowered operation. Exactly the fields relevant to Kind
// are populated; Path always addresses the *parent container* of the
// operation's target (the object holding Key, or the sequence Index
// applies to).
type Intent struct {
	Kind  Kind
	Path  []PathStep
	Key   string
	Mode  Mode
	Value any
	Index int
	End   bool

	// RefOp, when non-nil, overrides Index/End for ArrInsert (predecessor)
	// and ArrReplace/ArrDelete (target): instead of resolving against the
	// base document's sequence, it names the intent-stream position
	// (0-based) of the ArrInsert/ArrReplace that produced the element to
	// act on. The patch compiler sets this for sequential semantics when
	// an op targets an element that a prior op in the same patch created,
	// since such an element has no base-sequence position to resolve.
	RefOp *int
}

// Selector picks which tree Test reads its comparison value from.
type Selector int

const (
	SelectorHead Selector = iota
	SelectorBase
)

// ApplyError is returned by Apply, identifying which intent in the
// stream failed and why.
type ApplyError struct {
	Reason Reason
	Op     int
	Path   []PathStep
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("intent: op %d: %s at %v", e.Op, e.Reason, e.Path)
}

// MintFunc mints a fresh dot for a mutation, possibly fast-forwarding
// clock state first (the ArrInsert rule of spec §4.3 needs a different
// minting strategy than every other op, which is why Apply takes the
// clock directly rather than a plain func() dot.Dot).
type MintFunc func() dot.Dot

func fail(op int, path []PathStep, reason Reason) error {
	return &ApplyError{Reason: reason, Op: op, Path: path}
}
