// Package patch compiles RFC 6902 JSON Patch documents into the
// internal intent operations the CRDT applier understands (spec §4.5).
package patch

import (
	"fmt"

	"github.com/luoyjx/jsoncrdt/intent"
)

// Op is a JSON Patch operation name.
type Op string

const (
	OpTest    Op = "test"
	OpAdd     Op = "add"
	OpRemove  Op = "remove"
	OpReplace Op = "replace"
	OpMove    Op = "move"
	OpCopy    Op = "copy"
)

// Operation is one RFC 6902 patch entry.
type Operation struct {
	Op    Op     `json:"op"`
	Path  string `json:"path"`
	From  string `json:"from,omitempty"`
	Value any    `json:"value,omitempty"`
}

// Semantics selects how array indices and `-` tokens in later ops are
// resolved relative to earlier ops in the same patch (spec §4.5).
type Semantics int

const (
	// SemanticsSequential resolves every op against the JSON state
	// produced by all prior ops (strict RFC 6902 behavior). Default.
	SemanticsSequential Semantics = iota
	// SemanticsBase resolves every op against the immutable starting
	// snapshot, suitable for applying a patch as a diff against a fixed
	// anchor.
	SemanticsBase
)

// CompileError reports why an operation in a patch could not be
// lowered to an intent.
type CompileError struct {
	Reason intent.Reason
	Op     int
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("patch: op %d: %s", e.Op, e.Reason)
}

func fail(opIndex int, reason intent.Reason) error {
	return &CompileError{Reason: reason, Op: opIndex}
}

const protoKey = "__proto__"
