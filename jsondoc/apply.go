package jsondoc

import (
	"github.com/luoyjx/jsoncrdt/intent"
	"github.com/luoyjx/jsoncrdt/materialize"
	"github.com/luoyjx/jsoncrdt/node"
	"github.com/luoyjx/jsoncrdt/patch"
)

// ApplyOptions controls how a patch is compiled and applied. Semantics
// selects sequential vs. base resolution (patch.Semantics). Base, when
// non-nil, is the state to compile index/test resolution against
// instead of the target state itself — the "compile against a
// different anchor" half of spec §9's open question on the `base`
// option: the public API always takes a *State there, never a bare
// document, since any caller that has an anchor to diff against
// already holds it as a State of its own.
type ApplyOptions struct {
	Semantics patch.Semantics
	Base      *State
}

func (o ApplyOptions) baseState(s *State) *State {
	if o.Base != nil {
		return o.Base
	}
	return s
}

// ValidatePatch dry-runs ops against s without mutating it or minting
// any dots: it compiles the patch against the resolved base's current
// materialized projection and discards the resulting intents,
// surfacing only whether compilation would have succeeded.
func ValidatePatch(s *State, ops []patch.Operation, opts ApplyOptions, maxDepth int) error {
	base, err := materialize.Project(opts.baseState(s).Doc, maxDepth)
	if err != nil {
		return err
	}
	_, err = patch.Compile(base, ops, opts.Semantics, maxDepth)
	return err
}

// ApplyImmutable compiles ops against the resolved base and applies
// them to a clone of s's document and clock, leaving s itself untouched
// regardless of outcome (spec §5, "immutable apply variants clone the
// document and clock before mutating; on failure the caller's state is
// unchanged").
func ApplyImmutable(s *State, ops []patch.Operation, opts ApplyOptions, maxDepth int) (*State, error) {
	anchor := opts.baseState(s).Doc
	base, err := materialize.Project(anchor, maxDepth)
	if err != nil {
		return nil, err
	}
	intents, err := patch.Compile(base, ops, opts.Semantics, maxDepth)
	if err != nil {
		return nil, err
	}

	docClone, err := node.Clone(s.Doc, maxDepth)
	if err != nil {
		return nil, err
	}
	clkClone := s.Clock.Clone()

	newDoc, err := intent.Apply(anchor, docClone, intents, clkClone, intent.SelectorHead, maxDepth)
	if err != nil {
		return nil, err
	}
	return &State{Doc: newDoc, Clock: clkClone}, nil
}

// ApplyInPlace compiles ops against the resolved base and applies them
// to s. With atomic set, it behaves like ApplyImmutable internally and
// only swaps the result into s on success — s is unchanged on any
// failure. Without atomic, it mutates s.Doc/s.Clock as it goes and
// halts on the first failing intent with whatever mutations already
// committed left visible (spec §5's non-atomic in-place mode).
func ApplyInPlace(s *State, ops []patch.Operation, opts ApplyOptions, maxDepth int, atomic bool) error {
	if atomic {
		next, err := ApplyImmutable(s, ops, opts, maxDepth)
		if err != nil {
			return err
		}
		s.Doc, s.Clock = next.Doc, next.Clock
		return nil
	}

	anchor := opts.baseState(s).Doc
	base, err := materialize.Project(anchor, maxDepth)
	if err != nil {
		return err
	}
	intents, err := patch.Compile(base, ops, opts.Semantics, maxDepth)
	if err != nil {
		return err
	}

	newDoc, applyErr := intent.Apply(anchor, s.Doc, intents, s.Clock, intent.SelectorHead, maxDepth)
	s.Doc = newDoc
	return applyErr
}

// MustApplyImmutable is ApplyImmutable's throwing counterpart (spec
// §6's "Apply ... throwing and non-throwing" axis) — it panics instead
// of returning an error.
func MustApplyImmutable(s *State, ops []patch.Operation, opts ApplyOptions, maxDepth int) *State {
	next, err := ApplyImmutable(s, ops, opts, maxDepth)
	if err != nil {
		panic(err)
	}
	return next
}

// MustApplyInPlace is ApplyInPlace's throwing counterpart.
func MustApplyInPlace(s *State, ops []patch.Operation, opts ApplyOptions, maxDepth int, atomic bool) {
	if err := ApplyInPlace(s, ops, opts, maxDepth, atomic); err != nil {
		panic(err)
	}
}
