package patch

import (
	"github.com/luoyjx/jsoncrdt/intent"
	"github.com/luoyjx/jsoncrdt/pointer"
)

// resolved is the outcome of walking a pointer's container tokens
// (every token but the last) against a plain JSON value: the PathSteps
// an intent can use to find the same location in the CRDT tree, the
// container value found at that point (map[string]any or []any), and
// the final, not-yet-interpreted token.
type resolved struct {
	steps     []intent.PathStep
	container any
	lastToken string
}

// resolveContainer walks tokens[:len-1] of a parsed pointer against
// root, recording one PathStep per hop. It fails with INVALID_POINTER
// if a step traverses a scalar, or MISSING_PARENT if an intermediate
// object key or array index does not exist.
func resolveContainer(root any, tokens []string, opIndex int) (resolved, error) {
	if len(tokens) == 0 {
		return resolved{container: root}, nil
	}
	cur := root
	steps := make([]intent.PathStep, 0, len(tokens)-1)
	for _, tok := range tokens[:len(tokens)-1] {
		switch v := cur.(type) {
		case map[string]any:
			child, ok := v[tok]
			if !ok {
				return resolved{}, fail(opIndex, intent.ReasonMissingParent)
			}
			steps = append(steps, intent.PathStep{Kind: intent.StepKey, Key: tok})
			cur = child
		case []any:
			idx, ok := pointer.ParseArrayIndex(tok)
			if !ok || idx.End || idx.Index < 0 || idx.Index >= len(v) {
				return resolved{}, fail(opIndex, intent.ReasonMissingParent)
			}
			steps = append(steps, intent.PathStep{Kind: intent.StepIndex, Index: idx.Index})
			cur = v[idx.Index]
		default:
			return resolved{}, fail(opIndex, intent.ReasonInvalidPointer)
		}
	}
	return resolved{steps: steps, container: cur, lastToken: tokens[len(tokens)-1]}, nil
}

// resolveFull walks every token of a parsed pointer against root,
// producing one PathStep per hop (used by `test`, whose intent needs
// the full path to the compared value, not just its parent).
// missingReason is returned (instead of INVALID_POINTER) when an
// intermediate or final key/index does not exist, since `test`'s
// contract distinguishes "missing target" from "malformed pointer".
func resolveFull(root any, tokens []string, opIndex int, missingReason intent.Reason) ([]intent.PathStep, error) {
	cur := root
	steps := make([]intent.PathStep, 0, len(tokens))
	for _, tok := range tokens {
		switch v := cur.(type) {
		case map[string]any:
			child, ok := v[tok]
			if !ok {
				return nil, fail(opIndex, missingReason)
			}
			steps = append(steps, intent.PathStep{Kind: intent.StepKey, Key: tok})
			cur = child
		case []any:
			idx, ok := pointer.ParseArrayIndex(tok)
			if !ok {
				return nil, fail(opIndex, intent.ReasonInvalidPointer)
			}
			if idx.End || idx.Index < 0 || idx.Index >= len(v) {
				return nil, fail(opIndex, missingReason)
			}
			steps = append(steps, intent.PathStep{Kind: intent.StepIndex, Index: idx.Index})
			cur = v[idx.Index]
		default:
			return nil, fail(opIndex, intent.ReasonInvalidPointer)
		}
	}
	return steps, nil
}

// getJSON reads the plain JSON value at a parsed pointer path, used for
// resolving `test` expected-value literals is unnecessary (those come
// from the op itself) and for reading `from` values for move/copy.
func getJSON(root any, tokens []string) (any, bool) {
	cur := root
	for _, tok := range tokens {
		switch v := cur.(type) {
		case map[string]any:
			child, ok := v[tok]
			if !ok {
				return nil, false
			}
			cur = child
		case []any:
			idx, ok := pointer.ParseArrayIndex(tok)
			if !ok || idx.End || idx.Index < 0 || idx.Index >= len(v) {
				return nil, false
			}
			cur = v[idx.Index]
		default:
			return nil, false
		}
	}
	return cur, true
}

// deepCopyJSON copies a plain JSON value so a `copy`/`move` source
// value does not alias the document it was read from.
func deepCopyJSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = deepCopyJSON(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = deepCopyJSON(vv)
		}
		return out
	default:
		return v
	}
}
