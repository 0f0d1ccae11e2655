package patch

import (
	"strings"

	"github.com/luoyjx/jsoncrdt/intent"
	"github.com/luoyjx/jsoncrdt/pointer"
)

// Compile lowers a JSON Patch document into an intent stream ready for
// intent.Apply, validating it against base under the given semantics
// (spec §4.5). base must be a plain JSON value (as produced by
// materialize.Project), not a CRDT node tree.
func Compile(base any, ops []Operation, sem Semantics, maxDepth int) ([]intent.Intent, error) {
	c := &compiler{base: base, working: base, sem: sem, tr: newTrackers(), maxDepth: maxDepth}
	if sem == SemanticsSequential {
		c.working = deepCopyJSON(base)
	}

	intents := make([]intent.Intent, 0, len(ops))
	for i, op := range ops {
		its, err := c.lower(i, op)
		if err != nil {
			return nil, err
		}
		intents = append(intents, its...)
	}
	return intents, nil
}

type compiler struct {
	base     any
	working  any
	sem      Semantics
	tr       *trackers
	maxDepth int

	// streamPos is the index the next-produced intent will occupy in the
	// final flattened intent stream. It tracks Compile's output position,
	// NOT the patch op index: a `move` lowers to two intents from one op,
	// so the two diverge from that point on. arraySlot.refOp must record
	// streamPos — it is replayed by intent.Apply, whose `created` map is
	// keyed by position in the intents slice it actually receives.
	streamPos int
}

func (c *compiler) lower(i int, op Operation) ([]intent.Intent, error) {
	tokens, err := pointer.Parse(op.Path)
	if err != nil {
		return nil, fail(i, intent.ReasonInvalidPointer)
	}

	switch op.Op {
	case OpTest:
		it, err := c.lowerTest(i, tokens, op.Value)
		return c.one(it, err)
	case OpAdd:
		it, err := c.lowerAdd(i, tokens, op.Value, true)
		return c.one(it, err)
	case OpReplace:
		it, err := c.lowerAdd(i, tokens, op.Value, false)
		return c.one(it, err)
	case OpRemove:
		it, err := c.lowerRemove(i, tokens, op.Path)
		return c.one(it, err)
	case OpMove:
		return c.lowerMove(i, op)
	case OpCopy:
		it, err := c.lowerCopy(i, op)
		return c.one(it, err)
	default:
		return nil, fail(i, intent.ReasonInvalidPatch)
	}
}

// one wraps a single lowered intent into the slice lower's callers
// expect, propagating err unchanged, and advances streamPos past it.
func (c *compiler) one(it intent.Intent, err error) ([]intent.Intent, error) {
	if err != nil {
		return nil, err
	}
	c.streamPos++
	return []intent.Intent{it}, nil
}

func (c *compiler) lowerTest(i int, tokens []string, value any) (intent.Intent, error) {
	steps, err := resolveFull(c.working, tokens, i, intent.ReasonMissingTarget)
	if err != nil {
		return intent.Intent{}, err
	}
	return intent.Intent{Kind: intent.KindTest, Path: steps, Value: value}, nil
}

// lowerAdd handles both `add` (isAdd=true, creates or inserts) and
// `replace` (isAdd=false, requires an existing target) since both lower
// to the same intent shapes differing only in ObjSet's Mode and in
// whether a missing target is an error.
func (c *compiler) lowerAdd(i int, tokens []string, value any, isAdd bool) (intent.Intent, error) {
	if err := checkDepth(value, c.maxDepth, i); err != nil {
		return intent.Intent{}, err
	}

	if len(tokens) == 0 {
		// root replace and root add both route through the root-sentinel
		// ObjSet; there is no existing-key check to make at the root.
		v := deepCopyJSON(value)
		if c.sem == SemanticsSequential {
			c.working = deepCopyJSON(v)
		}
		return intent.Intent{Kind: intent.KindObjSet, Mode: intent.ModeReplace, Key: intent.RootKey, Value: v}, nil
	}

	r, err := resolveContainer(c.working, tokens, i)
	if err != nil {
		return intent.Intent{}, err
	}

	switch cont := r.container.(type) {
	case map[string]any:
		if r.lastToken == protoKey {
			return intent.Intent{}, fail(i, intent.ReasonInvalidPatch)
		}
		mode := intent.ModeAdd
		if !isAdd {
			mode = intent.ModeReplace
			if _, ok := cont[r.lastToken]; !ok {
				return intent.Intent{}, fail(i, intent.ReasonMissingTarget)
			}
		}
		v := deepCopyJSON(value)
		if c.sem == SemanticsSequential {
			cont[r.lastToken] = deepCopyJSON(v)
		}
		return intent.Intent{Kind: intent.KindObjSet, Mode: mode, Path: r.steps, Key: r.lastToken, Value: v}, nil

	case []any:
		return c.lowerArraySlotOp(i, tokens, value, isAdd)

	default:
		return intent.Intent{}, fail(i, intent.ReasonInvalidPointer)
	}
}

func (c *compiler) lowerRemove(i int, tokens []string, rawPath string) (intent.Intent, error) {
	if len(tokens) == 0 {
		return intent.Intent{}, fail(i, intent.ReasonInvalidPatch)
	}
	r, err := resolveContainer(c.working, tokens, i)
	if err != nil {
		return intent.Intent{}, err
	}
	switch cont := r.container.(type) {
	case map[string]any:
		if _, ok := cont[r.lastToken]; !ok {
			return intent.Intent{}, fail(i, intent.ReasonMissingTarget)
		}
		if c.sem == SemanticsSequential {
			delete(cont, r.lastToken)
		}
		return intent.Intent{Kind: intent.KindObjRemove, Path: r.steps, Key: r.lastToken}, nil
	case []any:
		return c.lowerArrayDelete(i, tokens)
	default:
		return intent.Intent{}, fail(i, intent.ReasonInvalidPointer)
	}
}

// lowerArraySlotOp handles `add` at an array index/`-` (ArrInsert) and
// `replace` at an array index (ArrReplace). tokens' final two segments
// name the object key holding the array and the index within it;
// resolveSlotPath rejects any other shape with INVALID_TARGET.
func (c *compiler) lowerArraySlotOp(i int, tokens []string, value any, isAdd bool) (intent.Intent, error) {
	path, key, err := c.resolveSlotPath(tokens, i)
	if err != nil {
		return intent.Intent{}, err
	}
	indexToken := tokens[len(tokens)-1]
	arrPath := arrayPathKey(tokens[:len(tokens)-1])
	var slots []arraySlot
	if c.sem == SemanticsBase {
		slots = freshBaseSlots(c.base, tokens[:len(tokens)-1])
	} else {
		slots = c.tr.get(arrPath, c.base, tokens[:len(tokens)-1])
	}

	v := deepCopyJSON(value)

	if isAdd {
		idx, ok := pointer.ParseArrayIndex(indexToken)
		if !ok {
			return intent.Intent{}, fail(i, intent.ReasonInvalidPointer)
		}
		pos := idx.Index
		if idx.End {
			pos = len(slots)
		}
		if pos < 0 || pos > len(slots) {
			return intent.Intent{}, fail(i, intent.ReasonOutOfBounds)
		}

		it := intent.Intent{Kind: intent.KindArrInsert, Path: path, Key: key, Value: v}
		if pos == 0 {
			it.Index = 0
		} else {
			pred := slots[pos-1]
			if pred.isBase {
				it.Index = pred.baseIndex + 1
			} else {
				ref := pred.refOp
				it.RefOp = &ref
			}
		}

		if c.sem != SemanticsBase {
			newSlots := make([]arraySlot, 0, len(slots)+1)
			newSlots = append(newSlots, slots[:pos]...)
			newSlots = append(newSlots, arraySlot{refOp: c.streamPos})
			newSlots = append(newSlots, slots[pos:]...)
			c.tr.set(arrPath, newSlots)
		}

		if c.sem == SemanticsSequential {
			c.mirrorArrayInsert(tokens[:len(tokens)-1], pos, v)
		}
		return it, nil
	}

	// replace
	idx, ok := pointer.ParseArrayIndex(indexToken)
	if !ok || idx.End {
		return intent.Intent{}, fail(i, intent.ReasonInvalidPointer)
	}
	if idx.Index < 0 || idx.Index >= len(slots) {
		return intent.Intent{}, fail(i, intent.ReasonOutOfBounds)
	}
	target := slots[idx.Index]
	it := intent.Intent{Kind: intent.KindArrReplace, Path: path, Key: key, Value: v}
	if target.isBase {
		it.Index = target.baseIndex
	} else {
		ref := target.refOp
		it.RefOp = &ref
	}
	if c.sem != SemanticsBase {
		slots[idx.Index] = arraySlot{refOp: c.streamPos}
		c.tr.set(arrPath, slots)
	}

	if c.sem == SemanticsSequential {
		c.mirrorArrayReplace(tokens[:len(tokens)-1], idx.Index, v)
	}
	return it, nil
}

func (c *compiler) lowerArrayDelete(i int, tokens []string) (intent.Intent, error) {
	path, key, err := c.resolveSlotPath(tokens, i)
	if err != nil {
		return intent.Intent{}, err
	}
	indexToken := tokens[len(tokens)-1]
	arrPath := arrayPathKey(tokens[:len(tokens)-1])
	var slots []arraySlot
	if c.sem == SemanticsBase {
		slots = freshBaseSlots(c.base, tokens[:len(tokens)-1])
	} else {
		slots = c.tr.get(arrPath, c.base, tokens[:len(tokens)-1])
	}

	idx, ok := pointer.ParseArrayIndex(indexToken)
	if !ok || idx.End {
		return intent.Intent{}, fail(i, intent.ReasonInvalidPointer)
	}
	if idx.Index < 0 || idx.Index >= len(slots) {
		return intent.Intent{}, fail(i, intent.ReasonMissingTarget)
	}
	target := slots[idx.Index]
	it := intent.Intent{Kind: intent.KindArrDelete, Path: path, Key: key}
	if target.isBase {
		it.Index = target.baseIndex
	} else {
		ref := target.refOp
		it.RefOp = &ref
	}

	if c.sem != SemanticsBase {
		newSlots := append(append([]arraySlot{}, slots[:idx.Index]...), slots[idx.Index+1:]...)
		c.tr.set(arrPath, newSlots)
	}

	if c.sem == SemanticsSequential {
		c.mirrorArrayDelete(tokens[:len(tokens)-1], idx.Index)
	}
	return it, nil
}

// resolveSlotPath walks tokens[:len-2] plus the object key at
// tokens[len-2] to produce the PathSteps + key an ArrInsert/ArrReplace/
// ArrDelete intent needs to locate the object slot holding the array
// that tokens[len-1] indexes into.
func (c *compiler) resolveSlotPath(tokens []string, opIndex int) ([]intent.PathStep, string, error) {
	if len(tokens) < 2 {
		return nil, "", fail(opIndex, intent.ReasonInvalidTarget)
	}
	combined := append(append([]string{}, tokens[:len(tokens)-2]...), tokens[len(tokens)-2])
	r, err := resolveContainer(c.working, combined, opIndex)
	if err != nil {
		return nil, "", err
	}
	if _, ok := r.container.(map[string]any); !ok {
		return nil, "", fail(opIndex, intent.ReasonInvalidTarget)
	}
	return r.steps, r.lastToken, nil
}

// arraySlotParent walks parentTokens (the path to the array itself,
// i.e. tokens[:len(pointerTokens)-1] of the originating op) and returns
// the object one level up plus the key under which the array lives.
func (c *compiler) arraySlotParent(parentTokens []string) (map[string]any, string, bool) {
	r, err := resolveContainer(c.working, parentTokens, 0)
	if err != nil {
		return nil, "", false
	}
	parent, ok := r.container.(map[string]any)
	if !ok {
		return nil, "", false
	}
	return parent, r.lastToken, true
}

func (c *compiler) mirrorArrayInsert(parentTokens []string, pos int, value any) {
	parent, key, ok := c.arraySlotParent(parentTokens)
	if !ok {
		return
	}
	arr, _ := parent[key].([]any)
	out := make([]any, 0, len(arr)+1)
	out = append(out, arr[:pos]...)
	out = append(out, value)
	out = append(out, arr[pos:]...)
	parent[key] = out
}

func (c *compiler) mirrorArrayReplace(parentTokens []string, idx int, value any) {
	parent, key, ok := c.arraySlotParent(parentTokens)
	if !ok {
		return
	}
	arr, _ := parent[key].([]any)
	arr[idx] = value
	parent[key] = arr
}

func (c *compiler) mirrorArrayDelete(parentTokens []string, idx int) {
	parent, key, ok := c.arraySlotParent(parentTokens)
	if !ok {
		return
	}
	arr, _ := parent[key].([]any)
	parent[key] = append(append([]any{}, arr[:idx]...), arr[idx+1:]...)
}

// lowerMove lowers to a remove intent against the source followed by an
// add intent against the destination; both must be returned and applied
// in order, since the applier has no notion of a single atomic move.
func (c *compiler) lowerMove(i int, op Operation) ([]intent.Intent, error) {
	if op.From == op.Path || strings.HasPrefix(op.Path, op.From+"/") {
		return nil, fail(i, intent.ReasonInvalidMove)
	}
	fromTokens, err := pointer.Parse(op.From)
	if err != nil {
		return nil, fail(i, intent.ReasonInvalidPointer)
	}
	value, ok := getJSON(c.working, fromTokens)
	if !ok {
		return nil, fail(i, intent.ReasonMissingTarget)
	}
	value = deepCopyJSON(value)

	removeIt, err := c.lowerRemove(i, fromTokens, op.From)
	if err != nil {
		return nil, err
	}
	c.streamPos++
	addIt, err := c.lowerAdd(i, mustParse(op.Path), value, true)
	if err != nil {
		return nil, err
	}
	c.streamPos++
	return []intent.Intent{removeIt, addIt}, nil
}

func (c *compiler) lowerCopy(i int, op Operation) (intent.Intent, error) {
	fromTokens, err := pointer.Parse(op.From)
	if err != nil {
		return intent.Intent{}, fail(i, intent.ReasonInvalidPointer)
	}
	value, ok := getJSON(c.working, fromTokens)
	if !ok {
		return intent.Intent{}, fail(i, intent.ReasonMissingTarget)
	}
	return c.lowerAdd(i, mustParse(op.Path), deepCopyJSON(value), true)
}

func mustParse(p string) []string {
	tokens, _ := pointer.Parse(p)
	return tokens
}

// checkDepth bounds a JSON literal's nesting so a patch cannot smuggle
// an unbounded value past compile time into the CRDT tree (spec §5).
func checkDepth(v any, maxDepth int, opIndex int) error {
	type frame struct {
		v     any
		depth int
	}
	stack := []frame{{v, 0}}
	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if fr.depth > maxDepth {
			return fail(opIndex, intent.ReasonMaxDepthExceeded)
		}
		switch t := fr.v.(type) {
		case map[string]any:
			for _, vv := range t {
				stack = append(stack, frame{vv, fr.depth + 1})
			}
		case []any:
			for _, vv := range t {
				stack = append(stack, frame{vv, fr.depth + 1})
			}
		}
	}
	return nil
}
