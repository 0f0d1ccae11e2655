package patch

import (
	"reflect"
	"testing"

	"github.com/luoyjx/jsoncrdt/dot"
	"github.com/luoyjx/jsoncrdt/intent"
	"github.com/luoyjx/jsoncrdt/materialize"
	"github.com/luoyjx/jsoncrdt/node"
)

func applyCompiled(t *testing.T, baseDoc any, ops []Operation, sem Semantics) any {
	t.Helper()
	clk, err := dot.NewClock("actor-1")
	if err != nil {
		t.Fatal(err)
	}
	root := node.FromJSON(baseDoc, clk.Next)
	intents, err := Compile(baseDoc, ops, sem, 1024)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	head, err := intent.Apply(root, root, intents, clk, intent.SelectorHead, 1024)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	out, err := materialize.Project(head, 1024)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestCompileObjectAddReplaceRemove(t *testing.T) {
	base := map[string]any{"a": 1.0}
	ops := []Operation{
		{Op: OpAdd, Path: "/b", Value: 2.0},
		{Op: OpReplace, Path: "/a", Value: 3.0},
		{Op: OpRemove, Path: "/b"},
	}
	intents, err := Compile(base, ops, SemanticsSequential, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if len(intents) != 3 {
		t.Fatalf("got %d intents", len(intents))
	}
	if intents[0].Kind != intent.KindObjSet || intents[0].Mode != intent.ModeAdd || intents[0].Key != "b" {
		t.Errorf("intent 0 = %+v", intents[0])
	}
	if intents[1].Kind != intent.KindObjSet || intents[1].Mode != intent.ModeReplace || intents[1].Key != "a" {
		t.Errorf("intent 1 = %+v", intents[1])
	}
	if intents[2].Kind != intent.KindObjRemove || intents[2].Key != "b" {
		t.Errorf("intent 2 = %+v", intents[2])
	}
}

func TestCompileReplaceMissingTargetFails(t *testing.T) {
	base := map[string]any{}
	_, err := Compile(base, []Operation{{Op: OpReplace, Path: "/missing", Value: 1.0}}, SemanticsSequential, 1024)
	ce, ok := err.(*CompileError)
	if !ok || ce.Reason != intent.ReasonMissingTarget {
		t.Errorf("err = %v, want MISSING_TARGET", err)
	}
}

func TestCompileRemoveMissingTargetFails(t *testing.T) {
	base := map[string]any{}
	_, err := Compile(base, []Operation{{Op: OpRemove, Path: "/missing"}}, SemanticsSequential, 1024)
	ce, ok := err.(*CompileError)
	if !ok || ce.Reason != intent.ReasonMissingTarget {
		t.Errorf("err = %v, want MISSING_TARGET", err)
	}
}

func TestCompileRootAddReplacesWholeDocument(t *testing.T) {
	base := map[string]any{"a": 1.0}
	intents, err := Compile(base, []Operation{{Op: OpAdd, Path: "", Value: map[string]any{"b": 2.0}}}, SemanticsSequential, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if intents[0].Key != intent.RootKey {
		t.Errorf("intent = %+v", intents[0])
	}
}

func TestCompileRootRemoveRejected(t *testing.T) {
	base := map[string]any{}
	_, err := Compile(base, []Operation{{Op: OpRemove, Path: ""}}, SemanticsSequential, 1024)
	if err == nil {
		t.Error("expected root remove to be rejected")
	}
}

func TestCompileUnsafeProtoKeyRejected(t *testing.T) {
	base := map[string]any{}
	_, err := Compile(base, []Operation{{Op: OpAdd, Path: "/__proto__", Value: 1.0}}, SemanticsSequential, 1024)
	if err == nil {
		t.Error("expected __proto__ key to be rejected")
	}
}

func TestCompileArrayAddAtIndexZeroAndEnd(t *testing.T) {
	base := map[string]any{"list": []any{"a"}}
	intents, err := Compile(base, []Operation{
		{Op: OpAdd, Path: "/list/0", Value: "front"},
		{Op: OpAdd, Path: "/list/-", Value: "back"},
	}, SemanticsSequential, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if intents[0].Kind != intent.KindArrInsert || intents[0].Index != 0 {
		t.Errorf("intent 0 = %+v", intents[0])
	}
	if intents[1].Kind != intent.KindArrInsert {
		t.Errorf("intent 1 = %+v", intents[1])
	}
}

func TestCompileArrayAddOutOfBounds(t *testing.T) {
	base := map[string]any{"list": []any{"a"}}
	_, err := Compile(base, []Operation{{Op: OpAdd, Path: "/list/5", Value: "x"}}, SemanticsSequential, 1024)
	ce, ok := err.(*CompileError)
	if !ok || ce.Reason != intent.ReasonOutOfBounds {
		t.Errorf("err = %v, want OUT_OF_BOUNDS", err)
	}
}

func TestCompileSequentialDoubleRemoveAdvancesIndex(t *testing.T) {
	base := map[string]any{"list": []any{1.0, 2.0, 3.0}}
	intents, err := Compile(base, []Operation{
		{Op: OpRemove, Path: "/list/0"},
		{Op: OpRemove, Path: "/list/0"},
	}, SemanticsSequential, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if intents[0].Index != 0 {
		t.Errorf("first remove index = %d, want 0", intents[0].Index)
	}
	// Under sequential semantics the second "/list/0" must resolve to the
	// base's original index 1 ("2"), since index 0 ("1") was already
	// removed by the prior op — this is the spec's worked example for
	// sequential-vs-base divergence.
	if intents[1].Index != 1 {
		t.Errorf("second remove index = %d, want 1 (original base position of the second element)", intents[1].Index)
	}
}

func TestCompileBaseSemanticsBothRemovesTargetSameIndex(t *testing.T) {
	base := map[string]any{"list": []any{1.0, 2.0, 3.0}}
	intents, err := Compile(base, []Operation{
		{Op: OpRemove, Path: "/list/0"},
		{Op: OpRemove, Path: "/list/0"},
	}, SemanticsBase, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if intents[0].Index != 0 || intents[1].Index != 0 {
		t.Errorf("intents = %+v, %+v; want both index 0 under base semantics", intents[0], intents[1])
	}
}

func TestCompileMoveIntoOwnDescendantRejected(t *testing.T) {
	base := map[string]any{"a": map[string]any{}}
	_, err := Compile(base, []Operation{{Op: OpMove, From: "/a", Path: "/a/b"}}, SemanticsSequential, 1024)
	ce, ok := err.(*CompileError)
	if !ok || ce.Reason != intent.ReasonInvalidMove {
		t.Errorf("err = %v, want INVALID_MOVE", err)
	}
}

func TestCompileMoveProducesRemoveAndAdd(t *testing.T) {
	base := map[string]any{"a": 1.0}
	intents, err := Compile(base, []Operation{{Op: OpMove, From: "/a", Path: "/b"}}, SemanticsSequential, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if len(intents) != 2 {
		t.Fatalf("got %d intents, want 2", len(intents))
	}
	if intents[0].Kind != intent.KindObjRemove || intents[0].Key != "a" {
		t.Errorf("intent 0 = %+v", intents[0])
	}
	if intents[1].Kind != intent.KindObjSet || intents[1].Key != "b" || !reflect.DeepEqual(intents[1].Value, 1.0) {
		t.Errorf("intent 1 = %+v", intents[1])
	}
}

func TestCompileCopyDeepCopiesValue(t *testing.T) {
	base := map[string]any{"a": map[string]any{"n": 1.0}}
	intents, err := Compile(base, []Operation{{Op: OpCopy, From: "/a", Path: "/b"}}, SemanticsSequential, 1024)
	if err != nil {
		t.Fatal(err)
	}
	srcMap := base["a"].(map[string]any)
	gotMap, ok := intents[0].Value.(map[string]any)
	if !ok {
		t.Fatalf("value = %+v", intents[0].Value)
	}
	gotMap["n"] = 99.0
	if srcMap["n"] != 1.0 {
		t.Error("copy must deep-copy its source value")
	}
}

func TestCompileTestResolvesFullPath(t *testing.T) {
	base := map[string]any{"a": map[string]any{"b": 5.0}}
	intents, err := Compile(base, []Operation{{Op: OpTest, Path: "/a/b", Value: 5.0}}, SemanticsSequential, 1024)
	if err != nil {
		t.Fatal(err)
	}
	want := []intent.PathStep{{Kind: intent.StepKey, Key: "a"}, {Kind: intent.StepKey, Key: "b"}}
	if !reflect.DeepEqual(intents[0].Path, want) {
		t.Errorf("path = %+v, want %+v", intents[0].Path, want)
	}
}

func TestEndToEndSequentialDoubleRemoveYieldsThirdElement(t *testing.T) {
	base := map[string]any{"list": []any{1.0, 2.0, 3.0}}
	ops := []Operation{
		{Op: OpRemove, Path: "/list/0"},
		{Op: OpRemove, Path: "/list/0"},
	}
	got := applyCompiled(t, base, ops, SemanticsSequential)
	want := map[string]any{"list": []any{3.0}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestEndToEndMoveThenArrayInsertUsesCorrectStreamPosition(t *testing.T) {
	// A move preceding an array insert in the same patch shifts the
	// intent-stream position of later ops relative to their op index
	// (move lowers to 2 intents from 1 op) — this exercises that the
	// compiler's RefOp bookkeeping tracks stream position, not op index.
	base := map[string]any{"a": 1.0, "list": []any{"x"}}
	ops := []Operation{
		{Op: OpMove, From: "/a", Path: "/b"},
		{Op: OpAdd, Path: "/list/0", Value: "front"},
		{Op: OpReplace, Path: "/list/0", Value: "replaced"},
	}
	got := applyCompiled(t, base, ops, SemanticsSequential)
	want := map[string]any{"b": 1.0, "list": []any{"replaced", "x"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestCompileTestMissingTargetFails(t *testing.T) {
	base := map[string]any{}
	_, err := Compile(base, []Operation{{Op: OpTest, Path: "/missing", Value: 1.0}}, SemanticsSequential, 1024)
	ce, ok := err.(*CompileError)
	if !ok || ce.Reason != intent.ReasonMissingTarget {
		t.Errorf("err = %v, want MISSING_TARGET", err)
	}
}
