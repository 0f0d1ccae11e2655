package diff

import (
	"reflect"
	"testing"

	"github.com/luoyjx/jsoncrdt/dot"
	"github.com/luoyjx/jsoncrdt/intent"
	"github.com/luoyjx/jsoncrdt/materialize"
	"github.com/luoyjx/jsoncrdt/node"
	"github.com/luoyjx/jsoncrdt/patch"
)

const maxDepth = 1024

// applyViaPatch compiles and applies ops against base through the full
// CRDT pipeline, standing in for a plain RFC 6902 apply: this module has
// no separate non-CRDT applier, and the CRDT apply path is already
// proven equivalent to RFC 6902 semantics for a single-site, in-order
// patch by the patch package's own tests.
func applyViaPatch(t *testing.T, base any, ops []patch.Operation) any {
	t.Helper()
	clk, err := dot.NewClock("actor-1")
	if err != nil {
		t.Fatal(err)
	}
	root := node.FromJSON(base, clk.Next)
	intents, err := patch.Compile(base, ops, patch.SemanticsSequential, maxDepth)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	head, err := intent.Apply(root, root, intents, clk, intent.SelectorHead, maxDepth)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	out, err := materialize.Project(head, maxDepth)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func assertRoundTrip(t *testing.T, x, y any) {
	t.Helper()
	ops, err := Diff(x, y, 0, maxDepth)
	if err != nil {
		t.Fatal(err)
	}
	got := applyViaPatch(t, x, ops)
	if !reflect.DeepEqual(got, y) {
		t.Errorf("round trip mismatch: diff(%+v,%+v) = %+v, applying gives %+v, want %+v", x, y, ops, got, y)
	}
}

func TestDiffEqualValuesProducesNoOps(t *testing.T) {
	ops, err := Diff(map[string]any{"a": 1.0}, map[string]any{"a": 1.0}, 0, maxDepth)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 0 {
		t.Errorf("ops = %+v, want none", ops)
	}
}

func TestDiffObjectKeyAddedRemovedChanged(t *testing.T) {
	x := map[string]any{"a": 1.0, "b": 2.0, "same": "x"}
	y := map[string]any{"b": 3.0, "c": 4.0, "same": "x"}
	assertRoundTrip(t, x, y)
}

func TestDiffNestedObject(t *testing.T) {
	x := map[string]any{"outer": map[string]any{"inner": 1.0, "keep": true}}
	y := map[string]any{"outer": map[string]any{"inner": 2.0, "keep": true}}
	assertRoundTrip(t, x, y)
}

func TestDiffArrayAppendAndRemove(t *testing.T) {
	x := map[string]any{"list": []any{1.0, 2.0, 3.0}}
	y := map[string]any{"list": []any{1.0, 3.0, 4.0}}
	assertRoundTrip(t, x, y)
}

func TestDiffArrayReorder(t *testing.T) {
	x := map[string]any{"list": []any{"a", "b", "c"}}
	y := map[string]any{"list": []any{"c", "b", "a"}}
	assertRoundTrip(t, x, y)
}

func TestDiffScalarReplace(t *testing.T) {
	x := map[string]any{"a": 1.0}
	y := map[string]any{"a": "now a string"}
	assertRoundTrip(t, x, y)
}

func TestDiffRootReplace(t *testing.T) {
	ops, err := Diff(map[string]any{"a": 1.0}, []any{1.0, 2.0}, 0, maxDepth)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 1 || ops[0].Op != patch.OpReplace || ops[0].Path != "" {
		t.Fatalf("ops = %+v, want a single root replace", ops)
	}
	got := applyViaPatch(t, map[string]any{"a": 1.0}, ops)
	want := []any{1.0, 2.0}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

// TestDiffArrayCellCapFallsBackToReplace exercises spec §5's resource
// limit: a cellCap smaller than n*m makes the array diff bail out to a
// single atomic replace instead of building the full LCS table.
func TestDiffArrayCellCapFallsBackToReplace(t *testing.T) {
	x := []any{1.0, 2.0, 3.0, 4.0}
	y := []any{4.0, 3.0, 2.0, 1.0}

	ops, err := diffArray(nil, x, y, 4) // n*m = 16 > cap of 4
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 1 || ops[0].Op != patch.OpReplace {
		t.Fatalf("ops = %+v, want a single replace", ops)
	}
	if !reflect.DeepEqual(ops[0].Value, y) {
		t.Errorf("replace value = %+v, want %+v", ops[0].Value, y)
	}
}

func TestDiffMaxDepthExceeded(t *testing.T) {
	x := map[string]any{"a": map[string]any{"b": map[string]any{"c": 1.0}}}
	y := map[string]any{"a": map[string]any{"b": map[string]any{"c": 2.0}}}

	_, err := Diff(x, y, 0, 1)
	if err == nil {
		t.Fatal("expected max-depth error")
	}
	if _, ok := err.(*Error); !ok {
		t.Errorf("err = %T, want *diff.Error", err)
	}
}
