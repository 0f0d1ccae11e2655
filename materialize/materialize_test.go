package materialize

import (
	"reflect"
	"testing"

	"github.com/luoyjx/jsoncrdt/dot"
	"github.com/luoyjx/jsoncrdt/node"
	"github.com/luoyjx/jsoncrdt/rga"
)

func d(actor string, ctr uint64) dot.Dot {
	return dot.Dot{Actor: actor, Counter: ctr}
}

func TestProjectRegister(t *testing.T) {
	n := node.NewRegister("hello", d("a", 1))
	got, err := Project(n, node.DefaultMaxDepth)
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello" {
		t.Errorf("got %v", got)
	}
}

func TestProjectObjectOmitsTombstonedKeys(t *testing.T) {
	n := node.NewObject()
	node.ObjectSet(n.Object, "kept", node.NewRegister("k", d("a", 1)), d("a", 1))
	node.ObjectSet(n.Object, "gone", node.NewRegister("g", d("a", 2)), d("a", 2))
	node.ObjectRemove(n.Object, "gone", d("a", 3))

	got, err := Project(n, node.DefaultMaxDepth)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"kept": "k"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestProjectSequenceOmitsTombstonesInOrder(t *testing.T) {
	n := node.NewSequence()
	rga.InsertAfter(n.Sequence, node.HeadID, "a:1", d("a", 1), node.NewRegister("x", d("a", 1)))
	rga.InsertAfter(n.Sequence, "a:1", "a:2", d("a", 2), node.NewRegister("y", d("a", 2)))
	rga.Delete(n.Sequence, "a:1")

	got, err := Project(n, node.DefaultMaxDepth)
	if err != nil {
		t.Fatal(err)
	}
	want := []any{"y"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestProjectNestedStructureFromJSON(t *testing.T) {
	next := func() dot.Dot { return dot.Dot{} }
	nested := node.FromJSON(map[string]any{"inner": []any{"a", "b"}}, func() dot.Dot {
		return next()
	})

	got, err := Project(nested, node.DefaultMaxDepth)
	if err != nil {
		t.Fatal(err)
	}
	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("got %T, want map[string]any", got)
	}
	inner, ok := m["inner"].([]any)
	if !ok || len(inner) != 2 {
		t.Fatalf("inner = %v", m["inner"])
	}
}

func TestProjectRejectsExcessiveDepth(t *testing.T) {
	root := node.NewObject()
	cur := root
	for i := 0; i < 5; i++ {
		child := node.NewObject()
		node.ObjectSet(cur.Object, "c", child, d("a", uint64(i+1)))
		cur = child
	}
	if _, err := Project(root, 2); err == nil {
		t.Error("expected max depth error")
	}
}
