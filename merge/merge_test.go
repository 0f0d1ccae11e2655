package merge

import (
	"reflect"
	"testing"

	"github.com/luoyjx/jsoncrdt/dot"
	"github.com/luoyjx/jsoncrdt/materialize"
	"github.com/luoyjx/jsoncrdt/node"
	"github.com/luoyjx/jsoncrdt/rga"
)

const maxDepth = 1024

func mustClock(t *testing.T, actor string) *dot.Clock {
	t.Helper()
	clk, err := dot.NewClock(actor)
	if err != nil {
		t.Fatal(err)
	}
	return clk
}

func mustClone(t *testing.T, n *node.Node) *node.Node {
	t.Helper()
	c, err := node.Clone(n, maxDepth)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func mustProject(t *testing.T, n *node.Node) any {
	t.Helper()
	v, err := materialize.Project(n, maxDepth)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestMergeIdempotent(t *testing.T) {
	clk := mustClock(t, "a")
	root := node.FromJSON(map[string]any{"a": 1.0, "list": []any{1.0, 2.0}}, clk.Next)

	merged, err := Merge(root, root, maxDepth)
	if err != nil {
		t.Fatal(err)
	}

	want := mustProject(t, root)
	got := mustProject(t, merged)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("merge(a,a) = %+v, want %+v", got, want)
	}
	if len(merged.Object.Entries["list"].Child.Sequence.Elements) != len(root.Object.Entries["list"].Child.Sequence.Elements) {
		t.Error("merge(a,a) must not duplicate sequence elements")
	}
}

func TestMergeCommutative(t *testing.T) {
	clkBase := mustClock(t, "base")
	base := node.FromJSON(map[string]any{"a": 1.0, "list": []any{1.0}}, clkBase.Next)

	aRoot := mustClone(t, base)
	bRoot := mustClone(t, base)

	clkA := mustClock(t, "actor-a")
	replaceDot := clkA.Next()
	node.ObjectSet(aRoot.Object, "a", node.NewRegister(2.0, replaceDot), replaceDot)

	clkB := mustClock(t, "actor-b")
	listSeq := bRoot.Object.Entries["list"].Child.Sequence
	prevID, err := rga.ResolveInsertIndex(listSeq, 1, false, maxDepth)
	if err != nil {
		t.Fatal(err)
	}
	insDot := rga.MintInsertDot(listSeq, prevID, clkB)
	rga.InsertAfter(listSeq, prevID, insDot.ID(), insDot, node.NewRegister(3.0, insDot))

	ab, err := Merge(aRoot, bRoot, maxDepth)
	if err != nil {
		t.Fatal(err)
	}
	ba, err := Merge(bRoot, aRoot, maxDepth)
	if err != nil {
		t.Fatal(err)
	}

	gotAB := mustProject(t, ab)
	gotBA := mustProject(t, ba)
	if !reflect.DeepEqual(gotAB, gotBA) {
		t.Errorf("merge(a,b) = %+v, merge(b,a) = %+v; want equal", gotAB, gotBA)
	}
}

func TestMergeAssociative(t *testing.T) {
	clkBase := mustClock(t, "base")
	base := node.FromJSON(map[string]any{"list": []any{1.0}}, clkBase.Next)

	aRoot := mustClone(t, base)
	bRoot := mustClone(t, base)
	cRoot := mustClone(t, base)

	insertInto := func(root *node.Node, actor string, value float64) {
		clk := mustClock(t, actor)
		seq := root.Object.Entries["list"].Child.Sequence
		prevID, err := rga.ResolveInsertIndex(seq, 0, false, maxDepth)
		if err != nil {
			t.Fatal(err)
		}
		insDot := rga.MintInsertDot(seq, prevID, clk)
		rga.InsertAfter(seq, prevID, insDot.ID(), insDot, node.NewRegister(value, insDot))
	}
	insertInto(aRoot, "actor-a", 10.0)
	insertInto(bRoot, "actor-b", 20.0)
	insertInto(cRoot, "actor-c", 30.0)

	ab, err := Merge(aRoot, bRoot, maxDepth)
	if err != nil {
		t.Fatal(err)
	}
	abc1, err := Merge(ab, cRoot, maxDepth)
	if err != nil {
		t.Fatal(err)
	}

	bc, err := Merge(bRoot, cRoot, maxDepth)
	if err != nil {
		t.Fatal(err)
	}
	abc2, err := Merge(aRoot, bc, maxDepth)
	if err != nil {
		t.Fatal(err)
	}

	got1 := mustProject(t, abc1)
	got2 := mustProject(t, abc2)
	if !reflect.DeepEqual(got1, got2) {
		t.Errorf("merge(merge(a,b),c) = %+v, merge(a,merge(b,c)) = %+v; want equal", got1, got2)
	}
}

// TestMergeConcurrentAddsSameKeyHigherActorWins reproduces the spec's
// worked example: starting from {}, peer a1 adds /x=1 and peer b1 adds
// /x=2 concurrently. Both writes have counter 1, so the tie breaks on
// actor: "b1" > "a1" lexicographically, and 2 wins.
func TestMergeConcurrentAddsSameKeyHigherActorWins(t *testing.T) {
	rootA := node.NewObject()
	clkA := mustClock(t, "a1")
	dA := clkA.Next()
	node.ObjectSet(rootA.Object, "x", node.NewRegister(1.0, dA), dA)

	rootB := node.NewObject()
	clkB := mustClock(t, "b1")
	dB := clkB.Next()
	node.ObjectSet(rootB.Object, "x", node.NewRegister(2.0, dB), dB)

	merged, err := Merge(rootA, rootB, maxDepth)
	if err != nil {
		t.Fatal(err)
	}
	got := mustProject(t, merged)
	want := map[string]any{"x": 2.0}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

// TestMergeConcurrentInsertAtIndexZero reproduces the spec's worked
// example: starting from shared lineage [A], replica a inserts X at 0
// and replica b inserts Y at 0. Both new dots have counter 2 (one past
// A's counter 1); the tie breaks on actor, "b" > "a", so Y sorts before
// X, yielding [Y, X, A].
func TestMergeConcurrentInsertAtIndexZero(t *testing.T) {
	clkBase := mustClock(t, "base")
	base := node.NewSequence()
	dBase := clkBase.Next()
	rga.InsertAfter(base.Sequence, node.HeadID, dBase.ID(), dBase, node.NewRegister("A", dBase))

	aRoot := mustClone(t, base)
	bRoot := mustClone(t, base)

	clkA := mustClock(t, "a")
	insX := rga.MintInsertDot(aRoot.Sequence, node.HeadID, clkA)
	rga.InsertAfter(aRoot.Sequence, node.HeadID, insX.ID(), insX, node.NewRegister("X", insX))

	clkB := mustClock(t, "b")
	insY := rga.MintInsertDot(bRoot.Sequence, node.HeadID, clkB)
	rga.InsertAfter(bRoot.Sequence, node.HeadID, insY.ID(), insY, node.NewRegister("Y", insY))

	merged, err := Merge(aRoot, bRoot, maxDepth)
	if err != nil {
		t.Fatal(err)
	}
	got := mustProject(t, merged)
	want := []any{"Y", "X", "A"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

// TestMergeDeleteWinsWhenReplaceDotGreater reproduces the spec's
// delete-vs-resurrect example with the replace dot ranked higher: A
// removes /k, B concurrently replaces /k with 2; B's dot wins, so the
// key survives with the new value.
func TestMergeDeleteWinsWhenReplaceDotGreater(t *testing.T) {
	clkBase := mustClock(t, "base")
	base := node.FromJSON(map[string]any{"k": 1.0}, clkBase.Next)

	rootA := mustClone(t, base)
	clkA := mustClock(t, "a")
	clkA.FastForward(clkBase.Counter())
	node.ObjectRemove(rootA.Object, "k", clkA.Next())

	rootB := mustClone(t, base)
	clkB := mustClock(t, "b")
	clkB.FastForward(clkBase.Counter())
	replaceDot := clkB.Next()
	node.ObjectSet(rootB.Object, "k", node.NewRegister(2.0, replaceDot), replaceDot)

	merged, err := Merge(rootA, rootB, maxDepth)
	if err != nil {
		t.Fatal(err)
	}
	got := mustProject(t, merged)
	want := map[string]any{"k": 2.0}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

// TestMergeDeleteWinsWhenRemoveDotGreater is the mirror image: the
// remove dot outranks the replace dot, so the key stays gone.
func TestMergeDeleteWinsWhenRemoveDotGreater(t *testing.T) {
	clkBase := mustClock(t, "base")
	base := node.FromJSON(map[string]any{"k": 1.0}, clkBase.Next)

	rootA := mustClone(t, base)
	clkA := mustClock(t, "b") // higher-ranked actor does the remove here
	clkA.FastForward(clkBase.Counter())
	node.ObjectRemove(rootA.Object, "k", clkA.Next())

	rootB := mustClone(t, base)
	clkB := mustClock(t, "a")
	clkB.FastForward(clkBase.Counter())
	replaceDot := clkB.Next()
	node.ObjectSet(rootB.Object, "k", node.NewRegister(2.0, replaceDot), replaceDot)

	merged, err := Merge(rootA, rootB, maxDepth)
	if err != nil {
		t.Fatal(err)
	}
	got := mustProject(t, merged)
	want := map[string]any{}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

// TestMergeLineageMismatch reproduces the spec's example: two replicas
// independently build a list with the same logical content but no
// shared element ids (different actors mint unrelated ids), which must
// fail rather than silently splice.
func TestMergeLineageMismatch(t *testing.T) {
	build := func(actor string) *node.Node {
		clk := mustClock(t, actor)
		root := node.NewObject()
		seq := node.NewSequence()
		d1 := clk.Next()
		rga.InsertAfter(seq.Sequence, node.HeadID, d1.ID(), d1, node.NewRegister(1.0, d1))
		d2 := clk.Next()
		rga.InsertAfter(seq.Sequence, d1.ID(), d2.ID(), d2, node.NewRegister(2.0, d2))
		dSet := clk.Next()
		node.ObjectSet(root.Object, "list", seq, dSet)
		return root
	}
	rootA := build("a")
	rootB := build("b")

	_, err := Merge(rootA, rootB, maxDepth)
	me, ok := err.(*Error)
	if !ok {
		t.Fatalf("err = %v, want *merge.Error", err)
	}
	if !IsLineageMismatch(err) {
		t.Errorf("reason = %v, want LINEAGE_MISMATCH", me.Reason)
	}
	if len(me.Path) != 1 || me.Path[0] != "list" {
		t.Errorf("path = %v, want [list]", me.Path)
	}
}

func TestMergeKindMismatchWinsByRepresentativeDot(t *testing.T) {
	clkA := mustClock(t, "a")
	registerSide := node.NewRegister("scalar", clkA.Next())

	clkB := mustClock(t, "b")
	seqSide := node.NewSequence()
	d := clkB.Next()
	rga.InsertAfter(seqSide.Sequence, node.HeadID, d.ID(), d, node.NewRegister("elem", d))

	merged, err := Merge(registerSide, seqSide, maxDepth)
	if err != nil {
		t.Fatal(err)
	}
	// seqSide's representative dot (b:1, from the sequence's insert) ties
	// registerSide's (a:1) on counter and outranks it on actor, so the
	// sequence wins.
	if merged.Kind != node.KindSequence {
		t.Errorf("kind = %v, want KindSequence", merged.Kind)
	}
}

func TestReconcileClockRaisesToMaxOwnActorCounter(t *testing.T) {
	clkBase := mustClock(t, "base")
	base := node.FromJSON(map[string]any{"a": 1.0}, clkBase.Next)

	rootA := mustClone(t, base)
	clkA := mustClock(t, "actor-1")
	for i := 0; i < 3; i++ {
		d := clkA.Next()
		node.ObjectSet(rootA.Object, "a", node.NewRegister(float64(i), d), d)
	}

	rootB := mustClone(t, base)
	clkB := mustClock(t, "actor-2")
	clkB.Next()

	merged, err := Merge(rootA, rootB, maxDepth)
	if err != nil {
		t.Fatal(err)
	}

	reconciled, err := ReconcileClock(merged, clkA, clkB, "actor-1", maxDepth)
	if err != nil {
		t.Fatal(err)
	}
	if reconciled.Counter() != clkA.Counter() {
		t.Errorf("counter = %d, want %d", reconciled.Counter(), clkA.Counter())
	}
}
