package cache

import (
	"context"
	"testing"
	"time"
)

func TestSnapshotCacheGetMissThenPutThenHit(t *testing.T) {
	c := newWithClient(newMockClient(), time.Minute)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "doc-1"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := c.Put(ctx, "doc-1", []byte(`{"a":1}`)); err != nil {
		t.Fatal(err)
	}

	data, ok, err := c.Get(ctx, "doc-1")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(data) != `{"a":1}` {
		t.Errorf("got %s", data)
	}
}

func TestSnapshotCacheInvalidate(t *testing.T) {
	c := newWithClient(newMockClient(), time.Minute)
	ctx := context.Background()

	if err := c.Put(ctx, "doc-1", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := c.Invalidate(ctx, "doc-1"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(ctx, "doc-1"); ok {
		t.Error("expected miss after invalidate")
	}
}

func TestSnapshotCacheDifferentDocsDontCollide(t *testing.T) {
	c := newWithClient(newMockClient(), time.Minute)
	ctx := context.Background()

	if err := c.Put(ctx, "doc-1", []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(ctx, "doc-2", []byte("two")); err != nil {
		t.Fatal(err)
	}

	d1, _, _ := c.Get(ctx, "doc-1")
	d2, _, _ := c.Get(ctx, "doc-2")
	if string(d1) != "one" || string(d2) != "two" {
		t.Errorf("got doc-1=%s doc-2=%s", d1, d2)
	}
}
