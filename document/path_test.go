package document

import (
	"errors"
	"testing"
)

func sampleTree() *Document {
	return Struct(
		Field{Name: "a", Value: Struct(
			Field{Name: "b", Value: List(Int(10), Int(20), Int(30))},
		)},
	)
}

func TestParsePath(t *testing.T) {
	segs, err := ParsePath("a.b[0].c")
	if err != nil {
		t.Fatalf("ParsePath() error: %v", err)
	}
	want := []PathSegment{
		{Key: "a"},
		{Key: "b"},
		{Index: 0, IsIndex: true},
		{Key: "c"},
	}
	if len(segs) != len(want) {
		t.Fatalf("ParsePath() len = %d, want %d", len(segs), len(want))
	}
	for i := range want {
		if segs[i] != want[i] {
			t.Errorf("segment %d = %+v, want %+v", i, segs[i], want[i])
		}
	}
}

func TestAtWalksStructAndList(t *testing.T) {
	tree := sampleTree()
	got, err := At(tree, "a.b[1]")
	if err != nil {
		t.Fatalf("At() error: %v", err)
	}
	if got.Int != 20 {
		t.Errorf("At(a.b[1]) = %d, want 20", got.Int)
	}
}

func TestAtMissingFieldReturnsNotFound(t *testing.T) {
	tree := sampleTree()
	_, err := At(tree, "a.missing")
	var notFound *PathSegmentNotFoundError
	if err == nil {
		t.Fatal("expected error for missing field")
	}
	if !errors.As(err, &notFound) {
		t.Errorf("expected *PathSegmentNotFoundError, got %T: %v", err, err)
	}
}

func TestAtIndexOutOfBounds(t *testing.T) {
	tree := sampleTree()
	_, err := At(tree, "a.b[99]")
	if err == nil {
		t.Fatal("expected error for out-of-bounds index")
	}
}

func TestAtWrongKindExpectedMapping(t *testing.T) {
	tree := sampleTree()
	_, err := At(tree, "a.b.c")
	if err != ErrExpectedMapping {
		t.Errorf("At() error = %v, want ErrExpectedMapping", err)
	}
}

func TestSetAtExistingField(t *testing.T) {
	tree := sampleTree()
	if err := SetAt(tree, "a.b[2]", Int(999)); err != nil {
		t.Fatalf("SetAt() error: %v", err)
	}
	got, err := At(tree, "a.b[2]")
	if err != nil {
		t.Fatalf("At() error: %v", err)
	}
	if got.Int != 999 {
		t.Errorf("after SetAt, a.b[2] = %d, want 999", got.Int)
	}
}

func TestSetAtCreatesIntermediateStruct(t *testing.T) {
	tree := Struct()
	if err := SetAt(tree, "x.y", String("new")); err != nil {
		t.Fatalf("SetAt() error: %v", err)
	}
	got, err := At(tree, "x.y")
	if err != nil {
		t.Fatalf("At() error: %v", err)
	}
	if got.Str != "new" {
		t.Errorf("At(x.y) = %q, want %q", got.Str, "new")
	}
}
