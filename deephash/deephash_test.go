package deephash

import (
	"errors"
	"testing"
)

func mustHash(t *testing.T, v any) uint64 {
	t.Helper()
	h, err := Hash(v)
	if err != nil {
		t.Fatalf("Hash(%v) failed: %v", v, err)
	}
	return h
}

func TestHash_MapKeyOrderIndependent(t *testing.T) {
	a := map[string]any{"a": 1, "b": 2}
	b := map[string]any{"b": 2, "a": 1}

	if mustHash(t, a) != mustHash(t, b) {
		t.Error("maps with same entries in different insertion order must hash identically")
	}
}

func TestHash_MapValueSensitive(t *testing.T) {
	a := map[string]any{"a": 1, "b": 2}
	b := map[string]any{"a": 1, "b": 3}

	if mustHash(t, a) == mustHash(t, b) {
		t.Error("maps with different values must hash differently")
	}
}

func TestHash_SequenceOrderSensitive(t *testing.T) {
	if mustHash(t, []any{1, 2}) == mustHash(t, []any{2, 1}) {
		t.Error("sequences must be order-sensitive")
	}
}

func TestHash_SetOrderInsensitive(t *testing.T) {
	if mustHash(t, Set{1, 2, 3}) != mustHash(t, Set{3, 1, 2}) {
		t.Error("sets must hash independently of member order")
	}
	if mustHash(t, Set{1, 2}) == mustHash(t, Set{1, 3}) {
		t.Error("sets with different members must hash differently")
	}
}

func TestHash_ScalarKindsDistinct(t *testing.T) {
	// The string "1" and the number 1 must not collide
	if mustHash(t, "1") == mustHash(t, 1) {
		t.Error("string and int with same text must hash differently")
	}
	if mustHash(t, true) == mustHash(t, 1) {
		t.Error("bool and int must hash differently")
	}
	if mustHash(t, nil) == mustHash(t, "") {
		t.Error("nil and empty string must hash differently")
	}
}

func TestHash_NestedTrees(t *testing.T) {
	a := map[string]any{
		"name": "Acme",
		"tags": []any{"a", "b"},
		"plan": map[string]any{"tier": "pro", "seats": 10},
	}
	b := map[string]any{
		"plan": map[string]any{"seats": 10, "tier": "pro"},
		"tags": []any{"a", "b"},
		"name": "Acme",
	}
	if mustHash(t, a) != mustHash(t, b) {
		t.Error("equal nested trees must hash identically")
	}

	b["plan"].(map[string]any)["seats"] = 11
	if mustHash(t, a) == mustHash(t, b) {
		t.Error("nested change must alter the hash")
	}
}

func TestHash_TypedContainersViaReflection(t *testing.T) {
	if mustHash(t, []string{"x", "y"}) != mustHash(t, []any{"x", "y"}) {
		t.Error("typed and untyped slices with same members must hash identically")
	}
	if mustHash(t, map[string]int{"a": 1}) != mustHash(t, map[string]any{"a": 1}) {
		t.Error("typed and untyped string-keyed maps must hash identically")
	}
}

func TestHash_Unhashable(t *testing.T) {
	for _, v := range []any{
		func() {},
		make(chan int),
		map[int]any{1: "x"},
		struct{ X int }{X: 1},
	} {
		_, err := Hash(v)
		if !errors.Is(err, ErrUnhashable) {
			t.Errorf("Hash(%T) = %v, want ErrUnhashable", v, err)
		}
	}
}

func TestHash_UnhashableInsideContainer(t *testing.T) {
	_, err := Hash(map[string]any{"ok": 1, "bad": func() {}})
	if !errors.Is(err, ErrUnhashable) {
		t.Errorf("expected ErrUnhashable for container holding a func, got %v", err)
	}
}

func BenchmarkHash_Document(b *testing.B) {
	doc := map[string]any{
		"id":    "9f2d",
		"name":  "Acme Corp",
		"plan":  map[string]any{"tier": "enterprise", "seats": 250},
		"tags":  []any{"priority", "emea", "renewal"},
		"score": 87.5,
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Hash(doc); err != nil {
			b.Fatal(err)
		}
	}
}
