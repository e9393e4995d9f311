package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7Format(t *testing.T) {
	id := UUIDv7()()
	if len(id) != 36 {
		t.Fatalf("expected length 36, got %d for %q", len(id), id)
	}
	if parts := strings.Split(id, "-"); len(parts) != 5 {
		t.Fatalf("expected 5 parts, got %d in %q", len(parts), id)
	}
}

func TestUUIDv7Uniqueness(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := gen()
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate at iteration %d", i)
		}
		seen[id] = struct{}{}
	}
}

func TestNanoID(t *testing.T) {
	gen := NanoID(32)
	id := gen()
	if len(id) != 32 {
		t.Fatalf("got length %d, want 32", len(id))
	}
	for _, c := range id {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z')) {
			t.Fatalf("unexpected character %q in %q", c, id)
		}
	}
	if gen() == id {
		t.Fatal("two NanoIDs should differ")
	}
}

func TestPrefixed(t *testing.T) {
	id := Prefixed("shot_", UUIDv7())()
	if !strings.HasPrefix(id, "shot_") {
		t.Fatalf("expected shot_ prefix, got %q", id)
	}
}
