package resolver

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMappingTableOperations(t *testing.T) {
	table := NewMappingTable()
	table.Add("a.usd", "pinned.usd")
	table.Add("b.usd", "pinned.usd")
	table.Add("c.usd", "other.usd")
	table.Add("a.usd", "pinned.usd")

	want := map[string]string{"a.usd": "pinned.usd", "b.usd": "pinned.usd", "c.usd": "other.usd"}
	if diff := cmp.Diff(want, table.All()); diff != "" {
		t.Fatalf("All() mismatch (-want +got):\n%s", diff)
	}

	table.RemoveByValue("pinned.usd")
	if diff := cmp.Diff(map[string]string{"c.usd": "other.usd"}, table.All()); diff != "" {
		t.Fatalf("RemoveByValue mismatch (-want +got):\n%s", diff)
	}

	table.RemoveByKey("c.usd")
	if table.Len() != 0 {
		t.Fatalf("Len() = %d after RemoveByKey, want 0", table.Len())
	}

	table.Add("x", "y")
	table.Clear()
	if _, ok := table.Get("x"); ok {
		t.Fatalf("Get after Clear reported a hit")
	}
}

func TestMappingTableCanonicalization(t *testing.T) {
	table := NewMappingTable()
	if err := table.SetRule(`(v\d\d\d)`, "v000"); err != nil {
		t.Fatalf("SetRule() error = %v", err)
	}
	table.Add("layer_v000.usd", "layer_v002.usd")

	if got := table.Canonicalize("layer_v001.usd"); got != "layer_v000.usd" {
		t.Fatalf("Canonicalize = %q, want layer_v000.usd", got)
	}
	target, ok := table.Lookup("layer_v001.usd")
	if !ok || target != "layer_v002.usd" {
		t.Fatalf("Lookup = %q, %v; want layer_v002.usd", target, ok)
	}
	if _, ok := table.Lookup("other.usd"); ok {
		t.Fatalf("Lookup(other.usd) reported a hit")
	}

	table.Clear()
	if table.Rule() == nil {
		t.Fatalf("Clear dropped the rule")
	}
}

func TestMappingTableGroupReferences(t *testing.T) {
	table := NewMappingTable()
	if err := table.SetRule(`^(\w+)_v\d+\.(\w+)$`, "$1.$2"); err != nil {
		t.Fatalf("SetRule() error = %v", err)
	}
	if got := table.Canonicalize("shot_v12.usd"); got != "shot.usd" {
		t.Fatalf("Canonicalize = %q, want shot.usd", got)
	}
}

func TestInvalidCanonicalizationRule(t *testing.T) {
	_, err := NewCanonicalizationRule(`(unclosed`, "x")
	if !errors.Is(err, ErrInvalidCanonicalization) {
		t.Fatalf("NewCanonicalizationRule error = %v, want ErrInvalidCanonicalization", err)
	}
}

func TestResolutionCacheNegativeEntries(t *testing.T) {
	cache := NewResolutionCache()
	cache.Add("missing.usd", "")
	got, ok := cache.Get("missing.usd")
	if !ok || got != "" {
		t.Fatalf("Get(missing.usd) = %q, %v; want negative hit", got, ok)
	}

	cache.Add("a", "/loc")
	cache.Add("b", "/loc")
	cache.RemoveByValue("/loc")
	if diff := cmp.Diff(map[string]string{"missing.usd": ""}, cache.All()); diff != "" {
		t.Fatalf("RemoveByValue mismatch (-want +got):\n%s", diff)
	}
}
