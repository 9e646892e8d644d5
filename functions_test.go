package resolver

import (
	"testing"

	"github.com/goliatone/go-resolver/pkg/assetfs"
	"github.com/google/go-cmp/cmp"
)

func TestDefaultFunctions(t *testing.T) {
	storage := assetfs.NewMemory()
	storage.Touch("/a/b.usd")
	registry := DefaultFunctions(storage)

	want := []string{"basename", "dirname", "exists", "isRelative", "isSearchRelative", "join", "norm"}
	if diff := cmp.Diff(want, registry.Names()); diff != "" {
		t.Fatalf("Names mismatch (-want +got):\n%s", diff)
	}

	calls := []struct {
		name string
		args []any
		want any
	}{
		{name: "exists", args: []any{"/a/b.usd"}, want: true},
		{name: "EXISTS", args: []any{"/a/missing.usd"}, want: false},
		{name: "join", args: []any{"/a", "x", "../b.usd"}, want: "/a/b.usd"},
		{name: "dirname", args: []any{"/a/b.usd"}, want: "/a"},
		{name: "isSearchRelative", args: []any{"./b.usd"}, want: false},
	}
	for _, call := range calls {
		got, err := registry.Call(call.name, call.args...)
		if err != nil {
			t.Fatalf("Call(%s) error = %v", call.name, err)
		}
		if got != call.want {
			t.Fatalf("Call(%s) = %v, want %v", call.name, got, call.want)
		}
	}

	if _, err := registry.Call("norm", 42); err == nil {
		t.Fatalf("expected argument type error")
	}
	if err := registry.Register("Exists", func(...any) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if _, err := registry.Call("unknown"); err == nil {
		t.Fatalf("expected unknown function error")
	}
}

func TestProgramCacheReusesCompiledPrograms(t *testing.T) {
	cache := NewProgramCache()
	evaluator := NewExprEvaluator(ExprWithProgramCache(cache))
	for i := 0; i < 3; i++ {
		got, err := evaluator.Evaluate(RuleContext{Identifier: "x"}, `identifier + ".usd"`)
		if err != nil || got != "x.usd" {
			t.Fatalf("Evaluate = %v, %v", got, err)
		}
	}
	if cache.Len() != 1 {
		t.Fatalf("cache Len = %d, want 1", cache.Len())
	}
}
