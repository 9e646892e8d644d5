package resolver

import (
	"context"
	"testing"

	"github.com/goliatone/go-resolver/pkg/assetfs"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string {
		return values[key]
	}
}

func newTestEngine(t *testing.T, storage assetfs.Storage, env map[string]string, opts ...Option) *Engine {
	t.Helper()
	base := []Option{WithStorage(storage), WithEnvironment(envMap(env))}
	engine, err := New(context.Background(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return engine
}

func newTestContext(t *testing.T, engine *Engine, opts ...ContextOption) *ResolverContext {
	t.Helper()
	rc, err := engine.NewContext(context.Background(), opts...)
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	return rc
}

func mustResolve(t *testing.T, engine *Engine, ctx context.Context, id string) string {
	t.Helper()
	resolved, err := engine.Resolve(ctx, id)
	if err != nil {
		t.Fatalf("Resolve(%q) error = %v", id, err)
	}
	return resolved
}
